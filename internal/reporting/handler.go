package reporting

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"truconn/internal/platform/middleware"
	respond "truconn/internal/transport/http/json"
	"truconn/internal/transport/http/shared"
)

// Handler serves the public transparency report.
type Handler struct {
	reporter *Reporter
	logger   *slog.Logger
}

func NewHandler(reporter *Reporter, logger *slog.Logger) *Handler {
	return &Handler{reporter: reporter, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/reports/transparency", h.monthlyReport)
}

func (h *Handler) monthlyReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.MonthlyReport(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "building transparency report",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.Any("error", err))
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, report)
}
