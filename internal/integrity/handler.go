package integrity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	orgmodels "truconn/internal/organization/models"
	"truconn/internal/platform/middleware"
	"truconn/internal/sentinel"
	respond "truconn/internal/transport/http/json"
	"truconn/internal/transport/http/shared"
	dErrors "truconn/pkg/domain-errors"
)

// Directory resolves the organization behind an authenticated principal.
type Directory interface {
	FindByOwner(ctx context.Context, ownerUserID string) (*orgmodels.Organization, error)
}

// Handler exposes the integrity verification endpoint.
type Handler struct {
	checker   *Checker
	directory Directory
	logger    *slog.Logger
}

func NewHandler(checker *Checker, directory Directory, logger *slog.Logger) *Handler {
	return &Handler{checker: checker, directory: directory, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/trust/integrity", h.verify)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	org, err := h.directory.FindByOwner(r.Context(), principal.UserID)
	if errors.Is(err, sentinel.ErrNotFound) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "no organization registered for this account"))
		return
	}
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "resolving organization"))
		return
	}

	summary, err := h.checker.VerifyOrganization(r.Context(), org.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "verifying data integrity",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.Any("error", err))
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "integrity verification failed"))
		return
	}

	checksums := make(map[string]string, len(summary.Checksums))
	for id, sum := range summary.Checksums {
		checksums[id.String()] = sum
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"organization_id": summary.OrganizationID.String(),
		"total_records":   summary.TotalRecords,
		"verified_count":  summary.VerifiedCount,
		"checksums":       checksums,
	})
}
