// Package handler exposes trust scores and the public registry over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	orgmodels "truconn/internal/organization/models"
	"truconn/internal/platform/middleware"
	"truconn/internal/sentinel"
	respond "truconn/internal/transport/http/json"
	"truconn/internal/transport/http/shared"
	"truconn/internal/trust/models"
	"truconn/internal/trust/service"
	dErrors "truconn/pkg/domain-errors"
)

// Directory resolves the organization behind an authenticated principal.
type Directory interface {
	FindByOwner(ctx context.Context, ownerUserID string) (*orgmodels.Organization, error)
}

type Handler struct {
	service   *service.Service
	directory Directory
	logger    *slog.Logger
}

func New(svc *service.Service, directory Directory, logger *slog.Logger) *Handler {
	return &Handler{service: svc, directory: directory, logger: logger}
}

// RegisterPublicRoutes mounts the unauthenticated registry routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/trust/score/{orgID}", h.scoreByID)
	r.Get("/trust/registry", h.registry)
}

// RegisterOrganizationRoutes mounts the self-service score route.
func (h *Handler) RegisterOrganizationRoutes(r chi.Router) {
	r.Get("/trust/score", h.ownScore)
}

type snapshotResponse struct {
	OrganizationID      string            `json:"organization_id"`
	OverallScore        float64           `json:"overall_score"`
	TrustLevel          string            `json:"trust_level"`
	Components          models.Components `json:"components"`
	CertificateIssued   bool              `json:"certificate_issued"`
	CertificateIssuedAt *time.Time        `json:"certificate_issued_at,omitempty"`
	CalculatedAt        time.Time         `json:"calculated_at"`
}

func toSnapshotResponse(snapshot models.Snapshot) snapshotResponse {
	return snapshotResponse{
		OrganizationID:      snapshot.OrganizationID.String(),
		OverallScore:        snapshot.OverallScore,
		TrustLevel:          string(snapshot.Level),
		Components:          snapshot.Components,
		CertificateIssued:   snapshot.CertificateIssued,
		CertificateIssuedAt: snapshot.CertificateIssuedAt,
		CalculatedAt:        snapshot.CalculatedAt,
	}
}

func (h *Handler) ownScore(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	org, err := h.directory.FindByOwner(r.Context(), principal.UserID)
	if errors.Is(err, sentinel.ErrNotFound) {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "no organization registered for this account"))
		return
	}
	if err != nil {
		h.logError(r, "resolving organization", err)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "resolving organization"))
		return
	}
	h.writeScore(w, r, org.ID)
}

func (h *Handler) scoreByID(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(chi.URLParam(r, "orgID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid organization ID"))
		return
	}
	h.writeScore(w, r, orgID)
}

func (h *Handler) writeScore(w http.ResponseWriter, r *http.Request, orgID uuid.UUID) {
	snapshot, err := h.service.CalculateTrustScore(r.Context(), orgID)
	if err != nil {
		h.logError(r, "calculating trust score", err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, toSnapshotResponse(snapshot))
}

type rankingEntryResponse struct {
	OrganizationID    string  `json:"organization_id"`
	Name              string  `json:"name"`
	OverallScore      float64 `json:"overall_score"`
	TrustLevel        string  `json:"trust_level"`
	CertificateIssued bool    `json:"certificate_issued"`
}

func (h *Handler) registry(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid limit"))
			return
		}
		limit = parsed
	}

	entries, err := h.service.Ranking(r.Context(), limit)
	if err != nil {
		h.logError(r, "computing trust ranking", err)
		shared.WriteError(w, err)
		return
	}
	out := make([]rankingEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, rankingEntryResponse{
			OrganizationID:    entry.OrganizationID.String(),
			Name:              entry.Name,
			OverallScore:      entry.OverallScore,
			TrustLevel:        string(entry.Level),
			CertificateIssued: entry.CertificateIssued,
		})
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"organizations": out})
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.Any("error", err))
}
