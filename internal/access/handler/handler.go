// Package handler exposes the access request log over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"truconn/internal/access/models"
	"truconn/internal/access/service"
	orgmodels "truconn/internal/organization/models"
	"truconn/internal/platform/middleware"
	"truconn/internal/sentinel"
	respond "truconn/internal/transport/http/json"
	"truconn/internal/transport/http/shared"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/validation"
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

// RegisterOrganizationRoutes mounts the routes guarded by the organization role.
func (h *Handler) RegisterOrganizationRoutes(r chi.Router) {
	r.Post("/access-requests/{consentTypeID}/users/{userID}", h.create)
	r.Get("/access-requests", h.listByOrganization)
}

// RegisterCitizenRoutes mounts the routes guarded by the citizen role.
func (h *Handler) RegisterCitizenRoutes(r chi.Router) {
	r.Post("/access-requests/{requestID}/decision", h.decide)
	r.Get("/transparency/log", h.transparencyLog)
}

type createRequest struct {
	Purpose string `json:"purpose" validate:"required,notblank"`
}

type decisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve revoke"`
}

type requestResponse struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	UserID         string     `json:"user_id"`
	ConsentTypeID  string     `json:"consent_type_id"`
	Status         string     `json:"status"`
	Purpose        *string    `json:"purpose"`
	RequestedAt    time.Time  `json:"requested_at"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
}

func toResponse(req *models.Request) requestResponse {
	return requestResponse{
		ID:             req.ID.String(),
		OrganizationID: req.OrganizationID.String(),
		UserID:         req.UserID,
		ConsentTypeID:  req.ConsentTypeID.String(),
		Status:         string(req.Status),
		Purpose:        req.Purpose,
		RequestedAt:    req.RequestedAt,
		DecidedAt:      req.DecidedAt,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	typeID, err := uuid.Parse(chi.URLParam(r, "consentTypeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent type ID"))
		return
	}
	targetUserID := chi.URLParam(r, "userID")
	if targetUserID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "user ID required"))
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	org, err := h.resolveOrganization(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	created, err := h.service.CreateRequest(r.Context(), org.ID, targetUserID, typeID, req.Purpose)
	if err != nil {
		h.logError(r, "creating access request", err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) listByOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.resolveOrganization(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	requests, err := h.service.ListByOrganization(r.Context(), org.ID)
	if err != nil {
		h.logError(r, "listing access requests", err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"access_requests": toResponses(requests)})
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request ID"))
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	decided, err := h.service.Decide(r.Context(), requestID, principal.UserID, req.Decision == "approve")
	if err != nil {
		h.logError(r, "deciding access request", err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, toResponse(decided))
}

func (h *Handler) transparencyLog(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	requests, err := h.service.TransparencyLog(r.Context(), principal.UserID)
	if err != nil {
		h.logError(r, "listing transparency log", err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"access_requests": toResponses(requests)})
}

func (h *Handler) resolveOrganization(r *http.Request) (*orgmodels.Organization, error) {
	principal := middleware.GetPrincipal(r.Context())
	org, err := h.directory.FindByOwner(r.Context(), principal.UserID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeForbidden, "no organization registered for this account")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolving organization")
	}
	return org, nil
}

func toResponses(requests []*models.Request) []requestResponse {
	out := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, toResponse(req))
	}
	return out
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.Any("error", err))
}
