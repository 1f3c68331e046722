// Package handler exposes the consent ledger over HTTP.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"truconn/internal/consent/service"
	"truconn/internal/platform/middleware"
	respond "truconn/internal/transport/http/json"
	"truconn/internal/transport/http/shared"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/validation"
)

type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/consent-types", h.listTypes)
	r.Post("/consents/{consentTypeID}/toggle", h.toggle)
	r.Get("/consents", h.listStatus)
	r.Get("/consents/history", h.history)
	r.Get("/consents/history/{consentTypeID}", h.history)
	r.Get("/consents/expiry", h.checkExpiry)
}

type toggleRequest struct {
	DurationDays *int `json:"duration_days,omitempty" validate:"omitempty,gt=0"`
}

type grantResponse struct {
	ID          string     `json:"id"`
	ConsentType string     `json:"consent_type"`
	Access      bool       `json:"access"`
	GrantedAt   *time.Time `json:"granted_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func toGrantResponse(status service.GrantStatus) grantResponse {
	return grantResponse{
		ID:          status.Grant.ID.String(),
		ConsentType: status.ConsentType.Name,
		Access:      status.Grant.Access,
		GrantedAt:   status.Grant.GrantedAt,
		RevokedAt:   status.Grant.RevokedAt,
		ExpiresAt:   status.Grant.ExpiresAt,
	}
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	typeID, err := uuid.Parse(chi.URLParam(r, "consentTypeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent type ID"))
		return
	}

	var req toggleRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
		if err := validation.Validate(req); err != nil {
			h.logger.WarnContext(r.Context(), "invalid consent toggle request",
				slog.String("request_id", middleware.GetRequestID(r.Context())),
				slog.Any("error", err))
			shared.WriteError(w, err)
			return
		}
	}

	principal := middleware.GetPrincipal(r.Context())
	status, err := h.service.ToggleConsent(r.Context(), principal.UserID, typeID, req.DurationDays)
	if err != nil {
		h.logError(r, "toggling consent", err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, toGrantResponse(status))
}

func (h *Handler) listStatus(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	statuses, err := h.service.ListStatus(r.Context(), principal.UserID)
	if err != nil {
		h.logError(r, "listing consent status", err)
		shared.WriteError(w, err)
		return
	}
	out := make([]grantResponse, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, toGrantResponse(status))
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"consents": out})
}

func (h *Handler) listTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListTypes(r.Context())
	if err != nil {
		h.logError(r, "listing consent types", err)
		shared.WriteError(w, err)
		return
	}
	type typeResponse struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	out := make([]typeResponse, 0, len(types))
	for _, ct := range types {
		out = append(out, typeResponse{ID: ct.ID.String(), Name: ct.Name})
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"consent_types": out})
}

type historyEntryResponse struct {
	ID            string    `json:"id"`
	Action        string    `json:"action"`
	PreviousValue *bool     `json:"previous_value,omitempty"`
	NewValue      bool      `json:"new_value"`
	ChangedAt     time.Time `json:"changed_at"`
	ChangedBy     string    `json:"changed_by"`
	Reason        string    `json:"reason"`
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	var typeFilter *uuid.UUID
	if raw := chi.URLParam(r, "consentTypeID"); raw != "" {
		typeID, err := uuid.Parse(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid consent type ID"))
			return
		}
		typeFilter = &typeID
	}

	entries, err := h.service.History(r.Context(), principal.UserID, typeFilter)
	if err != nil {
		h.logError(r, "listing consent history", err)
		shared.WriteError(w, err)
		return
	}
	out := make([]historyEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, historyEntryResponse{
			ID:            entry.ID.String(),
			Action:        string(entry.Action),
			PreviousValue: entry.PreviousValue,
			NewValue:      entry.NewValue,
			ChangedAt:     entry.ChangedAt,
			ChangedBy:     entry.ChangedBy,
			Reason:        entry.Reason,
		})
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"history": out})
}

func (h *Handler) checkExpiry(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())
	report, err := h.service.CheckExpiry(r.Context(), principal.UserID)
	if err != nil {
		h.logError(r, "checking consent expiry", err)
		shared.WriteError(w, err)
		return
	}

	type expiringResponse struct {
		grantResponse
		DaysRemaining int `json:"days_remaining"`
	}
	expired := make([]grantResponse, 0, len(report.Expired))
	for _, status := range report.Expired {
		expired = append(expired, toGrantResponse(status))
	}
	soon := make([]expiringResponse, 0, len(report.ExpiringSoon))
	for _, eg := range report.ExpiringSoon {
		soon = append(soon, expiringResponse{
			grantResponse: toGrantResponse(eg.Status),
			DaysRemaining: eg.DaysRemaining,
		})
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"expired":       expired,
		"expiring_soon": soon,
	})
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.Any("error", err))
}