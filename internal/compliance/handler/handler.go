// Package handler exposes compliance scans and audit management over HTTP.
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

	"truconn/internal/compliance/models"
	"truconn/internal/compliance/service"
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

// RegisterOrganizationRoutes mounts scan routes guarded by the organization role.
func (h *Handler) RegisterOrganizationRoutes(r chi.Router) {
	r.Post("/compliance/scan", h.scan)
	r.Get("/compliance/scan", h.latest)
}

// RegisterAuditRoutes mounts audit management, open to organizations and staff.
func (h *Handler) RegisterAuditRoutes(r chi.Router) {
	r.Patch("/compliance/audits/{auditID}", h.updateAuditStatus)
}

type findingResponse struct {
	Rule           string         `json:"rule"`
	Severity       string         `json:"severity"`
	Description    string         `json:"description"`
	Details        map[string]any `json:"details,omitempty"`
	Recommendation string         `json:"recommendation"`
}

type scanResponse struct {
	OrganizationID    string            `json:"organization_id"`
	RiskScore         int               `json:"risk_score"`
	TotalFindings     int               `json:"total_findings"`
	CriticalCount     int               `json:"critical_count"`
	HighCount         int               `json:"high_count"`
	MediumCount       int               `json:"medium_count"`
	AuditsCreated     int               `json:"audits_created"`
	ViolationsCreated int               `json:"violations_created"`
	Findings          []findingResponse `json:"findings"`
	ScannedAt         time.Time         `json:"scanned_at"`
}

func (h *Handler) scan(w http.ResponseWriter, r *http.Request) {
	org, err := h.resolveOrganization(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	report, err := h.service.Scan(r.Context(), org.ID)
	if err != nil {
		h.logError(r, "running compliance scan", err)
		shared.WriteError(w, err)
		return
	}

	findings := make([]findingResponse, 0, len(report.Result.Findings))
	for _, finding := range report.Result.Findings {
		findings = append(findings, findingResponse{
			Rule:           string(finding.Rule),
			Severity:       string(finding.Severity),
			Description:    finding.Description,
			Details:        finding.Details,
			Recommendation: finding.Recommendation,
		})
	}
	respond.WriteJSON(w, http.StatusOK, scanResponse{
		OrganizationID:    org.ID.String(),
		RiskScore:         report.Result.RiskScore,
		TotalFindings:     report.Result.TotalFindings,
		CriticalCount:     report.Result.CriticalCount,
		HighCount:         report.Result.HighCount,
		MediumCount:       report.Result.MediumCount,
		AuditsCreated:     report.AuditsCreated,
		ViolationsCreated: report.ViolationsCreated,
		Findings:          findings,
		ScannedAt:         report.Result.ScannedAt,
	})
}

type auditResponse struct {
	ID             string         `json:"id"`
	RuleName       string         `json:"rule_name"`
	Severity       string         `json:"severity"`
	Description    string         `json:"description"`
	Details        map[string]any `json:"details,omitempty"`
	Recommendation string         `json:"recommendation"`
	Status         string         `json:"status"`
	DetectedAt     time.Time      `json:"detected_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
}

type violationResponse struct {
	ID                  string     `json:"id"`
	ViolationType       string     `json:"violation_type"`
	Severity            string     `json:"severity"`
	Description         string     `json:"description"`
	AffectedUsersCount  int        `json:"affected_users_count"`
	ReportedToOversight bool       `json:"reported_to_oversight"`
	Resolved            bool       `json:"resolved"`
	RelatedAuditID      *string    `json:"related_audit_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

func toAuditResponse(audit *models.Audit) auditResponse {
	return auditResponse{
		ID:             audit.ID.String(),
		RuleName:       string(audit.RuleName),
		Severity:       string(audit.Severity),
		Description:    audit.Description,
		Details:        audit.Details,
		Recommendation: audit.Recommendation,
		Status:         string(audit.Status),
		DetectedAt:     audit.DetectedAt,
		ResolvedAt:     audit.ResolvedAt,
	}
}

func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	org, err := h.resolveOrganization(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	audits, violations, err := h.service.LatestRecords(r.Context(), org.ID)
	if err != nil {
		h.logError(r, "listing compliance records", err)
		shared.WriteError(w, err)
		return
	}

	auditsOut := make([]auditResponse, 0, len(audits))
	for _, audit := range audits {
		auditsOut = append(auditsOut, toAuditResponse(audit))
	}
	violationsOut := make([]violationResponse, 0, len(violations))
	for _, violation := range violations {
		out := violationResponse{
			ID:                  violation.ID.String(),
			ViolationType:       string(violation.ViolationType),
			Severity:            string(violation.Severity),
			Description:         violation.Description,
			AffectedUsersCount:  violation.AffectedUsersCount,
			ReportedToOversight: violation.ReportedToOversight,
			Resolved:            violation.Resolved,
			CreatedAt:           violation.CreatedAt,
		}
		if violation.RelatedAuditID != nil {
			auditID := violation.RelatedAuditID.String()
			out.RelatedAuditID = &auditID
		}
		violationsOut = append(violationsOut, out)
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"audits":     auditsOut,
		"violations": violationsOut,
	})
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING INVESTIGATING RESOLVED IGNORED"`
}

func (h *Handler) updateAuditStatus(w http.ResponseWriter, r *http.Request) {
	auditID, err := uuid.Parse(chi.URLParam(r, "auditID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid audit ID"))
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	ownedBy := uuid.Nil
	principal := middleware.GetPrincipal(r.Context())
	if principal.Role != middleware.RoleStaff {
		org, err := h.resolveOrganization(r)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		ownedBy = org.ID
	}

	audit, err := h.service.UpdateAuditStatus(r.Context(), auditID, models.AuditStatus(req.Status), ownedBy)
	if err != nil {
		h.logError(r, "updating audit status", err)
		shared.WriteError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, toAuditResponse(audit))
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

func (h *Handler) logError(r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		slog.String("request_id", middleware.GetRequestID(r.Context())),
		slog.Any("error", err))
}
