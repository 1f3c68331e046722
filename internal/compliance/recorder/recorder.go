// Package recorder turns ephemeral scan findings into persisted audit and
// violation records, idempotently within a trailing window.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"truconn/internal/compliance/engine"
	"truconn/internal/compliance/models"
)

// DefaultWindow is the trailing idempotency window for audit and violation
// creation.
const DefaultWindow = 30 * 24 * time.Hour

// Store is the persistence surface the recorder needs.
type Store interface {
	CreateAuditIfAbsent(ctx context.Context, audit *models.Audit, window time.Duration) (bool, error)
	CreateViolationIfAbsent(ctx context.Context, violation *models.ViolationReport, window time.Duration) (bool, error)
}

// Outcome summarizes what one RecordScan call persisted.
type Outcome struct {
	AuditsCreated     int
	ViolationsCreated int
	AuditIDs          []uuid.UUID
	ViolationIDs      []uuid.UUID
}

type Recorder struct {
	store   Store
	catalog engine.Catalog
	window  time.Duration
	logger  *slog.Logger
}

type Option func(*Recorder)

// WithWindow overrides the idempotency window.
func WithWindow(window time.Duration) Option {
	return func(r *Recorder) {
		if window > 0 {
			r.window = window
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

func New(store Store, catalog engine.Catalog, opts ...Option) *Recorder {
	r := &Recorder{
		store:   store,
		catalog: catalog,
		window:  DefaultWindow,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordScan persists the scan's findings. Per finding it creates an audit
// unless one for the same (organization, rule) pair exists within the
// window, and for CRITICAL/HIGH findings a violation report keyed
// independently by (organization, violation type). A violation links back
// to its audit only when this scan created that audit.
func (r *Recorder) RecordScan(ctx context.Context, result models.ScanResult) (Outcome, error) {
	var outcome Outcome
	auditByRule := make(map[models.RuleID]uuid.UUID)

	for _, finding := range result.Findings {
		rule, ok := r.catalog.Lookup(finding.Rule)
		if !ok {
			// a finding from a rule the catalog no longer carries is a
			// programming error in the caller, not a scan failure
			r.logger.WarnContext(ctx, "finding for unknown rule skipped",
				slog.String("rule", string(finding.Rule)))
			continue
		}

		audit := &models.Audit{
			ID:             uuid.New(),
			OrganizationID: result.OrganizationID,
			RuleName:       rule.ID,
			Severity:       rule.Severity,
			Description:    finding.Description,
			Details:        finding.Details,
			Recommendation: rule.Recommendation,
			Status:         models.AuditPending,
			DetectedAt:     result.ScannedAt,
		}
		created, err := r.store.CreateAuditIfAbsent(ctx, audit, r.window)
		if err != nil {
			return Outcome{}, fmt.Errorf("recording audit for %s: %w", rule.ID, err)
		}
		if created {
			outcome.AuditsCreated++
			outcome.AuditIDs = append(outcome.AuditIDs, audit.ID)
			auditByRule[rule.ID] = audit.ID
		}

		if rule.Severity != models.SeverityCritical && rule.Severity != models.SeverityHigh {
			continue
		}

		violation := &models.ViolationReport{
			ID:                  uuid.New(),
			OrganizationID:      result.OrganizationID,
			ViolationType:       models.ViolationTypeFor(rule.ID),
			Severity:            rule.Severity,
			Description:         finding.Description,
			AffectedUsersCount:  affectedCount(finding.Details),
			ReportedToOversight: rule.Severity == models.SeverityCritical,
			CreatedAt:           result.ScannedAt,
		}
		if auditID, ok := auditByRule[rule.ID]; ok {
			violation.RelatedAuditID = &auditID
		}
		created, err = r.store.CreateViolationIfAbsent(ctx, violation, r.window)
		if err != nil {
			return Outcome{}, fmt.Errorf("recording violation for %s: %w", rule.ID, err)
		}
		if created {
			outcome.ViolationsCreated++
			outcome.ViolationIDs = append(outcome.ViolationIDs, violation.ID)
		}
	}
	return outcome, nil
}

// affectedCount is 1 when the finding names a concrete subject, 0 for
// aggregate findings.
func affectedCount(details map[string]any) int {
	if details == nil {
		return 0
	}
	if _, ok := details["user_id"]; ok {
		return 1
	}
	if _, ok := details["access_request_id"]; ok {
		return 1
	}
	return 0
}
