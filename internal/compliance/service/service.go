// Package service orchestrates compliance scans: engine evaluation,
// recording, metrics, and the violation event fan-out.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"truconn/internal/compliance/engine"
	"truconn/internal/compliance/models"
	"truconn/internal/compliance/recorder"
	"truconn/internal/notify"
	"truconn/internal/platform/metrics"
	"truconn/internal/sentinel"
	dErrors "truconn/pkg/domain-errors"
)

// Store is the read/update surface the service needs beyond the recorder.
type Store interface {
	GetAudit(ctx context.Context, id uuid.UUID) (*models.Audit, error)
	UpdateAudit(ctx context.Context, audit *models.Audit) error
	ListAuditsSince(ctx context.Context, organizationID uuid.UUID, since time.Time) ([]*models.Audit, error)
	ListViolationsSince(ctx context.Context, organizationID uuid.UUID, since time.Time) ([]*models.ViolationReport, error)
}

// Notifier publishes violation events.
type Notifier interface {
	Emit(ctx context.Context, event notify.Event)
}

// ScanReport is the API-facing outcome of one scan.
type ScanReport struct {
	Result            models.ScanResult
	AuditsCreated     int
	ViolationsCreated int
}

type Service struct {
	engine   *engine.Engine
	recorder *recorder.Recorder
	store    Store
	window   time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	notifier Notifier
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithWindow overrides the idempotency window used for latest-scan reads.
func WithWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.window = window
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(eng *engine.Engine, rec *recorder.Recorder, store Store, opts ...Option) *Service {
	s := &Service{
		engine:   eng,
		recorder: rec,
		store:    store,
		window:   recorder.DefaultWindow,
		logger:   slog.Default(),
		tracer:   otel.Tracer("truconn/compliance"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs every catalog rule for the organization, records the findings,
// and publishes a violation event when new reports were filed. A failing
// rule evaluation fails the whole scan.
func (s *Service) Scan(ctx context.Context, organizationID uuid.UUID) (ScanReport, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.scan",
		trace.WithAttributes(attribute.String("organization_id", organizationID.String())))
	defer span.End()

	start := s.now()
	result, err := s.engine.RunAllChecks(ctx, organizationID)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementScansFailed()
		}
		return ScanReport{}, dErrors.Wrap(err, dErrors.CodeInternal, "compliance scan failed")
	}

	outcome, err := s.recorder.RecordScan(ctx, result)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementScansFailed()
		}
		return ScanReport{}, dErrors.Wrap(err, dErrors.CodeInternal, "recording scan results failed")
	}

	span.SetAttributes(
		attribute.Int("findings", result.TotalFindings),
		attribute.Int("risk_score", result.RiskScore),
		attribute.Int("audits_created", outcome.AuditsCreated),
	)

	if s.metrics != nil {
		s.metrics.IncrementScansCompleted()
		s.metrics.ObserveRiskScore(result.RiskScore)
		s.metrics.ObserveScanLatency(time.Since(start).Seconds())
		s.metrics.IncrementAuditsCreated(outcome.AuditsCreated)
		s.metrics.IncrementViolationsCreated(outcome.ViolationsCreated)
		for _, finding := range result.Findings {
			s.metrics.IncrementFindings(string(finding.Rule))
		}
	}
	if s.notifier != nil && outcome.ViolationsCreated > 0 {
		s.notifier.Emit(ctx, notify.Event{
			Type:    notify.EventViolationDetected,
			Subject: organizationID.String(),
			Data: map[string]any{
				"violations_created": outcome.ViolationsCreated,
				"risk_score":         result.RiskScore,
			},
		})
	}
	s.logger.InfoContext(ctx, "compliance scan completed",
		slog.String("organization_id", organizationID.String()),
		slog.Int("findings", result.TotalFindings),
		slog.Int("risk_score", result.RiskScore),
		slog.Int("audits_created", outcome.AuditsCreated),
		slog.Int("violations_created", outcome.ViolationsCreated))

	return ScanReport{
		Result:            result,
		AuditsCreated:     outcome.AuditsCreated,
		ViolationsCreated: outcome.ViolationsCreated,
	}, nil
}

// LatestRecords returns the organization's audits and violations within the
// idempotency window, newest first.
func (s *Service) LatestRecords(ctx context.Context, organizationID uuid.UUID) ([]*models.Audit, []*models.ViolationReport, error) {
	since := s.now().Add(-s.window)
	audits, err := s.store.ListAuditsSince(ctx, organizationID, since)
	if err != nil {
		return nil, nil, fmt.Errorf("listing audits: %w", err)
	}
	violations, err := s.store.ListViolationsSince(ctx, organizationID, since)
	if err != nil {
		return nil, nil, fmt.Errorf("listing violations: %w", err)
	}
	return audits, violations, nil
}

// UpdateAuditStatus transitions an audit's investigation state.
// ownedBy restricts the update to the given organization; pass uuid.Nil for
// staff callers, who may update any audit. Moving to RESOLVED stamps the
// resolution time.
func (s *Service) UpdateAuditStatus(ctx context.Context, auditID uuid.UUID, status models.AuditStatus, ownedBy uuid.UUID) (*models.Audit, error) {
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid audit status")
	}

	audit, err := s.store.GetAudit(ctx, auditID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "audit not found")
	}
	if err != nil {
		return nil, fmt.Errorf("finding audit: %w", err)
	}
	if ownedBy != uuid.Nil && audit.OrganizationID != ownedBy {
		return nil, dErrors.New(dErrors.CodeForbidden, "audit belongs to another organization")
	}

	audit.Status = status
	if status == models.AuditResolved {
		resolvedAt := s.now()
		audit.ResolvedAt = &resolvedAt
	} else {
		audit.ResolvedAt = nil
	}
	if err := s.store.UpdateAudit(ctx, audit); err != nil {
		return nil, fmt.Errorf("updating audit: %w", err)
	}

	s.logger.InfoContext(ctx, "audit status updated",
		slog.String("audit_id", auditID.String()),
		slog.String("status", string(status)))
	return audit, nil
}
