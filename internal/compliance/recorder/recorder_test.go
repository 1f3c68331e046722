package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"truconn/internal/compliance/engine"
	"truconn/internal/compliance/models"
	"truconn/internal/compliance/store"
)

type RecorderSuite struct {
	suite.Suite
	store    *store.InMemoryStore
	recorder *Recorder
	ctx      context.Context
	now      time.Time
	orgID    uuid.UUID
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.store = store.New()
	s.recorder = New(s.store, engine.DefaultCatalog())
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.orgID = uuid.New()
}

func (s *RecorderSuite) scanResult(findings ...models.Finding) models.ScanResult {
	return models.ScanResult{
		OrganizationID: s.orgID,
		Findings:       findings,
		ScannedAt:      s.now,
	}
}

func (s *RecorderSuite) TestRecordScanCreatesAuditAndViolation() {
	result := s.scanResult(models.Finding{
		Rule:        models.RuleRevocationHandling,
		Severity:    models.SeverityCritical,
		Description: "approved access request without valid consent",
		Details:     map[string]any{"user_id": "usr-1", "access_request_id": uuid.NewString()},
	})

	outcome, err := s.recorder.RecordScan(s.ctx, result)
	s.Require().NoError(err)
	s.Equal(1, outcome.AuditsCreated)
	s.Equal(1, outcome.ViolationsCreated)

	audits, err := s.store.ListAuditsSince(s.ctx, s.orgID, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Require().Len(audits, 1)
	s.Equal(models.AuditPending, audits[0].Status)
	s.Equal(models.SeverityCritical, audits[0].Severity)

	violations, err := s.store.ListViolationsSince(s.ctx, s.orgID, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Require().Len(violations, 1)
	s.Equal(models.ViolationConsent, violations[0].ViolationType)
	s.True(violations[0].ReportedToOversight)
	s.Equal(1, violations[0].AffectedUsersCount)
	s.Require().NotNil(violations[0].RelatedAuditID)
	s.Equal(audits[0].ID, *violations[0].RelatedAuditID)
}

func (s *RecorderSuite) TestSecondScanWithinWindowCreatesNothing() {
	result := s.scanResult(
		models.Finding{Rule: models.RuleRevocationHandling, Severity: models.SeverityCritical,
			Details: map[string]any{"user_id": "usr-1"}},
		models.Finding{Rule: models.RuleAuditTrail, Severity: models.SeverityHigh,
			Details: map[string]any{"missing_purpose_count": 3}},
	)

	first, err := s.recorder.RecordScan(s.ctx, result)
	s.Require().NoError(err)
	s.Equal(2, first.AuditsCreated)
	s.Equal(2, first.ViolationsCreated)

	result.ScannedAt = s.now.Add(24 * time.Hour)
	second, err := s.recorder.RecordScan(s.ctx, result)
	s.Require().NoError(err)
	s.Zero(second.AuditsCreated)
	s.Zero(second.ViolationsCreated)
}

func (s *RecorderSuite) TestScanAfterResolutionCreatesAgainWithinWindow() {
	result := s.scanResult(models.Finding{
		Rule: models.RuleAccessControl, Severity: models.SeverityCritical,
		Details: map[string]any{"revoked_request_count": 12},
	})

	first, err := s.recorder.RecordScan(s.ctx, result)
	s.Require().NoError(err)
	s.Require().Equal(1, first.AuditsCreated)

	audit, err := s.store.GetAudit(s.ctx, first.AuditIDs[0])
	s.Require().NoError(err)
	resolvedAt := s.now.Add(time.Hour)
	audit.Status = models.AuditResolved
	audit.ResolvedAt = &resolvedAt
	s.Require().NoError(s.store.UpdateAudit(s.ctx, audit))

	result.ScannedAt = s.now.Add(24 * time.Hour)
	second, err := s.recorder.RecordScan(s.ctx, result)
	s.Require().NoError(err)
	s.Equal(1, second.AuditsCreated, "resolving an audit lifts the window suppression")

	audits, err := s.store.ListAuditsSince(s.ctx, s.orgID, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Len(audits, 2)
}

func (s *RecorderSuite) TestScanAfterWindowCreatesAgain() {
	result := s.scanResult(models.Finding{
		Rule: models.RuleAccessControl, Severity: models.SeverityCritical,
		Details: map[string]any{"revoked_request_count": 12},
	})

	_, err := s.recorder.RecordScan(s.ctx, result)
	s.Require().NoError(err)

	result.ScannedAt = s.now.Add(DefaultWindow + time.Hour)
	outcome, err := s.recorder.RecordScan(s.ctx, result)
	s.Require().NoError(err)
	s.Equal(1, outcome.AuditsCreated)
	s.Equal(1, outcome.ViolationsCreated)
}

func (s *RecorderSuite) TestMediumFindingsFileNoViolation() {
	result := s.scanResult(models.Finding{
		Rule: models.RuleRetentionPolicy, Severity: models.SeverityMedium,
		Details: map[string]any{"overdue_request_count": 2},
	})

	outcome, err := s.recorder.RecordScan(s.ctx, result)
	s.Require().NoError(err)
	s.Equal(1, outcome.AuditsCreated)
	s.Zero(outcome.ViolationsCreated)
}

func (s *RecorderSuite) TestHighFindingNotReportedToOversight() {
	result := s.scanResult(models.Finding{
		Rule: models.RuleAuditTrail, Severity: models.SeverityHigh,
		Details: map[string]any{"missing_purpose_count": 1},
	})

	_, err := s.recorder.RecordScan(s.ctx, result)
	s.Require().NoError(err)

	violations, err := s.store.ListViolationsSince(s.ctx, s.orgID, s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Require().Len(violations, 1)
	s.False(violations[0].ReportedToOversight)
	s.Equal(models.ViolationPrivacyBreach, violations[0].ViolationType)
	s.Zero(violations[0].AffectedUsersCount)
}

func (s *RecorderSuite) TestPerRequestFindingsShareOneAuditPerRule() {
	result := s.scanResult(
		models.Finding{Rule: models.RuleRevocationHandling, Severity: models.SeverityCritical,
			Details: map[string]any{"user_id": "usr-1"}},
		models.Finding{Rule: models.RuleRevocationHandling, Severity: models.SeverityCritical,
			Details: map[string]any{"user_id": "usr-2"}},
	)

	outcome, err := s.recorder.RecordScan(s.ctx, result)
	s.Require().NoError(err)
	s.Equal(1, outcome.AuditsCreated)
	s.Equal(1, outcome.ViolationsCreated)
}
