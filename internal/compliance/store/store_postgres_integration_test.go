//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"truconn/internal/compliance/models"
	"truconn/internal/compliance/store"
	"truconn/pkg/testutil/containers"
)

const idempotencyWindow = 30 * 24 * time.Hour

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	orgID    uuid.UUID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateModuleTables(ctx))
	s.orgID = s.postgres.CreateTestOrganization(ctx, s.T())
}

func (s *PostgresStoreSuite) newAudit(rule models.RuleID, detectedAt time.Time) *models.Audit {
	return &models.Audit{
		ID:             uuid.New(),
		OrganizationID: s.orgID,
		RuleName:       rule,
		Severity:       models.SeverityCritical,
		Description:    "more than 10 access requests were revoked by users",
		Details:        map[string]any{"revoked_request_count": 11},
		Recommendation: "review data practices that lead users to revoke access",
		Status:         models.AuditPending,
		DetectedAt:     detectedAt,
	}
}

// TestConcurrentAuditCreation verifies the unique index backstop: many
// concurrent writers for the same (org, rule, window) yield exactly one row.
func (s *PostgresStoreSuite) TestConcurrentAuditCreation() {
	ctx := context.Background()
	detectedAt := time.Now().UTC()

	const goroutines = 20
	var wg sync.WaitGroup
	var created atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.store.CreateAuditIfAbsent(ctx, s.newAudit(models.RuleAccessControl, detectedAt), idempotencyWindow)
			s.NoError(err)
			if ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())

	var count int
	err := s.postgres.QueryRow(ctx,
		`SELECT COUNT(*) FROM compliance_audits WHERE organization_id = $1`, s.orgID).Scan(&count)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *PostgresStoreSuite) TestAuditWindowRollover() {
	ctx := context.Background()
	// Align to the start of the current epoch bucket so the one-hour offsets
	// below cannot straddle a boundary.
	seconds := int64(idempotencyWindow.Seconds())
	now := time.Unix(time.Now().UTC().Unix()/seconds*seconds, 0).UTC()

	ok, err := s.store.CreateAuditIfAbsent(ctx, s.newAudit(models.RuleRetentionPolicy, now), idempotencyWindow)
	s.Require().NoError(err)
	s.True(ok)

	// Same rule in the same window is suppressed.
	ok, err = s.store.CreateAuditIfAbsent(ctx, s.newAudit(models.RuleRetentionPolicy, now.Add(time.Hour)), idempotencyWindow)
	s.Require().NoError(err)
	s.False(ok)

	// A different rule in the same window is not.
	ok, err = s.store.CreateAuditIfAbsent(ctx, s.newAudit(models.RuleAuditTrail, now), idempotencyWindow)
	s.Require().NoError(err)
	s.True(ok)

	// Past the window boundary the same rule records again.
	ok, err = s.store.CreateAuditIfAbsent(ctx, s.newAudit(models.RuleRetentionPolicy, now.Add(idempotencyWindow+time.Hour)), idempotencyWindow)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *PostgresStoreSuite) TestResolvedAuditLiftsSuppression() {
	ctx := context.Background()
	seconds := int64(idempotencyWindow.Seconds())
	now := time.Unix(time.Now().UTC().Unix()/seconds*seconds, 0).UTC()

	first := s.newAudit(models.RuleAccessControl, now)
	ok, err := s.store.CreateAuditIfAbsent(ctx, first, idempotencyWindow)
	s.Require().NoError(err)
	s.Require().True(ok)

	resolvedAt := now.Add(time.Hour)
	first.Status = models.AuditResolved
	first.ResolvedAt = &resolvedAt
	s.Require().NoError(s.store.UpdateAudit(ctx, first))

	// The partial unique index only covers unresolved rows, so the same
	// (org, rule, bucket) inserts cleanly after resolution.
	ok, err = s.store.CreateAuditIfAbsent(ctx, s.newAudit(models.RuleAccessControl, now.Add(2*time.Hour)), idempotencyWindow)
	s.Require().NoError(err)
	s.True(ok)

	listed, err := s.store.ListAuditsSince(ctx, s.orgID, now.Add(-time.Minute))
	s.Require().NoError(err)
	s.Len(listed, 2)
}

func (s *PostgresStoreSuite) TestViolationDedupAndCounts() {
	ctx := context.Background()
	now := time.Now().UTC()

	violation := func(vt models.ViolationType, resolved bool) *models.ViolationReport {
		return &models.ViolationReport{
			ID:                  uuid.New(),
			OrganizationID:      s.orgID,
			ViolationType:       vt,
			Severity:            models.SeverityCritical,
			Description:         "consent violation detected",
			AffectedUsersCount:  1,
			ReportedToOversight: true,
			Resolved:            resolved,
			CreatedAt:           now,
		}
	}

	ok, err := s.store.CreateViolationIfAbsent(ctx, violation(models.ViolationPrivacyBreach, false), idempotencyWindow)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.CreateViolationIfAbsent(ctx, violation(models.ViolationPrivacyBreach, false), idempotencyWindow)
	s.Require().NoError(err)
	s.False(ok)

	ok, err = s.store.CreateViolationIfAbsent(ctx, violation(models.ViolationConsent, false), idempotencyWindow)
	s.Require().NoError(err)
	s.True(ok)

	count, err := s.store.CountUnresolvedViolations(ctx, s.orgID, models.ViolationPrivacyBreach, models.ViolationAuditFailure)
	s.Require().NoError(err)
	s.Equal(1, count)

	listed, err := s.store.ListViolationsSince(ctx, s.orgID, now.Add(-time.Minute))
	s.Require().NoError(err)
	s.Len(listed, 2)
}

func (s *PostgresStoreSuite) TestUpdateAuditRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC()
	audit := s.newAudit(models.RuleAccessControl, now)

	ok, err := s.store.CreateAuditIfAbsent(ctx, audit, idempotencyWindow)
	s.Require().NoError(err)
	s.Require().True(ok)

	stored, err := s.store.GetAudit(ctx, audit.ID)
	s.Require().NoError(err)
	s.Equal(models.AuditPending, stored.Status)
	s.Equal(float64(11), stored.Details["revoked_request_count"])

	resolvedAt := now.Add(time.Hour)
	stored.Status = models.AuditResolved
	stored.ResolvedAt = &resolvedAt
	s.Require().NoError(s.store.UpdateAudit(ctx, stored))

	reread, err := s.store.GetAudit(ctx, audit.ID)
	s.Require().NoError(err)
	s.Equal(models.AuditResolved, reread.Status)
	s.Require().NotNil(reread.ResolvedAt)
	s.WithinDuration(resolvedAt, *reread.ResolvedAt, time.Second)

	open, err := s.store.CountOpenCriticalAudits(ctx)
	s.Require().NoError(err)
	s.Zero(open)
}
