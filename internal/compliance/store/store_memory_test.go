package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"truconn/internal/compliance/models"
)

const testWindow = 30 * 24 * time.Hour

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
	orgID uuid.UUID
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.orgID = uuid.New()
}

func (s *InMemoryStoreSuite) newAudit(status models.AuditStatus, detectedAt time.Time) *models.Audit {
	return &models.Audit{
		ID:             uuid.New(),
		OrganizationID: s.orgID,
		RuleName:       models.RuleAccessControl,
		Severity:       models.SeverityCritical,
		Description:    "more than 10 access requests were revoked by users",
		Status:         status,
		DetectedAt:     detectedAt,
	}
}

func (s *InMemoryStoreSuite) newViolation(resolved bool, createdAt time.Time) *models.ViolationReport {
	return &models.ViolationReport{
		ID:             uuid.New(),
		OrganizationID: s.orgID,
		ViolationType:  models.ViolationAccessControl,
		Severity:       models.SeverityCritical,
		Description:    "access control violation",
		Resolved:       resolved,
		CreatedAt:      createdAt,
	}
}

func (s *InMemoryStoreSuite) TestAuditSuppressedWithinWindow() {
	created, err := s.store.CreateAuditIfAbsent(s.ctx, s.newAudit(models.AuditPending, s.now), testWindow)
	s.Require().NoError(err)
	s.True(created)

	created, err = s.store.CreateAuditIfAbsent(s.ctx, s.newAudit(models.AuditPending, s.now.Add(24*time.Hour)), testWindow)
	s.Require().NoError(err)
	s.False(created)
}

func (s *InMemoryStoreSuite) TestResolvedAuditLiftsSuppression() {
	first := s.newAudit(models.AuditPending, s.now)
	created, err := s.store.CreateAuditIfAbsent(s.ctx, first, testWindow)
	s.Require().NoError(err)
	s.Require().True(created)

	stored, err := s.store.GetAudit(s.ctx, first.ID)
	s.Require().NoError(err)
	resolvedAt := s.now.Add(time.Hour)
	stored.Status = models.AuditResolved
	stored.ResolvedAt = &resolvedAt
	s.Require().NoError(s.store.UpdateAudit(s.ctx, stored))

	created, err = s.store.CreateAuditIfAbsent(s.ctx, s.newAudit(models.AuditPending, s.now.Add(24*time.Hour)), testWindow)
	s.Require().NoError(err)
	s.True(created, "a resolved audit must not suppress a new one")
}

func (s *InMemoryStoreSuite) TestIgnoredAuditStillSuppresses() {
	first := s.newAudit(models.AuditIgnored, s.now)
	created, err := s.store.CreateAuditIfAbsent(s.ctx, first, testWindow)
	s.Require().NoError(err)
	s.Require().True(created)

	created, err = s.store.CreateAuditIfAbsent(s.ctx, s.newAudit(models.AuditPending, s.now.Add(24*time.Hour)), testWindow)
	s.Require().NoError(err)
	s.False(created)
}

func (s *InMemoryStoreSuite) TestResolvedViolationLiftsSuppression() {
	created, err := s.store.CreateViolationIfAbsent(s.ctx, s.newViolation(true, s.now), testWindow)
	s.Require().NoError(err)
	s.Require().True(created)

	created, err = s.store.CreateViolationIfAbsent(s.ctx, s.newViolation(false, s.now.Add(24*time.Hour)), testWindow)
	s.Require().NoError(err)
	s.True(created)

	created, err = s.store.CreateViolationIfAbsent(s.ctx, s.newViolation(false, s.now.Add(48*time.Hour)), testWindow)
	s.Require().NoError(err)
	s.False(created, "an unresolved report still occupies the window")
}
