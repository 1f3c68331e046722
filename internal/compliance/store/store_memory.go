package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"truconn/internal/compliance/models"
	"truconn/internal/sentinel"
)

// InMemoryStore keeps audits and violation reports in memory. The mutex makes
// the check-then-create idempotency path atomic, matching what the unique
// index gives the postgres store.
type InMemoryStore struct {
	mu         sync.RWMutex
	audits     map[uuid.UUID]*models.Audit
	violations map[uuid.UUID]*models.ViolationReport
}

func New() *InMemoryStore {
	return &InMemoryStore{
		audits:     make(map[uuid.UUID]*models.Audit),
		violations: make(map[uuid.UUID]*models.ViolationReport),
	}
}

// CreateAuditIfAbsent inserts the audit unless an unresolved one for the same
// (organization, rule) pair was detected within the trailing window. A
// RESOLVED audit lifts the suppression: the finding persisting after
// resolution is a new occurrence. It reports whether a row was created.
func (s *InMemoryStore) CreateAuditIfAbsent(_ context.Context, audit *models.Audit, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := audit.DetectedAt.Add(-window)
	for _, existing := range s.audits {
		if existing.OrganizationID == audit.OrganizationID &&
			existing.RuleName == audit.RuleName &&
			existing.Status != models.AuditResolved &&
			!existing.DetectedAt.Before(cutoff) {
			return false, nil
		}
	}
	copyAudit := *audit
	s.audits[audit.ID] = &copyAudit
	return true, nil
}

// CreateViolationIfAbsent mirrors CreateAuditIfAbsent, keyed by
// (organization, violation type); resolved reports likewise lift the
// suppression.
func (s *InMemoryStore) CreateViolationIfAbsent(_ context.Context, violation *models.ViolationReport, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := violation.CreatedAt.Add(-window)
	for _, existing := range s.violations {
		if existing.OrganizationID == violation.OrganizationID &&
			existing.ViolationType == violation.ViolationType &&
			!existing.Resolved &&
			!existing.CreatedAt.Before(cutoff) {
			return false, nil
		}
	}
	copyViolation := *violation
	s.violations[violation.ID] = &copyViolation
	return true, nil
}

func (s *InMemoryStore) GetAudit(_ context.Context, id uuid.UUID) (*models.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	audit, ok := s.audits[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyAudit := *audit
	return &copyAudit, nil
}

func (s *InMemoryStore) UpdateAudit(_ context.Context, audit *models.Audit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.audits[audit.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copyAudit := *audit
	s.audits[audit.ID] = &copyAudit
	return nil
}

func (s *InMemoryStore) ListAuditsSince(_ context.Context, organizationID uuid.UUID, since time.Time) ([]*models.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var audits []*models.Audit
	for _, audit := range s.audits {
		if audit.OrganizationID == organizationID && !audit.DetectedAt.Before(since) {
			copyAudit := *audit
			audits = append(audits, &copyAudit)
		}
	}
	sort.Slice(audits, func(i, j int) bool { return audits[i].DetectedAt.After(audits[j].DetectedAt) })
	return audits, nil
}

func (s *InMemoryStore) ListViolationsSince(_ context.Context, organizationID uuid.UUID, since time.Time) ([]*models.ViolationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var violations []*models.ViolationReport
	for _, violation := range s.violations {
		if violation.OrganizationID == organizationID && !violation.CreatedAt.Before(since) {
			copyViolation := *violation
			violations = append(violations, &copyViolation)
		}
	}
	sort.Slice(violations, func(i, j int) bool { return violations[i].CreatedAt.After(violations[j].CreatedAt) })
	return violations, nil
}

// CountUnresolvedViolations counts the organization's open reports among the
// given violation types.
func (s *InMemoryStore) CountUnresolvedViolations(_ context.Context, organizationID uuid.UUID, types ...models.ViolationType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[models.ViolationType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	count := 0
	for _, violation := range s.violations {
		if violation.OrganizationID == organizationID && !violation.Resolved && wanted[violation.ViolationType] {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) CountAudits(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audits), nil
}

func (s *InMemoryStore) CountAuditsBetween(_ context.Context, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, audit := range s.audits {
		if !audit.DetectedAt.Before(from) && audit.DetectedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) CountOpenCriticalAudits(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, audit := range s.audits {
		if audit.Severity == models.SeverityCritical &&
			audit.Status != models.AuditResolved && audit.Status != models.AuditIgnored {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) CountAuditsResolvedBetween(_ context.Context, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, audit := range s.audits {
		if audit.ResolvedAt != nil && !audit.ResolvedAt.Before(from) && audit.ResolvedAt.Before(to) {
			count++
		}
	}
	return count, nil
}
