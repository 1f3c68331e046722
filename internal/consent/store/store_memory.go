package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"truconn/internal/consent/models"
	"truconn/internal/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// InMemoryStore keeps the consent ledger in memory for tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	types   map[uuid.UUID]*models.ConsentType
	grants  map[string]map[uuid.UUID]*models.Grant
	history []*models.HistoryEntry
}

// New constructs an empty in-memory consent store.
func New() *InMemoryStore {
	return &InMemoryStore{
		types:  make(map[uuid.UUID]*models.ConsentType),
		grants: make(map[string]map[uuid.UUID]*models.Grant),
	}
}

func (s *InMemoryStore) SaveType(_ context.Context, ct *models.ConsentType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyType := *ct
	s.types[ct.ID] = &copyType
	return nil
}

func (s *InMemoryStore) FindType(_ context.Context, id uuid.UUID) (*models.ConsentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ct, ok := s.types[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyType := *ct
	return &copyType, nil
}

func (s *InMemoryStore) ListTypes(_ context.Context) ([]*models.ConsentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]*models.ConsentType, 0, len(s.types))
	for _, ct := range s.types {
		copyType := *ct
		types = append(types, &copyType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	return types, nil
}

// SaveGrantWithHistory upserts the grant and appends its history entry as one
// atomic write. The (user, consent type) pair uniqueness is enforced by the
// map structure.
func (s *InMemoryStore) SaveGrantWithHistory(_ context.Context, grant *models.Grant, entry *models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byType, ok := s.grants[grant.UserID]
	if !ok {
		byType = make(map[uuid.UUID]*models.Grant)
		s.grants[grant.UserID] = byType
	}
	if existing, ok := byType[grant.ConsentTypeID]; ok {
		grant.ID = existing.ID
	}
	copyGrant := *grant
	byType[grant.ConsentTypeID] = &copyGrant

	copyEntry := *entry
	copyEntry.GrantID = grant.ID
	s.history = append(s.history, &copyEntry)
	return nil
}

func (s *InMemoryStore) FindGrant(_ context.Context, userID string, consentTypeID uuid.UUID) (*models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, ok := s.grants[userID][consentTypeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyGrant := *grant
	return &copyGrant, nil
}

func (s *InMemoryStore) ListGrantsByUser(_ context.Context, userID string) ([]*models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var grants []*models.Grant
	for _, grant := range s.grants[userID] {
		copyGrant := *grant
		grants = append(grants, &copyGrant)
	}
	sort.Slice(grants, func(i, j int) bool {
		return grants[i].ConsentTypeID.String() < grants[j].ConsentTypeID.String()
	})
	return grants, nil
}

// ListExpiring returns the user's active grants that carry an expiry date.
// The sweep decides which of them are overdue versus merely close.
func (s *InMemoryStore) ListExpiring(_ context.Context, userID string) ([]*models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var grants []*models.Grant
	for _, grant := range s.grants[userID] {
		if grant.Access && grant.ExpiresAt != nil {
			copyGrant := *grant
			grants = append(grants, &copyGrant)
		}
	}
	return grants, nil
}

func (s *InMemoryStore) ListHistoryByUser(_ context.Context, userID string, consentTypeID *uuid.UUID) ([]*models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grantIDs := make(map[uuid.UUID]struct{})
	for typeID, grant := range s.grants[userID] {
		if consentTypeID != nil && typeID != *consentTypeID {
			continue
		}
		grantIDs[grant.ID] = struct{}{}
	}

	var entries []*models.HistoryEntry
	for _, entry := range s.history {
		if _, ok := grantIDs[entry.GrantID]; ok {
			copyEntry := *entry
			entries = append(entries, &copyEntry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ChangedAt.After(entries[j].ChangedAt) })
	return entries, nil
}

func (s *InMemoryStore) CountGrantsByAccess(_ context.Context) (active int, revoked int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, byType := range s.grants {
		for _, grant := range byType {
			if grant.Access {
				active++
			} else {
				revoked++
			}
		}
	}
	return active, revoked, nil
}

func (s *InMemoryStore) CountHistoryBetween(_ context.Context, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, entry := range s.history {
		if !entry.ChangedAt.Before(from) && entry.ChangedAt.Before(to) {
			count++
		}
	}
	return count, nil
}
