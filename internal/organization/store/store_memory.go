package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"truconn/internal/organization/models"
	"truconn/internal/sentinel"
)

// InMemoryStore keeps the organization directory in memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	orgs map[uuid.UUID]*models.Organization
}

func New() *InMemoryStore {
	return &InMemoryStore{orgs: make(map[uuid.UUID]*models.Organization)}
}

func (s *InMemoryStore) Save(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyOrg := *org
	s.orgs[org.ID] = &copyOrg
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyOrg := *org
	return &copyOrg, nil
}

func (s *InMemoryStore) FindByOwner(_ context.Context, ownerUserID string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, org := range s.orgs {
		if org.OwnerUserID == ownerUserID {
			copyOrg := *org
			return &copyOrg, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orgs := make([]*models.Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		copyOrg := *org
		orgs = append(orgs, &copyOrg)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].Name < orgs[j].Name })
	return orgs, nil
}

// UpdateTrustSnapshot applies the computed score under the store lock so
// concurrent recomputations cannot interleave the certificate transition.
func (s *InMemoryStore) UpdateTrustSnapshot(_ context.Context, id uuid.UUID, score float64, level string, calculatedAt time.Time) (models.CertificateChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return models.CertificateUnchanged, sentinel.ErrNotFound
	}
	return org.ApplyTrustSnapshot(score, level, calculatedAt), nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orgs), nil
}

func (s *InMemoryStore) CountVerified(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, org := range s.orgs {
		if org.IsVerified {
			count++
		}
	}
	return count, nil
}
