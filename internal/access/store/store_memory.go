package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"truconn/internal/access/models"
	"truconn/internal/sentinel"
)

type tripleKey struct {
	org     uuid.UUID
	user    string
	consent uuid.UUID
}

// InMemoryStore keeps the access request log in memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*models.Request
	byTriple map[tripleKey]uuid.UUID
}

func New() *InMemoryStore {
	return &InMemoryStore{
		requests: make(map[uuid.UUID]*models.Request),
		byTriple: make(map[tripleKey]uuid.UUID),
	}
}

// Create inserts the request, returning ErrConflict when the
// (organization, user, consent type) triple already exists.
func (s *InMemoryStore) Create(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tripleKey{org: req.OrganizationID, user: req.UserID, consent: req.ConsentTypeID}
	if _, exists := s.byTriple[key]; exists {
		return sentinel.ErrConflict
	}
	copyReq := *req
	s.requests[req.ID] = &copyReq
	s.byTriple[key] = req.ID
	return nil
}

func (s *InMemoryStore) Save(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copyReq := *req
	s.requests[req.ID] = &copyReq
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, id uuid.UUID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyReq := *req
	return &copyReq, nil
}

func (s *InMemoryStore) ListByOrganization(_ context.Context, organizationID uuid.UUID) ([]*models.Request, error) {
	return s.list(func(req *models.Request) bool { return req.OrganizationID == organizationID })
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID string) ([]*models.Request, error) {
	return s.list(func(req *models.Request) bool { return req.UserID == userID })
}

func (s *InMemoryStore) list(match func(*models.Request) bool) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Request
	for _, req := range s.requests {
		if match(req) {
			copyReq := *req
			out = append(out, &copyReq)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (s *InMemoryStore) CountByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Status]int)
	for _, req := range s.requests {
		counts[req.Status]++
	}
	return counts, nil
}

func (s *InMemoryStore) CountCreatedBetween(_ context.Context, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, req := range s.requests {
		if !req.RequestedAt.Before(from) && req.RequestedAt.Before(to) {
			count++
		}
	}
	return count, nil
}
