// Package service implements the access request log: organizations ask,
// citizens decide, and every request stays visible to the user it touches.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"truconn/internal/access/models"
	"truconn/internal/notify"
	"truconn/internal/platform/metrics"
	"truconn/internal/sentinel"
	dErrors "truconn/pkg/domain-errors"
)

// Store is the persistence surface the access service needs.
type Store interface {
	Create(ctx context.Context, req *models.Request) error
	Save(ctx context.Context, req *models.Request) error
	Find(ctx context.Context, id uuid.UUID) (*models.Request, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*models.Request, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Request, error)
}

// Notifier publishes access lifecycle events.
type Notifier interface {
	Emit(ctx context.Context, event notify.Event)
}

type Service struct {
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	notifier Notifier
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

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest records an organization's ask for access to a user's data.
// A repeated (organization, user, consent type) triple is a conflict.
func (s *Service) CreateRequest(ctx context.Context, organizationID uuid.UUID, userID string, consentTypeID uuid.UUID, purpose string) (*models.Request, error) {
	req, err := models.NewRequest(organizationID, userID, consentTypeID, purpose, s.now())
	if err != nil {
		return nil, err
	}

	err = s.store.Create(ctx, req)
	if errors.Is(err, sentinel.ErrConflict) {
		return nil, dErrors.New(dErrors.CodeConflict, "access request already exists for this user and consent type")
	}
	if err != nil {
		return nil, fmt.Errorf("creating access request: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncrementAccessRequestsCreated()
	}
	if s.notifier != nil {
		s.notifier.Emit(ctx, notify.Event{
			Type:    notify.EventAccessRequested,
			Subject: userID,
			Data: map[string]any{
				"request_id":      req.ID.String(),
				"organization_id": organizationID.String(),
			},
		})
	}
	s.logger.InfoContext(ctx, "access request created",
		slog.String("request_id", req.ID.String()),
		slog.String("organization_id", organizationID.String()))
	return req, nil
}

// Decide applies the target user's approve or revoke decision. Only the user
// the request names may decide it.
func (s *Service) Decide(ctx context.Context, requestID uuid.UUID, userID string, approve bool) (*models.Request, error) {
	req, err := s.store.Find(ctx, requestID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "access request not found")
	}
	if err != nil {
		return nil, fmt.Errorf("finding access request: %w", err)
	}
	if req.UserID != userID {
		return nil, dErrors.New(dErrors.CodeForbidden, "access request belongs to another user")
	}

	req.Decide(approve, s.now())
	if err := s.store.Save(ctx, req); err != nil {
		return nil, fmt.Errorf("saving access request decision: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncrementAccessRequestDecisions(string(req.Status))
	}
	if s.notifier != nil {
		s.notifier.Emit(ctx, notify.Event{
			Type:    notify.EventAccessDecided,
			Subject: req.UserID,
			Data: map[string]any{
				"request_id": req.ID.String(),
				"status":     string(req.Status),
			},
		})
	}
	return req, nil
}

// ListByOrganization returns the organization's request log, newest first.
func (s *Service) ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*models.Request, error) {
	requests, err := s.store.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("listing access requests: %w", err)
	}
	return requests, nil
}

// TransparencyLog returns every request that ever touched the user.
func (s *Service) TransparencyLog(ctx context.Context, userID string) ([]*models.Request, error) {
	requests, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user access requests: %w", err)
	}
	return requests, nil
}
