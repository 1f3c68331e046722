// Package service implements the consent ledger operations: toggling a
// user's consent per type, sweeping expired grants, and reading back
// status and history.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"truconn/internal/consent/models"
	"truconn/internal/notify"
	"truconn/internal/platform/metrics"
	"truconn/internal/sentinel"
	dErrors "truconn/pkg/domain-errors"
)

// expiringSoonDays is the warning horizon reported by the expiry sweep.
const expiringSoonDays = 7

// Store is the persistence surface the consent service needs.
type Store interface {
	SaveType(ctx context.Context, ct *models.ConsentType) error
	FindType(ctx context.Context, id uuid.UUID) (*models.ConsentType, error)
	ListTypes(ctx context.Context) ([]*models.ConsentType, error)
	SaveGrantWithHistory(ctx context.Context, grant *models.Grant, entry *models.HistoryEntry) error
	FindGrant(ctx context.Context, userID string, consentTypeID uuid.UUID) (*models.Grant, error)
	ListGrantsByUser(ctx context.Context, userID string) ([]*models.Grant, error)
	ListExpiring(ctx context.Context, userID string) ([]*models.Grant, error)
	ListHistoryByUser(ctx context.Context, userID string, consentTypeID *uuid.UUID) ([]*models.HistoryEntry, error)
}

// Notifier publishes consent lifecycle events.
type Notifier interface {
	Emit(ctx context.Context, event notify.Event)
}

// GrantStatus is a grant joined with its consent type for API responses.
type GrantStatus struct {
	Grant       models.Grant
	ConsentType models.ConsentType
}

// ExpiryReport is the outcome of one expiry sweep for a user.
type ExpiryReport struct {
	Expired      []GrantStatus
	ExpiringSoon []ExpiringGrant
}

// ExpiringGrant is an active grant within the warning horizon.
type ExpiringGrant struct {
	Status        GrantStatus
	DaysRemaining int
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
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
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

// ToggleConsent flips the caller's consent for the given type, creating the
// grant on first use. durationDays, when set, becomes the grant's expiry
// window on every future activation.
func (s *Service) ToggleConsent(ctx context.Context, userID string, consentTypeID uuid.UUID, durationDays *int) (GrantStatus, error) {
	start := s.now()

	ct, err := s.store.FindType(ctx, consentTypeID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return GrantStatus{}, dErrors.New(dErrors.CodeNotFound, "consent type not found")
	}
	if err != nil {
		return GrantStatus{}, fmt.Errorf("finding consent type: %w", err)
	}

	if durationDays != nil && *durationDays <= 0 {
		return GrantStatus{}, dErrors.New(dErrors.CodeInvalidInput, "duration days must be positive")
	}

	reason := models.ReasonUserToggle
	grant, err := s.store.FindGrant(ctx, userID, consentTypeID)
	if errors.Is(err, sentinel.ErrNotFound) {
		grant, err = models.NewGrant(userID, consentTypeID)
		if err != nil {
			return GrantStatus{}, err
		}
		reason = models.ReasonInitialCreation
	} else if err != nil {
		return GrantStatus{}, fmt.Errorf("finding consent grant: %w", err)
	}
	if durationDays != nil {
		grant.DurationDays = durationDays
	}

	updated, entry := grant.Toggle(start, userID, reason)
	if err := s.store.SaveGrantWithHistory(ctx, &updated, &entry); err != nil {
		return GrantStatus{}, fmt.Errorf("saving consent grant: %w", err)
	}

	eventType := notify.EventConsentRevoked
	if updated.Access {
		eventType = notify.EventConsentGranted
	}
	if s.notifier != nil {
		s.notifier.Emit(ctx, notify.Event{
			Type:    eventType,
			Subject: userID,
			Data:    map[string]any{"consent_type": ct.Name},
		})
	}
	if s.metrics != nil {
		if updated.Access {
			s.metrics.IncrementConsentsGranted(ct.Name)
		} else {
			s.metrics.IncrementConsentsRevoked(ct.Name)
		}
		s.metrics.ObserveConsentToggleLatency(time.Since(start).Seconds())
	}
	s.logger.InfoContext(ctx, "consent toggled",
		slog.String("user_id", userID),
		slog.String("consent_type", ct.Name),
		slog.Bool("access", updated.Access))

	return GrantStatus{Grant: updated, ConsentType: *ct}, nil
}

// CheckExpiry force-revokes the user's overdue grants, writing an expiry
// history entry for each, and reports active grants expiring within the
// warning horizon without mutating them.
func (s *Service) CheckExpiry(ctx context.Context, userID string) (ExpiryReport, error) {
	now := s.now()
	grants, err := s.store.ListExpiring(ctx, userID)
	if err != nil {
		return ExpiryReport{}, fmt.Errorf("listing expiring grants: %w", err)
	}

	var report ExpiryReport
	for _, grant := range grants {
		status, err := s.joinType(ctx, *grant)
		if err != nil {
			return ExpiryReport{}, err
		}
		if grant.IsExpired(now) {
			updated, entry := grant.Expire(now)
			if err := s.store.SaveGrantWithHistory(ctx, &updated, &entry); err != nil {
				return ExpiryReport{}, fmt.Errorf("expiring grant: %w", err)
			}
			status.Grant = updated
			report.Expired = append(report.Expired, status)
			if s.notifier != nil {
				s.notifier.Emit(ctx, notify.Event{
					Type:    notify.EventConsentExpired,
					Subject: userID,
					Data:    map[string]any{"consent_type": status.ConsentType.Name},
				})
			}
			continue
		}
		if days := grant.DaysUntilExpiry(now); days >= 0 && days <= expiringSoonDays {
			report.ExpiringSoon = append(report.ExpiringSoon, ExpiringGrant{
				Status:        status,
				DaysRemaining: days,
			})
		}
	}

	if len(report.Expired) > 0 {
		if s.metrics != nil {
			s.metrics.IncrementConsentsExpired(len(report.Expired))
		}
		s.logger.InfoContext(ctx, "expiry sweep revoked grants",
			slog.String("user_id", userID),
			slog.Int("expired", len(report.Expired)))
	}
	return report, nil
}

// ListStatus returns the user's grants joined with their consent types.
func (s *Service) ListStatus(ctx context.Context, userID string) ([]GrantStatus, error) {
	grants, err := s.store.ListGrantsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing consent grants: %w", err)
	}
	statuses := make([]GrantStatus, 0, len(grants))
	for _, grant := range grants {
		status, err := s.joinType(ctx, *grant)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// ListTypes returns the consent type registry.
func (s *Service) ListTypes(ctx context.Context) ([]*models.ConsentType, error) {
	return s.store.ListTypes(ctx)
}

// History returns the user's consent trail, newest first, optionally
// filtered to one consent type.
func (s *Service) History(ctx context.Context, userID string, consentTypeID *uuid.UUID) ([]*models.HistoryEntry, error) {
	entries, err := s.store.ListHistoryByUser(ctx, userID, consentTypeID)
	if err != nil {
		return nil, fmt.Errorf("listing consent history: %w", err)
	}
	return entries, nil
}

func (s *Service) joinType(ctx context.Context, grant models.Grant) (GrantStatus, error) {
	ct, err := s.store.FindType(ctx, grant.ConsentTypeID)
	if err != nil {
		return GrantStatus{}, fmt.Errorf("finding consent type: %w", err)
	}
	return GrantStatus{Grant: grant, ConsentType: *ct}, nil
}
