package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "truconn/pkg/domain-errors"
)

// ConsentType is a named category of personal data (e.g. "location", "health").
// Immutable once created; referenced by id everywhere else.
type ConsentType struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// HistoryAction enumerates the transitions recorded in the consent history.
type HistoryAction string

const (
	ActionGranted HistoryAction = "GRANTED"
	ActionRevoked HistoryAction = "REVOKED"
	ActionExpired HistoryAction = "EXPIRED"
)

// History entry reasons.
const (
	ReasonInitialCreation = "initial consent creation"
	ReasonUserToggle      = "user consent change"
	ReasonExpirySweep     = "consent expired"
)

// Grant captures a user's permission state for one consent type.
//
// Invariant: at most one record per (user, consent type). The store layer
// enforces the pair uniqueness; the service enforces that only the owning
// user (or the expiry sweep) mutates it.
type Grant struct {
	ID            uuid.UUID
	UserID        string
	ConsentTypeID uuid.UUID
	Access        bool
	GrantedAt     *time.Time
	RevokedAt     *time.Time
	ExpiresAt     *time.Time
	DurationDays  *int
}

// NewGrant creates an initial (revoked) grant with domain invariant checks.
func NewGrant(userID string, consentTypeID uuid.UUID) (*Grant, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user ID required")
	}
	if consentTypeID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consent type ID required")
	}
	return &Grant{
		ID:            uuid.New(),
		UserID:        userID,
		ConsentTypeID: consentTypeID,
	}, nil
}

// IsExpired reports whether the grant has an expiry in the past.
func (g Grant) IsExpired(now time.Time) bool {
	return g.ExpiresAt != nil && g.ExpiresAt.Before(now)
}

// IsActive reports whether the grant currently permits access.
func (g Grant) IsActive(now time.Time) bool {
	return g.Access && !g.IsExpired(now)
}

// DaysUntilExpiry returns the whole days remaining before expiry, or -1 when
// the grant has no expiry set.
func (g Grant) DaysUntilExpiry(now time.Time) int {
	if g.ExpiresAt == nil {
		return -1
	}
	delta := g.ExpiresAt.Sub(now)
	if delta <= 0 {
		return 0
	}
	return int(delta.Hours() / 24)
}

// HistoryEntry is an append-only record of one transition on a Grant.
// Entries are never updated or deleted.
type HistoryEntry struct {
	ID            uuid.UUID
	GrantID       uuid.UUID
	Action        HistoryAction
	PreviousValue *bool
	NewValue      bool
	ChangedAt     time.Time
	ChangedBy     string
	Reason        string
}

// Toggle flips the grant's access flag and returns the updated grant together
// with the history entry describing the transition. The caller persists both
// as a single atomic write; nothing here touches storage.
//
// On flip to granted: GrantedAt is set, RevokedAt cleared, and ExpiresAt
// computed from DurationDays when present. On flip to revoked: RevokedAt set.
func (g Grant) Toggle(now time.Time, actor, reason string) (Grant, HistoryEntry) {
	previous := g.Access
	updated := g
	updated.Access = !g.Access

	if updated.Access {
		updated.GrantedAt = &now
		updated.RevokedAt = nil
		if g.DurationDays != nil {
			expiry := now.Add(time.Duration(*g.DurationDays) * 24 * time.Hour)
			updated.ExpiresAt = &expiry
		}
	} else {
		updated.RevokedAt = &now
	}

	action := ActionRevoked
	if updated.Access {
		action = ActionGranted
	}

	entry := HistoryEntry{
		ID:            uuid.New(),
		GrantID:       g.ID,
		Action:        action,
		PreviousValue: &previous,
		NewValue:      updated.Access,
		ChangedAt:     now,
		ChangedBy:     actor,
		Reason:        reason,
	}
	return updated, entry
}

// Expire forces an active grant to revoked on behalf of the expiry sweep.
// Like Toggle it returns the updated grant and the history entry; the pair
// must be persisted atomically.
func (g Grant) Expire(now time.Time) (Grant, HistoryEntry) {
	previous := g.Access
	updated := g
	updated.Access = false
	updated.RevokedAt = &now

	entry := HistoryEntry{
		ID:            uuid.New(),
		GrantID:       g.ID,
		Action:        ActionExpired,
		PreviousValue: &previous,
		NewValue:      false,
		ChangedAt:     now,
		Reason:        ReasonExpirySweep,
	}
	return updated, entry
}
