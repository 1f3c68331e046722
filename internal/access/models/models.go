// Package models defines the access request log: one record per attempt by
// an organization to use a user's data under a consent type.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "truconn/pkg/domain-errors"
)

// Status is the citizen-facing decision state of a request.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRevoked  Status = "REVOKED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRevoked:
		return true
	}
	return false
}

// Request records one organization's ask for access to a user's data.
//
// Invariant: at most one request per (organization, user, consent type)
// triple; repeats are conflicts, not duplicates. Purpose is nullable in
// storage because early records predate the purpose requirement, and the
// audit rules key off exactly that gap.
type Request struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	UserID         string
	ConsentTypeID  uuid.UUID
	Status         Status
	Purpose        *string
	RequestedAt    time.Time
	DecidedAt      *time.Time
}

// NewRequest creates a pending request. Purpose is required at creation.
func NewRequest(organizationID uuid.UUID, userID string, consentTypeID uuid.UUID, purpose string, now time.Time) (*Request, error) {
	if organizationID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization ID required")
	}
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user ID required")
	}
	if consentTypeID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consent type ID required")
	}
	trimmed := strings.TrimSpace(purpose)
	if trimmed == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "purpose required")
	}
	return &Request{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		UserID:         userID,
		ConsentTypeID:  consentTypeID,
		Status:         StatusPending,
		Purpose:        &trimmed,
		RequestedAt:    now,
	}, nil
}

// Decide applies a citizen decision to the request.
func (r *Request) Decide(approve bool, now time.Time) {
	if approve {
		r.Status = StatusApproved
	} else {
		r.Status = StatusRevoked
	}
	r.DecidedAt = &now
}
