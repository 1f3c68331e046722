// Package models defines the organization directory records, including the
// persisted trust snapshot and certificate state.
package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "truconn/pkg/domain-errors"
)

// certificateThreshold is the trust score at or above which an organization
// holds a data handling certificate.
const certificateThreshold = 75.0

// Organization is a registered data-requesting entity.
type Organization struct {
	ID                  uuid.UUID
	OwnerUserID         string
	Name                string
	Email               string
	Website             string
	Address             string
	IsVerified          bool
	TrustScore          float64
	TrustLevel          string
	LastCalculated      *time.Time
	CertificateIssued   bool
	CertificateIssuedAt *time.Time
	CreatedAt           time.Time
}

// New creates an organization with invariant checks.
func New(ownerUserID, name, email string) (*Organization, error) {
	if ownerUserID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner user ID required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization name required")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization email required")
	}
	now := time.Now().UTC()
	return &Organization{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		Name:        name,
		Email:       email,
		TrustScore:  50.0,
		TrustLevel:  "BASIC",
		CreatedAt:   now,
	}, nil
}

// CertificateChange describes what ApplyTrustSnapshot did to the
// certificate state.
type CertificateChange int

const (
	CertificateUnchanged CertificateChange = iota
	CertificateIssued
	CertificateRevoked
)

// ApplyTrustSnapshot records a freshly computed trust score and level on the
// organization and transitions the certificate state:
//
//   - score >= 75 and no certificate: issue one, stamped at calculation time
//   - score >= 75 and certificate already held: keep the original issue time
//   - score < 75 and certificate held: clear the certificate and its stamp
//
// The returned change lets callers count issue/revoke transitions.
func (o *Organization) ApplyTrustSnapshot(score float64, level string, calculatedAt time.Time) CertificateChange {
	o.TrustScore = score
	o.TrustLevel = level
	o.LastCalculated = &calculatedAt

	switch {
	case score >= certificateThreshold && !o.CertificateIssued:
		o.CertificateIssued = true
		o.CertificateIssuedAt = &calculatedAt
		return CertificateIssued
	case score < certificateThreshold && o.CertificateIssued:
		o.CertificateIssued = false
		o.CertificateIssuedAt = nil
		return CertificateRevoked
	default:
		return CertificateUnchanged
	}
}
