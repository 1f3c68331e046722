// Package models defines the compliance scan vocabulary: rules, findings,
// audit records, and violation reports.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity grades a rule or a finding.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// RuleID names a compliance rule.
type RuleID string

const (
	RuleConsentValidity    RuleID = "CONSENT_VALIDITY"
	RulePurposeLimitation  RuleID = "PURPOSE_LIMITATION"
	RuleDataMinimization   RuleID = "DATA_MINIMIZATION"
	RuleRetentionPolicy    RuleID = "RETENTION_POLICY"
	RuleAccessControl      RuleID = "ACCESS_CONTROL"
	RuleAuditTrail         RuleID = "AUDIT_TRAIL"
	RuleRevocationHandling RuleID = "REVOCATION_HANDLING"
	RuleExcessiveRequests  RuleID = "EXCESSIVE_REQUESTS"
)

// ViolationType classifies a violation report for oversight reporting.
type ViolationType string

const (
	ViolationConsent           ViolationType = "CONSENT_VIOLATION"
	ViolationAccessControl     ViolationType = "ACCESS_CONTROL"
	ViolationDataRetention     ViolationType = "DATA_RETENTION"
	ViolationPurposeLimitation ViolationType = "PURPOSE_LIMITATION"
	ViolationPrivacyBreach     ViolationType = "PRIVACY_BREACH"
	ViolationAuditFailure      ViolationType = "AUDIT_FAILURE"
)

// ViolationTypeFor maps a rule to the violation type filed for it. Rules
// without a dedicated type fall back to PRIVACY_BREACH.
func ViolationTypeFor(rule RuleID) ViolationType {
	switch rule {
	case RuleConsentValidity, RuleRevocationHandling:
		return ViolationConsent
	case RuleAccessControl:
		return ViolationAccessControl
	case RuleRetentionPolicy:
		return ViolationDataRetention
	case RulePurposeLimitation:
		return ViolationPurposeLimitation
	default:
		return ViolationPrivacyBreach
	}
}

// Finding is one rule hit against one subject during a scan.
type Finding struct {
	Rule           RuleID
	Severity       Severity
	Description    string
	Details        map[string]any
	Recommendation string
}

// ScanResult aggregates one engine pass over an organization's data.
type ScanResult struct {
	OrganizationID uuid.UUID
	Findings       []Finding
	RiskScore      int
	TotalFindings  int
	CriticalCount  int
	HighCount      int
	MediumCount    int
	LowCount       int
	ScannedAt      time.Time
}

// AuditStatus is the investigation state of an audit record.
type AuditStatus string

const (
	AuditPending       AuditStatus = "PENDING"
	AuditInvestigating AuditStatus = "INVESTIGATING"
	AuditResolved      AuditStatus = "RESOLVED"
	AuditIgnored       AuditStatus = "IGNORED"
)

func (s AuditStatus) IsValid() bool {
	switch s {
	case AuditPending, AuditInvestigating, AuditResolved, AuditIgnored:
		return true
	}
	return false
}

// Audit is the persisted record of one rule finding, tracked through
// investigation.
type Audit struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	RuleName       RuleID
	Severity       Severity
	Description    string
	Details        map[string]any
	Recommendation string
	Status         AuditStatus
	DetectedAt     time.Time
	ResolvedAt     *time.Time
}

// ViolationReport is the oversight-facing record filed for CRITICAL and HIGH
// findings.
type ViolationReport struct {
	ID                  uuid.UUID
	OrganizationID      uuid.UUID
	ViolationType       ViolationType
	Severity            Severity
	Description         string
	AffectedUsersCount  int
	ReportedToOversight bool
	Resolved            bool
	RelatedAuditID      *uuid.UUID
	CreatedAt           time.Time
}
