// Package engine evaluates the compliance rule catalog against an
// organization's access requests and the consent grants they reference.
package engine

import (
	"time"

	"github.com/google/uuid"

	accessmodels "truconn/internal/access/models"
	consentmodels "truconn/internal/consent/models"
	"truconn/internal/compliance/models"
)

// GrantKey addresses one consent grant inside a scan dataset.
type GrantKey struct {
	UserID        string
	ConsentTypeID uuid.UUID
}

// Dataset is the read-only snapshot a scan evaluates. It is loaded once per
// scan so every rule sees the same data.
type Dataset struct {
	OrganizationID uuid.UUID
	Requests       []*accessmodels.Request
	Grants         map[GrantKey]*consentmodels.Grant
	Now            time.Time
}

// Grant looks up the consent grant a request references, if any.
func (d Dataset) Grant(req *accessmodels.Request) (*consentmodels.Grant, bool) {
	grant, ok := d.Grants[GrantKey{UserID: req.UserID, ConsentTypeID: req.ConsentTypeID}]
	return grant, ok
}

// Rule is one entry in the compliance catalog: static metadata plus the
// check evaluated against a dataset.
type Rule struct {
	ID             models.RuleID
	Description    string
	Severity       models.Severity
	Recommendation string
	Check          func(Dataset) []models.Finding
}

// Catalog is the table of rules a scan runs. It is an explicit value rather
// than package state so tests can substitute a reduced set.
type Catalog []Rule

// Lookup returns the catalog entry for a rule.
func (c Catalog) Lookup(id models.RuleID) (Rule, bool) {
	for _, rule := range c {
		if rule.ID == id {
			return rule, true
		}
	}
	return Rule{}, false
}

// Severity returns the catalog severity for a rule, defaulting to MEDIUM for
// rules the catalog no longer carries.
func (c Catalog) Severity(id models.RuleID) models.Severity {
	if rule, ok := c.Lookup(id); ok {
		return rule.Severity
	}
	return models.SeverityMedium
}

// DefaultCatalog returns the full production rule set.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			ID:             models.RuleConsentValidity,
			Description:    "Approved access request against a revoked consent grant",
			Severity:       models.SeverityHigh,
			Recommendation: "Suspend data processing for this request until consent is re-granted",
			Check:          checkConsentValidity,
		},
		{
			ID:             models.RulePurposeLimitation,
			Description:    "Access requests with vague or underspecified purposes",
			Severity:       models.SeverityHigh,
			Recommendation: "Require a specific, documented purpose for every data request",
			Check:          checkPurposeLimitation,
		},
		{
			ID:             models.RuleDataMinimization,
			Description:    "Organization accesses more data categories per user than its purposes justify",
			Severity:       models.SeverityMedium,
			Recommendation: "Reduce the number of consent types requested per user",
			Check:          checkDataMinimization,
		},
		{
			ID:             models.RuleRetentionPolicy,
			Description:    "Approved access requests retained beyond the retention period",
			Severity:       models.SeverityMedium,
			Recommendation: "Re-confirm or close access requests older than one year",
			Check:          checkRetentionPolicy,
		},
		{
			ID:             models.RuleAccessControl,
			Description:    "High volume of revoked access requests",
			Severity:       models.SeverityCritical,
			Recommendation: "Review the request process; repeated revocations indicate over-reach",
			Check:          checkAccessControl,
		},
		{
			ID:             models.RuleAuditTrail,
			Description:    "Access requests recorded without a purpose",
			Severity:       models.SeverityHigh,
			Recommendation: "Backfill the purpose field; purposeless records break the audit trail",
			Check:          checkAuditTrail,
		},
		{
			ID:             models.RuleRevocationHandling,
			Description:    "Approved access request with no valid consent grant behind it",
			Severity:       models.SeverityCritical,
			Recommendation: "Revoke the request immediately and purge data obtained under it",
			Check:          checkRevocationHandling,
		},
		{
			ID:             models.RuleExcessiveRequests,
			Description:    "Unusually high request volume in the last 30 days",
			Severity:       models.SeverityMedium,
			Recommendation: "Throttle request creation and review whether the volume is justified",
			Check:          checkExcessiveRequests,
		},
	}
}
