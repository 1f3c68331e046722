package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	accessmodels "truconn/internal/access/models"
	"truconn/internal/compliance/models"
)

const (
	minPurposeLength     = 10
	dataMinimizationAvg  = 3.5
	retentionDays        = 365
	revokedRequestLimit  = 10
	excessiveLimit       = 100
	excessiveWindowDays  = 30
)

// vagueTerms are purposes too generic to satisfy purpose limitation.
var vagueTerms = map[string]bool{
	"general":  true,
	"testing":  true,
	"research": true,
	"other":    true,
}

// checkConsentValidity flags approved requests whose grant exists but is
// revoked. Missing grants are the stricter revocation-handling rule's
// territory; the two deliberately overlap without being merged.
func checkConsentValidity(d Dataset) []models.Finding {
	var findings []models.Finding
	for _, req := range d.Requests {
		if req.Status != accessmodels.StatusApproved {
			continue
		}
		grant, ok := d.Grant(req)
		if !ok || grant.Access {
			continue
		}
		findings = append(findings, models.Finding{
			Rule:        models.RuleConsentValidity,
			Severity:    models.SeverityHigh,
			Description: "approved access request against a revoked consent grant",
			Details: map[string]any{
				"access_request_id": req.ID.String(),
				"user_id":           req.UserID,
				"consent_type_id":   req.ConsentTypeID.String(),
			},
			Recommendation: "suspend processing until consent is re-granted",
		})
	}
	return findings
}

// checkRevocationHandling flags approved requests with a missing or revoked
// grant, one finding per request.
func checkRevocationHandling(d Dataset) []models.Finding {
	var findings []models.Finding
	for _, req := range d.Requests {
		if req.Status != accessmodels.StatusApproved {
			continue
		}
		grant, ok := d.Grant(req)
		if ok && grant.Access {
			continue
		}
		reason := "consent grant revoked"
		if !ok {
			reason = "no consent grant on record"
		}
		findings = append(findings, models.Finding{
			Rule:        models.RuleRevocationHandling,
			Severity:    models.SeverityCritical,
			Description: "approved access request without valid consent: " + reason,
			Details: map[string]any{
				"access_request_id": req.ID.String(),
				"user_id":           req.UserID,
			},
			Recommendation: "revoke the request and purge data obtained under it",
		})
	}
	return findings
}

func isVaguePurpose(purpose *string) bool {
	if purpose == nil {
		return false // null purpose is the audit-trail rule's concern
	}
	p := strings.TrimSpace(strings.ToLower(*purpose))
	if p == "" || vagueTerms[p] {
		return true
	}
	// Length in runes, not bytes, so multi-byte text is measured fairly.
	return utf8.RuneCountInString(p) < minPurposeLength
}

func checkPurposeLimitation(d Dataset) []models.Finding {
	vague := 0
	for _, req := range d.Requests {
		if req.Purpose != nil && isVaguePurpose(req.Purpose) {
			vague++
		}
	}
	if vague == 0 {
		return nil
	}
	return []models.Finding{{
		Rule:        models.RulePurposeLimitation,
		Severity:    models.SeverityHigh,
		Description: fmt.Sprintf("%d access requests with vague or underspecified purposes", vague),
		Details: map[string]any{
			"vague_request_count": vague,
		},
		Recommendation: "require a specific, documented purpose for every request",
	}}
}

func checkDataMinimization(d Dataset) []models.Finding {
	typesPerUser := make(map[string]map[string]bool)
	for _, req := range d.Requests {
		if req.Status != accessmodels.StatusApproved {
			continue
		}
		if typesPerUser[req.UserID] == nil {
			typesPerUser[req.UserID] = make(map[string]bool)
		}
		typesPerUser[req.UserID][req.ConsentTypeID.String()] = true
	}
	if len(typesPerUser) == 0 {
		return nil
	}
	total := 0
	for _, types := range typesPerUser {
		total += len(types)
	}
	avg := float64(total) / float64(len(typesPerUser))
	if avg < dataMinimizationAvg {
		return nil
	}
	return []models.Finding{{
		Rule:        models.RuleDataMinimization,
		Severity:    models.SeverityMedium,
		Description: fmt.Sprintf("average of %.2f consent types accessed per user", avg),
		Details: map[string]any{
			"average_types_per_user": avg,
			"user_count":             len(typesPerUser),
		},
		Recommendation: "reduce the data categories requested per user",
	}}
}

func checkRetentionPolicy(d Dataset) []models.Finding {
	cutoff := d.Now.AddDate(0, 0, -retentionDays)
	overdue := 0
	for _, req := range d.Requests {
		if req.Status == accessmodels.StatusApproved && req.RequestedAt.Before(cutoff) {
			overdue++
		}
	}
	if overdue == 0 {
		return nil
	}
	return []models.Finding{{
		Rule:        models.RuleRetentionPolicy,
		Severity:    models.SeverityMedium,
		Description: fmt.Sprintf("%d approved requests older than %d days", overdue, retentionDays),
		Details: map[string]any{
			"overdue_request_count": overdue,
			"retention_days":        retentionDays,
		},
		Recommendation: "re-confirm or close access requests past the retention period",
	}}
}

func checkAccessControl(d Dataset) []models.Finding {
	revoked := 0
	for _, req := range d.Requests {
		if req.Status == accessmodels.StatusRevoked {
			revoked++
		}
	}
	if revoked <= revokedRequestLimit {
		return nil
	}
	return []models.Finding{{
		Rule:        models.RuleAccessControl,
		Severity:    models.SeverityCritical,
		Description: fmt.Sprintf("%d revoked access requests on record", revoked),
		Details: map[string]any{
			"revoked_request_count": revoked,
		},
		Recommendation: "review the request process; repeated revocations indicate over-reach",
	}}
}

func checkAuditTrail(d Dataset) []models.Finding {
	missing := 0
	for _, req := range d.Requests {
		if req.Purpose == nil {
			missing++
		}
	}
	if missing == 0 {
		return nil
	}
	return []models.Finding{{
		Rule:        models.RuleAuditTrail,
		Severity:    models.SeverityHigh,
		Description: fmt.Sprintf("%d access requests recorded without a purpose", missing),
		Details: map[string]any{
			"missing_purpose_count": missing,
		},
		Recommendation: "backfill the purpose field on existing records",
	}}
}

func checkExcessiveRequests(d Dataset) []models.Finding {
	since := d.Now.AddDate(0, 0, -excessiveWindowDays)
	recent := 0
	for _, req := range d.Requests {
		if !req.RequestedAt.Before(since) {
			recent++
		}
	}
	if recent <= excessiveLimit {
		return nil
	}
	return []models.Finding{{
		Rule:        models.RuleExcessiveRequests,
		Severity:    models.SeverityMedium,
		Description: fmt.Sprintf("%d requests created in the last %d days", recent, excessiveWindowDays),
		Details: map[string]any{
			"recent_request_count": recent,
			"window_days":          excessiveWindowDays,
		},
		Recommendation: "throttle request creation and review whether the volume is justified",
	}}
}
