// Package reporting builds the public monthly transparency report from
// platform-wide aggregates.
package reporting

import (
	"context"
	"fmt"
	"math"
	"time"

	accessmodels "truconn/internal/access/models"
	orgmodels "truconn/internal/organization/models"
)

// OrgDirectory supplies organization aggregates.
type OrgDirectory interface {
	List(ctx context.Context) ([]*orgmodels.Organization, error)
	Count(ctx context.Context) (int, error)
	CountVerified(ctx context.Context) (int, error)
}

// ConsentCounter supplies consent ledger aggregates.
type ConsentCounter interface {
	CountGrantsByAccess(ctx context.Context) (active int, revoked int, err error)
	CountHistoryBetween(ctx context.Context, from, to time.Time) (int, error)
}

// AccessCounter supplies access request aggregates.
type AccessCounter interface {
	CountByStatus(ctx context.Context) (map[accessmodels.Status]int, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
}

// ComplianceCounter supplies audit aggregates.
type ComplianceCounter interface {
	CountAudits(ctx context.Context) (int, error)
	CountAuditsBetween(ctx context.Context, from, to time.Time) (int, error)
	CountOpenCriticalAudits(ctx context.Context) (int, error)
	CountAuditsResolvedBetween(ctx context.Context, from, to time.Time) (int, error)
}

// Report is one month's platform transparency summary.
type Report struct {
	PeriodStart   time.Time          `json:"period_start"`
	PeriodEnd     time.Time          `json:"period_end"`
	Organizations OrganizationsStats `json:"organizations"`
	Consents      ConsentStats       `json:"consents"`
	Requests      RequestStats       `json:"access_requests"`
	Compliance    ComplianceStats    `json:"compliance"`
	Trust         TrustStats         `json:"trust"`
}

type OrganizationsStats struct {
	Total    int `json:"total"`
	Verified int `json:"verified"`
}

type ConsentStats struct {
	Active           int `json:"active"`
	Revoked          int `json:"revoked"`
	ChangesThisMonth int `json:"changes_this_month"`
}

type RequestStats struct {
	Total            int `json:"total"`
	Pending          int `json:"pending"`
	Approved         int `json:"approved"`
	Revoked          int `json:"revoked"`
	CreatedThisMonth int `json:"created_this_month"`
}

type ComplianceStats struct {
	TotalAudits       int `json:"total_audits"`
	AuditsThisMonth   int `json:"audits_this_month"`
	OpenCritical      int `json:"open_critical"`
	ResolvedThisMonth int `json:"resolved_this_month"`
}

type TrustStats struct {
	AverageScore float64        `json:"average_score"`
	Levels       map[string]int `json:"levels"`
	Certified    int            `json:"certified"`
}

// Reporter assembles monthly reports. It only reads.
type Reporter struct {
	orgs       OrgDirectory
	consents   ConsentCounter
	requests   AccessCounter
	compliance ComplianceCounter
	now        func() time.Time
}

func New(orgs OrgDirectory, consents ConsentCounter, requests AccessCounter, compliance ComplianceCounter) *Reporter {
	return &Reporter{
		orgs:       orgs,
		consents:   consents,
		requests:   requests,
		compliance: compliance,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	r.now = now
	return r
}

// MonthlyReport aggregates platform activity for the calendar month
// containing the current time.
func (r *Reporter) MonthlyReport(ctx context.Context) (Report, error) {
	now := r.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	report := Report{PeriodStart: from, PeriodEnd: to}

	total, err := r.orgs.Count(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("counting organizations: %w", err)
	}
	verified, err := r.orgs.CountVerified(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("counting verified organizations: %w", err)
	}
	report.Organizations = OrganizationsStats{Total: total, Verified: verified}

	active, revoked, err := r.consents.CountGrantsByAccess(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("counting consent grants: %w", err)
	}
	changes, err := r.consents.CountHistoryBetween(ctx, from, to)
	if err != nil {
		return Report{}, fmt.Errorf("counting consent changes: %w", err)
	}
	report.Consents = ConsentStats{Active: active, Revoked: revoked, ChangesThisMonth: changes}

	byStatus, err := r.requests.CountByStatus(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("counting access requests: %w", err)
	}
	created, err := r.requests.CountCreatedBetween(ctx, from, to)
	if err != nil {
		return Report{}, fmt.Errorf("counting created requests: %w", err)
	}
	report.Requests = RequestStats{
		Total:            byStatus[accessmodels.StatusPending] + byStatus[accessmodels.StatusApproved] + byStatus[accessmodels.StatusRevoked],
		Pending:          byStatus[accessmodels.StatusPending],
		Approved:         byStatus[accessmodels.StatusApproved],
		Revoked:          byStatus[accessmodels.StatusRevoked],
		CreatedThisMonth: created,
	}

	totalAudits, err := r.compliance.CountAudits(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("counting audits: %w", err)
	}
	monthAudits, err := r.compliance.CountAuditsBetween(ctx, from, to)
	if err != nil {
		return Report{}, fmt.Errorf("counting monthly audits: %w", err)
	}
	openCritical, err := r.compliance.CountOpenCriticalAudits(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("counting open critical audits: %w", err)
	}
	resolved, err := r.compliance.CountAuditsResolvedBetween(ctx, from, to)
	if err != nil {
		return Report{}, fmt.Errorf("counting resolved audits: %w", err)
	}
	report.Compliance = ComplianceStats{
		TotalAudits:       totalAudits,
		AuditsThisMonth:   monthAudits,
		OpenCritical:      openCritical,
		ResolvedThisMonth: resolved,
	}

	orgs, err := r.orgs.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing organizations: %w", err)
	}
	trust := TrustStats{Levels: make(map[string]int)}
	sum := 0.0
	for _, org := range orgs {
		sum += org.TrustScore
		trust.Levels[org.TrustLevel]++
		if org.CertificateIssued {
			trust.Certified++
		}
	}
	if len(orgs) > 0 {
		trust.AverageScore = math.Round(sum/float64(len(orgs))*100) / 100
	}
	report.Trust = trust

	return report, nil
}
