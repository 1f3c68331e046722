package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	accessmodels "truconn/internal/access/models"
	"truconn/internal/compliance/models"
	consentmodels "truconn/internal/consent/models"
	"truconn/internal/sentinel"
)

// AccessLog reads an organization's request history.
type AccessLog interface {
	ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*accessmodels.Request, error)
}

// ConsentLedger resolves the grant an access request references.
type ConsentLedger interface {
	FindGrant(ctx context.Context, userID string, consentTypeID uuid.UUID) (*consentmodels.Grant, error)
}

// Engine runs the rule catalog over one organization at a time.
type Engine struct {
	catalog Catalog
	log     AccessLog
	ledger  ConsentLedger
	now     func() time.Time
}

type Option func(*Engine)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(catalog Catalog, log AccessLog, ledger ConsentLedger, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		log:     log,
		ledger:  ledger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunAllChecks loads the organization's dataset once, evaluates every rule
// in the catalog against it, and aggregates findings into a scan result.
// An organization with no requests yields an empty result, not an error.
func (e *Engine) RunAllChecks(ctx context.Context, organizationID uuid.UUID) (models.ScanResult, error) {
	dataset, err := e.loadDataset(ctx, organizationID)
	if err != nil {
		return models.ScanResult{}, fmt.Errorf("loading scan dataset: %w", err)
	}

	var findings []models.Finding
	for _, rule := range e.catalog {
		findings = append(findings, rule.Check(dataset)...)
	}

	result := models.ScanResult{
		OrganizationID: organizationID,
		Findings:       findings,
		RiskScore:      CalculateRiskScore(findings),
		TotalFindings:  len(findings),
		ScannedAt:      dataset.Now,
	}
	for _, finding := range findings {
		switch e.catalog.Severity(finding.Rule) {
		case models.SeverityCritical:
			result.CriticalCount++
		case models.SeverityHigh:
			result.HighCount++
		case models.SeverityMedium:
			result.MediumCount++
		case models.SeverityLow:
			result.LowCount++
		}
	}
	return result, nil
}

func (e *Engine) loadDataset(ctx context.Context, organizationID uuid.UUID) (Dataset, error) {
	requests, err := e.log.ListByOrganization(ctx, organizationID)
	if err != nil {
		return Dataset{}, fmt.Errorf("listing access requests: %w", err)
	}

	grants := make(map[GrantKey]*consentmodels.Grant)
	for _, req := range requests {
		key := GrantKey{UserID: req.UserID, ConsentTypeID: req.ConsentTypeID}
		if _, seen := grants[key]; seen {
			continue
		}
		grant, err := e.ledger.FindGrant(ctx, req.UserID, req.ConsentTypeID)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("resolving consent grant: %w", err)
		}
		grants[key] = grant
	}

	return Dataset{
		OrganizationID: organizationID,
		Requests:       requests,
		Grants:         grants,
		Now:            e.now(),
	}, nil
}
