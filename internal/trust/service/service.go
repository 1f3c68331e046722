// Package service implements the trust score engine: component computation,
// snapshot persistence with the certificate transition, and the public
// ranking.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	accessmodels "truconn/internal/access/models"
	compmodels "truconn/internal/compliance/models"
	consentmodels "truconn/internal/consent/models"
	orgmodels "truconn/internal/organization/models"
	"truconn/internal/platform/metrics"
	"truconn/internal/sentinel"
	"truconn/internal/trust/models"
	dErrors "truconn/pkg/domain-errors"
)

// Component weights, summing to 1.0.
const (
	weightCompliance       = 0.40
	weightDataIntegrity    = 0.25
	weightConsentRespect   = 0.20
	weightTransparency     = 0.10
	weightUserSatisfaction = 0.05

	// fixedUserSatisfaction stands in until a feedback subsystem exists.
	fixedUserSatisfaction = 85.0

	integrityPenaltyPerViolation = 10.0
	consentRespectMaxPenalty     = 20.0
	transparencyPurposeWeight    = 70.0
	transparencyRecencyWeight    = 30.0
	recencyWindowDays            = 30

	rankingMaxLimit    = 100
	rankingConcurrency = 8
	rankingCacheKey    = "trust:ranking"
)

// Directory is the organization surface the trust engine needs.
type Directory interface {
	Find(ctx context.Context, id uuid.UUID) (*orgmodels.Organization, error)
	List(ctx context.Context) ([]*orgmodels.Organization, error)
	UpdateTrustSnapshot(ctx context.Context, id uuid.UUID, score float64, level string, calculatedAt time.Time) (orgmodels.CertificateChange, error)
}

// Scanner runs a fresh compliance evaluation for the compliance component.
type Scanner interface {
	RunAllChecks(ctx context.Context, organizationID uuid.UUID) (compmodels.ScanResult, error)
}

// ViolationCounter counts open violation reports by type.
type ViolationCounter interface {
	CountUnresolvedViolations(ctx context.Context, organizationID uuid.UUID, types ...compmodels.ViolationType) (int, error)
}

// AccessLog reads the organization's request history.
type AccessLog interface {
	ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]*accessmodels.Request, error)
}

// ConsentLedger resolves grants behind approved requests.
type ConsentLedger interface {
	FindGrant(ctx context.Context, userID string, consentTypeID uuid.UUID) (*consentmodels.Grant, error)
}

type Service struct {
	directory  Directory
	scanner    Scanner
	violations ViolationCounter
	accessLog  AccessLog
	ledger     ConsentLedger
	cache      redis.Cmdable
	cacheTTL   time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRankingCache caches the public ranking in redis for the given TTL.
func WithRankingCache(cache redis.Cmdable, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(directory Directory, scanner Scanner, violations ViolationCounter, accessLog AccessLog, ledger ConsentLedger, opts ...Option) *Service {
	s := &Service{
		directory:  directory,
		scanner:    scanner,
		violations: violations,
		accessLog:  accessLog,
		ledger:     ledger,
		logger:     slog.Default(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CalculateTrustScore recomputes all five components for the organization,
// persists the snapshot together with the certificate transition, and
// returns the result.
func (s *Service) CalculateTrustScore(ctx context.Context, organizationID uuid.UUID) (models.Snapshot, error) {
	org, err := s.directory.Find(ctx, organizationID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Snapshot{}, dErrors.New(dErrors.CodeNotFound, "organization not found")
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("finding organization: %w", err)
	}

	components, overall, err := s.computeComponents(ctx, organizationID)
	if err != nil {
		return models.Snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "trust score computation failed")
	}

	calculatedAt := s.now()
	level := models.LevelFor(overall)
	change, err := s.directory.UpdateTrustSnapshot(ctx, organizationID, overall, string(level), calculatedAt)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("persisting trust snapshot: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncrementTrustScoreComputed()
		switch change {
		case orgmodels.CertificateIssued:
			s.metrics.IncrementCertificatesIssued()
		case orgmodels.CertificateRevoked:
			s.metrics.IncrementCertificatesRevoked()
		}
	}
	s.logger.InfoContext(ctx, "trust score recomputed",
		slog.String("organization_id", organizationID.String()),
		slog.Float64("overall", overall),
		slog.String("level", string(level)))

	snapshot := models.Snapshot{
		OrganizationID: organizationID,
		OverallScore:   overall,
		Level:          level,
		Components:     components,
		CalculatedAt:   calculatedAt,
	}
	switch change {
	case orgmodels.CertificateIssued:
		snapshot.CertificateIssued = true
		snapshot.CertificateIssuedAt = &calculatedAt
	case orgmodels.CertificateRevoked:
		snapshot.CertificateIssued = false
	default:
		snapshot.CertificateIssued = org.CertificateIssued
		snapshot.CertificateIssuedAt = org.CertificateIssuedAt
	}
	return snapshot, nil
}

// Ranking recomputes trust scores for every organization with bounded
// concurrency, sorts descending, and returns the top limit entries. The
// limit is clamped to 100. Results are cached briefly when a cache is
// configured.
func (s *Service) Ranking(ctx context.Context, limit int) ([]models.RankingEntry, error) {
	if limit <= 0 || limit > rankingMaxLimit {
		limit = rankingMaxLimit
	}

	if cached, ok := s.cachedRanking(ctx); ok {
		if len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	}

	orgs, err := s.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}

	entries := make([]models.RankingEntry, len(orgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rankingConcurrency)
	for i, org := range orgs {
		g.Go(func() error {
			snapshot, err := s.CalculateTrustScore(gctx, org.ID)
			if err != nil {
				return fmt.Errorf("scoring organization %s: %w", org.ID, err)
			}
			entries[i] = models.RankingEntry{
				OrganizationID:    org.ID,
				Name:              org.Name,
				OverallScore:      snapshot.OverallScore,
				Level:             snapshot.Level,
				CertificateIssued: snapshot.CertificateIssued,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].OverallScore > entries[j].OverallScore })
	s.storeRanking(ctx, entries)

	if s.metrics != nil {
		counts := map[string]int{
			string(models.LevelExcellent): 0,
			string(models.LevelVerified):  0,
			string(models.LevelGood):      0,
			string(models.LevelBasic):     0,
			string(models.LevelLow):       0,
		}
		for _, entry := range entries {
			counts[string(entry.Level)]++
		}
		s.metrics.SetTrustLevelCounts(counts)
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Service) cachedRanking(ctx context.Context) ([]models.RankingEntry, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, rankingCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "reading ranking cache", slog.Any("error", err))
		}
		return nil, false
	}
	var entries []models.RankingEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (s *Service) storeRanking(ctx context.Context, entries []models.RankingEntry) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, rankingCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.WarnContext(ctx, "writing ranking cache", slog.Any("error", err))
	}
}

func (s *Service) computeComponents(ctx context.Context, organizationID uuid.UUID) (models.Components, float64, error) {
	result, err := s.scanner.RunAllChecks(ctx, organizationID)
	if err != nil {
		return models.Components{}, 0, fmt.Errorf("running compliance checks: %w", err)
	}
	compliance := clamp(100 - float64(result.RiskScore))

	requests, err := s.accessLog.ListByOrganization(ctx, organizationID)
	if err != nil {
		return models.Components{}, 0, fmt.Errorf("listing access requests: %w", err)
	}

	integrity, err := s.dataIntegrity(ctx, organizationID, len(requests))
	if err != nil {
		return models.Components{}, 0, err
	}
	respect, err := s.consentRespect(ctx, requests)
	if err != nil {
		return models.Components{}, 0, err
	}
	transparency := s.transparency(requests)

	components := models.Components{
		Compliance:       round2(compliance),
		DataIntegrity:    round2(integrity),
		ConsentRespect:   round2(respect),
		Transparency:     round2(transparency),
		UserSatisfaction: fixedUserSatisfaction,
	}
	overall := round2(
		components.Compliance*weightCompliance +
			components.DataIntegrity*weightDataIntegrity +
			components.ConsentRespect*weightConsentRespect +
			components.Transparency*weightTransparency +
			components.UserSatisfaction*weightUserSatisfaction)
	return components, overall, nil
}

// dataIntegrity starts at 100 and loses 10 points per unresolved privacy
// breach or audit failure report. Organizations with no activity score 100.
func (s *Service) dataIntegrity(ctx context.Context, organizationID uuid.UUID, requestCount int) (float64, error) {
	if requestCount == 0 {
		return 100, nil
	}
	unresolved, err := s.violations.CountUnresolvedViolations(ctx, organizationID,
		compmodels.ViolationPrivacyBreach, compmodels.ViolationAuditFailure)
	if err != nil {
		return 0, fmt.Errorf("counting unresolved violations: %w", err)
	}
	return clamp(100 - integrityPenaltyPerViolation*float64(unresolved)), nil
}

// consentRespect is the share of approved requests backed by a currently
// valid grant, penalized by up to 20 points for the revoked share.
func (s *Service) consentRespect(ctx context.Context, requests []*accessmodels.Request) (float64, error) {
	if len(requests) == 0 {
		return 100, nil
	}
	valid := 0
	revoked := 0
	for _, req := range requests {
		switch req.Status {
		case accessmodels.StatusRevoked:
			revoked++
		case accessmodels.StatusApproved:
			grant, err := s.ledger.FindGrant(ctx, req.UserID, req.ConsentTypeID)
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			if err != nil {
				return 0, fmt.Errorf("resolving consent grant: %w", err)
			}
			if grant.IsActive(s.now()) {
				valid++
			}
		}
	}
	total := float64(len(requests))
	score := float64(valid) / total * 100
	penalty := math.Min(consentRespectMaxPenalty, float64(revoked)/total*100)
	return clamp(score - penalty), nil
}

// transparency rewards clear purposes (70%) and recent activity (30%).
func (s *Service) transparency(requests []*accessmodels.Request) float64 {
	if len(requests) == 0 {
		return 100
	}
	clear := 0
	recent := 0
	cutoff := s.now().AddDate(0, 0, -recencyWindowDays)
	for _, req := range requests {
		if isClearPurpose(req.Purpose) {
			clear++
		}
		if !req.RequestedAt.Before(cutoff) {
			recent++
		}
	}
	total := float64(len(requests))
	purposeScore := float64(clear) / total * transparencyPurposeWeight
	recencyScore := math.Min(transparencyRecencyWeight, float64(recent)/total*transparencyRecencyWeight)
	return clamp(purposeScore + recencyScore)
}

var vaguePurposes = map[string]bool{
	"general":  true,
	"testing":  true,
	"research": true,
	"other":    true,
}

func isClearPurpose(purpose *string) bool {
	if purpose == nil {
		return false
	}
	p := strings.TrimSpace(strings.ToLower(*purpose))
	return utf8.RuneCountInString(p) >= 10 && !vaguePurposes[p]
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
