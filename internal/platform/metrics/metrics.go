package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Consent ledger metrics
	ConsentsGranted      *prometheus.CounterVec
	ConsentsRevoked      *prometheus.CounterVec
	ConsentsExpired      prometheus.Counter
	ConsentToggleLatency prometheus.Histogram

	// Compliance metrics
	ScansCompleted    prometheus.Counter
	ScansFailed       prometheus.Counter
	FindingsDetected  *prometheus.CounterVec
	AuditsCreated     prometheus.Counter
	ViolationsCreated prometheus.Counter
	RiskScore         prometheus.Histogram
	ScanLatency       prometheus.Histogram

	// Trust score metrics
	TrustScoreComputed  prometheus.Counter
	TrustLevel          *prometheus.GaugeVec
	CertificatesIssued  prometheus.Counter
	CertificatesRevoked prometheus.Counter

	// Access request metrics
	AccessRequestsCreated  prometheus.Counter
	AccessRequestDecisions *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		ConsentsGranted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_consents_granted_total",
			Help: "Total number of consents granted, labeled by consent type",
		}, []string{"consent_type"}),
		ConsentsRevoked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_consents_revoked_total",
			Help: "Total number of consents revoked, labeled by consent type",
		}, []string{"consent_type"}),
		ConsentsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "truconn_consents_expired_total",
			Help: "Total number of consents force-revoked by the expiry sweep",
		}),
		ConsentToggleLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "truconn_consent_toggle_latency_seconds",
			Help:    "Latency of consent toggle operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ScansCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "truconn_compliance_scans_total",
			Help: "Total number of completed compliance scans",
		}),
		ScansFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "truconn_compliance_scan_failures_total",
			Help: "Total number of compliance scans that failed",
		}),
		FindingsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_compliance_findings_total",
			Help: "Total number of rule findings, labeled by rule",
		}, []string{"rule"}),
		AuditsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "truconn_compliance_audits_created_total",
			Help: "Total number of compliance audit records created",
		}),
		ViolationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "truconn_violation_reports_created_total",
			Help: "Total number of violation reports created",
		}),
		RiskScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "truconn_compliance_risk_score",
			Help:    "Distribution of risk scores produced by scans",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		ScanLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "truconn_compliance_scan_latency_seconds",
			Help:    "Latency of compliance scans in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		TrustScoreComputed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "truconn_trust_scores_computed_total",
			Help: "Total number of trust score recomputations",
		}),
		TrustLevel: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "truconn_trust_level_organizations",
			Help: "Number of organizations at each trust level as of their last recomputation",
		}, []string{"level"}),
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "truconn_trust_certificates_issued_total",
			Help: "Total number of trust certificates issued",
		}),
		CertificatesRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "truconn_trust_certificates_revoked_total",
			Help: "Total number of trust certificates cleared after a score drop",
		}),
		AccessRequestsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "truconn_access_requests_created_total",
			Help: "Total number of access requests created",
		}),
		AccessRequestDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "truconn_access_request_decisions_total",
			Help: "Total number of citizen decisions on access requests, labeled by decision",
		}, []string{"decision"}),
	}
}

// IncrementConsentsGranted increments the consents granted counter by 1
func (m *Metrics) IncrementConsentsGranted(consentType string) {
	m.ConsentsGranted.WithLabelValues(consentType).Inc()
}

func (m *Metrics) IncrementConsentsRevoked(consentType string) {
	m.ConsentsRevoked.WithLabelValues(consentType).Inc()
}

func (m *Metrics) IncrementConsentsExpired(count int) {
	m.ConsentsExpired.Add(float64(count))
}

func (m *Metrics) ObserveConsentToggleLatency(seconds float64) {
	m.ConsentToggleLatency.Observe(seconds)
}

func (m *Metrics) IncrementScansCompleted() {
	m.ScansCompleted.Inc()
}

func (m *Metrics) IncrementScansFailed() {
	m.ScansFailed.Inc()
}

func (m *Metrics) IncrementFindings(rule string) {
	m.FindingsDetected.WithLabelValues(rule).Inc()
}

func (m *Metrics) IncrementAuditsCreated(count int) {
	m.AuditsCreated.Add(float64(count))
}

func (m *Metrics) IncrementViolationsCreated(count int) {
	m.ViolationsCreated.Add(float64(count))
}

func (m *Metrics) ObserveRiskScore(score int) {
	m.RiskScore.Observe(float64(score))
}

func (m *Metrics) ObserveScanLatency(seconds float64) {
	m.ScanLatency.Observe(seconds)
}

func (m *Metrics) IncrementTrustScoreComputed() {
	m.TrustScoreComputed.Inc()
}

// SetTrustLevelCounts replaces the per-level organization gauge with a fresh
// distribution. Levels absent from the map keep their previous value, so
// callers should pass every level they track.
func (m *Metrics) SetTrustLevelCounts(counts map[string]int) {
	for level, count := range counts {
		m.TrustLevel.WithLabelValues(level).Set(float64(count))
	}
}

func (m *Metrics) IncrementCertificatesIssued() {
	m.CertificatesIssued.Inc()
}

func (m *Metrics) IncrementCertificatesRevoked() {
	m.CertificatesRevoked.Inc()
}

func (m *Metrics) IncrementAccessRequestsCreated() {
	m.AccessRequestsCreated.Inc()
}

func (m *Metrics) IncrementAccessRequestDecisions(decision string) {
	m.AccessRequestDecisions.WithLabelValues(decision).Inc()
}
