package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"truconn/internal/compliance/models"
)

func TestCalculateRiskScore(t *testing.T) {
	tests := []struct {
		name     string
		findings []models.Finding
		want     int
	}{
		{
			name:     "empty input scores zero",
			findings: nil,
			want:     0,
		},
		{
			name: "mixed severities sum their weights",
			findings: []models.Finding{
				{Rule: models.RuleRevocationHandling, Severity: models.SeverityCritical},
				{Rule: models.RuleConsentValidity, Severity: models.SeverityHigh},
				{Rule: models.RuleDataMinimization, Severity: models.SeverityMedium},
			},
			want: 45,
		},
		{
			name: "low severity weighs five",
			findings: []models.Finding{
				{Rule: models.RuleDataMinimization, Severity: models.SeverityLow},
			},
			want: 5,
		},
		{
			name: "score caps at one hundred",
			findings: func() []models.Finding {
				findings := make([]models.Finding, 10)
				for i := range findings {
					findings[i] = models.Finding{
						Rule:     models.RuleRevocationHandling,
						Severity: models.SeverityCritical,
					}
				}
				return findings
			}(),
			want: 100,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CalculateRiskScore(tc.findings))
		})
	}
}

func TestCalculateRiskScoreOrderIndependent(t *testing.T) {
	findings := []models.Finding{
		{Rule: models.RuleRevocationHandling, Severity: models.SeverityCritical},
		{Rule: models.RuleConsentValidity, Severity: models.SeverityHigh},
		{Rule: models.RuleAuditTrail, Severity: models.SeverityHigh},
		{Rule: models.RuleRetentionPolicy, Severity: models.SeverityMedium},
		{Rule: models.RuleExcessiveRequests, Severity: models.SeverityMedium},
	}
	want := CalculateRiskScore(findings)

	rng := rand.New(rand.NewSource(1))
	for range 20 {
		rng.Shuffle(len(findings), func(i, j int) {
			findings[i], findings[j] = findings[j], findings[i]
		})
		assert.Equal(t, want, CalculateRiskScore(findings))
	}
}
