package engine

import "truconn/internal/compliance/models"

// maxRiskScore caps the summed weights.
const maxRiskScore = 100

var severityWeights = map[models.Severity]int{
	models.SeverityCritical: 20,
	models.SeverityHigh:     15,
	models.SeverityMedium:   10,
	models.SeverityLow:      5,
}

// CalculateRiskScore sums per-finding severity weights and caps the result
// at 100. It is pure: no clock, no I/O, and order-independent.
func CalculateRiskScore(findings []models.Finding) int {
	score := 0
	for _, finding := range findings {
		score += severityWeights[finding.Severity]
	}
	if score > maxRiskScore {
		return maxRiskScore
	}
	return score
}
