// Package models defines the trust score vocabulary.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Level is the trust band an organization's overall score falls in.
type Level string

const (
	LevelExcellent Level = "EXCELLENT"
	LevelVerified  Level = "VERIFIED"
	LevelGood      Level = "GOOD"
	LevelBasic     Level = "BASIC"
	LevelLow       Level = "LOW"
)

// LevelFor maps an overall score to its band. The bands are disjoint and
// cover [0,100]; anything outside maps to LOW.
func LevelFor(score float64) Level {
	switch {
	case score >= 90 && score <= 100:
		return LevelExcellent
	case score >= 75:
		return LevelVerified
	case score >= 60:
		return LevelGood
	case score >= 40:
		return LevelBasic
	case score >= 0:
		return LevelLow
	default:
		return LevelLow
	}
}

// Components are the five weighted inputs to the overall score, each in
// [0,100].
type Components struct {
	Compliance       float64 `json:"compliance"`
	DataIntegrity    float64 `json:"data_integrity"`
	ConsentRespect   float64 `json:"consent_respect"`
	Transparency     float64 `json:"transparency"`
	UserSatisfaction float64 `json:"user_satisfaction"`
}

// Snapshot is one trust score computation for one organization.
type Snapshot struct {
	OrganizationID      uuid.UUID
	OverallScore        float64
	Level               Level
	Components          Components
	CertificateIssued   bool
	CertificateIssuedAt *time.Time
	CalculatedAt        time.Time
}

// RankingEntry is one row of the public trust registry.
type RankingEntry struct {
	OrganizationID    uuid.UUID
	Name              string
	OverallScore      float64
	Level             Level
	CertificateIssued bool
}
