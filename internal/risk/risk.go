// Package risk turns per-type event counts into a suspicion score and tier.
package risk

import (
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/rules"
)

// Tier is the reviewer-facing risk classification.
type Tier string

const (
	TierSafe       Tier = "SAFE"
	TierSuspicious Tier = "SUSPICIOUS"
	TierHighRisk   Tier = "HIGH_RISK"
)

// Tier boundaries are part of the reporting contract.
const (
	SuspiciousThreshold = 20
	HighRiskThreshold   = 50
)

// Profile is derived on demand and never persisted.
type Profile struct {
	TotalSuspicionScore int                     `json:"totalSuspicionScore"`
	RiskLabel           Tier                    `json:"riskLabel"`
	EventCounts         map[model.EventType]int `json:"eventCounts"`
}

// Compute scores counts with weights. It is a pure function of its inputs.
func Compute(counts map[model.EventType]int, weights rules.Weights) Profile {
	score := 0
	out := make(map[model.EventType]int, len(counts))
	for t, n := range counts {
		out[t] = n
		score += weights.Weight(t) * n
	}

	return Profile{
		TotalSuspicionScore: score,
		RiskLabel:           Classify(score),
		EventCounts:         out,
	}
}

// Classify maps a score to its tier.
func Classify(score int) Tier {
	switch {
	case score >= HighRiskThreshold:
		return TierHighRisk
	case score >= SuspiciousThreshold:
		return TierSuspicious
	default:
		return TierSafe
	}
}
