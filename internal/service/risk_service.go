package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/risk"
	"github.com/stemsi/exstem-proctor/internal/rules"
)

// RiskService derives an attempt's risk profile from its stored events.
type RiskService struct {
	events  EventStore
	weights rules.Weights
}

// NewRiskService creates a new RiskService over an immutable weight table.
func NewRiskService(events EventStore, weights rules.Weights) *RiskService {
	return &RiskService{events: events, weights: weights}
}

// ComputeProfile counts the attempt's events by type in the store and scores them.
func (s *RiskService) ComputeProfile(ctx context.Context, attemptID uuid.UUID) (risk.Profile, error) {
	counts, err := s.events.CountByType(ctx, attemptID)
	if err != nil {
		return risk.Profile{}, fmt.Errorf("count events: %w", err)
	}
	return risk.Compute(counts, s.weights), nil
}
