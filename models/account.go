package models

import (
	"fmt"
	"strings"
	"time"
)

// Tier is a subscription level
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether t is a known tier
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierBasic, TierPro, TierEnterprise:
		return true
	}
	return false
}

// ParseTier accepts a tier name in any case
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("invalid tier %q", s)
	}
	return t, nil
}

// Features are the entitlements attached to a tier
type Features struct {
	AnalysisPerMonth int  `json:"analysis_per_month"`
	AdvancedAnalysis bool `json:"advanced_analysis"`
	PrioritySupport  bool `json:"priority_support"`
	BatchAnalysis    bool `json:"batch_analysis"`
	APIAccess        bool `json:"api_access"`
	CustomModels     bool `json:"custom_models"`
}

var tierFeatures = map[Tier]Features{
	TierFree:       {AnalysisPerMonth: 5},
	TierBasic:      {AnalysisPerMonth: 20, AdvancedAnalysis: true},
	TierPro:        {AnalysisPerMonth: 100, AdvancedAnalysis: true, PrioritySupport: true, BatchAnalysis: true},
	TierEnterprise: {AnalysisPerMonth: 500, AdvancedAnalysis: true, PrioritySupport: true, BatchAnalysis: true, APIAccess: true, CustomModels: true},
}

// FeaturesFor returns the entitlements of t; unknown tiers get free features
func FeaturesFor(t Tier) Features {
	if f, ok := tierFeatures[t]; ok {
		return f
	}
	return tierFeatures[TierFree]
}

// SubscriptionStatus is a point-in-time view of an account
type SubscriptionStatus struct {
	UserID            string     `json:"user_id"`
	Tier              Tier       `json:"tier"`
	Active            bool       `json:"active"`
	ExpiresAt         *time.Time `json:"expires_at"`
	Features          Features   `json:"features"`
	RemainingAnalyses int        `json:"remaining_analyses"`
}

// CanAnalyze reports whether the account may run n more analyses
func (s SubscriptionStatus) CanAnalyze(n int) bool {
	return s.Active && s.RemainingAnalyses >= n
}
