package models

import "testing"

func TestParseTier(t *testing.T) {
	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{"free", TierFree, false},
		{" PRO ", TierPro, false},
		{"Enterprise", TierEnterprise, false},
		{"gold", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTier(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTier(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseTier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFeaturesFor(t *testing.T) {
	tests := []struct {
		tier  Tier
		quota int
		batch bool
		api   bool
	}{
		{TierFree, 5, false, false},
		{TierBasic, 20, false, false},
		{TierPro, 100, true, false},
		{TierEnterprise, 500, true, true},
		{Tier("bogus"), 5, false, false},
	}
	for _, tt := range tests {
		f := FeaturesFor(tt.tier)
		if f.AnalysisPerMonth != tt.quota || f.BatchAnalysis != tt.batch || f.APIAccess != tt.api {
			t.Errorf("FeaturesFor(%s) = %+v", tt.tier, f)
		}
	}
	if !FeaturesFor(TierBasic).AdvancedAnalysis || FeaturesFor(TierFree).AdvancedAnalysis {
		t.Error("advanced analysis starts at basic")
	}
}

func TestSubscriptionStatus_CanAnalyze(t *testing.T) {
	s := SubscriptionStatus{Active: true, RemainingAnalyses: 2}
	if !s.CanAnalyze(2) || s.CanAnalyze(3) {
		t.Errorf("CanAnalyze mismatch for %+v", s)
	}
	s.Active = false
	if s.CanAnalyze(1) {
		t.Error("inactive account cannot analyze")
	}
}
