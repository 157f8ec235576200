package subscription

import (
	"errors"
	"sync"
	"testing"
	"time"

	"market-lens/models"
)

func fixedClock(t time.Time) (*time.Time, func() time.Time) {
	now := t
	return &now, func() time.Time { return now }
}

func TestNewAccount_Defaults(t *testing.T) {
	s := NewAccount("alice").Status()

	if s.UserID != "alice" || s.Tier != models.TierFree {
		t.Errorf("unexpected status %+v", s)
	}
	if !s.Active || s.ExpiresAt != nil {
		t.Errorf("new account should be active without expiry: %+v", s)
	}
	if s.RemainingAnalyses != 5 {
		t.Errorf("RemainingAnalyses = %d, want 5", s.RemainingAnalyses)
	}
}

func TestConsume_Quota(t *testing.T) {
	acct := NewAccount("alice")
	for i := 0; i < 5; i++ {
		if err := acct.Consume(); err != nil {
			t.Fatalf("Consume %d: %v", i, err)
		}
	}
	err := acct.Consume()
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if got := acct.Status().RemainingAnalyses; got != 0 {
		t.Errorf("RemainingAnalyses = %d, want 0", got)
	}
}

func TestConsumeN_AllOrNothing(t *testing.T) {
	acct := NewAccount("alice")
	if err := acct.ConsumeN(6); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if got := acct.Status().RemainingAnalyses; got != 5 {
		t.Errorf("failed ConsumeN should not spend quota, remaining = %d", got)
	}
	if err := acct.ConsumeN(3); err != nil {
		t.Fatalf("ConsumeN(3): %v", err)
	}
	acct.Refund(10)
	if got := acct.Status().RemainingAnalyses; got != 5 {
		t.Errorf("Refund should cap at the tier allowance, remaining = %d", got)
	}
}

func TestChangeTier(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	_, clock := fixedClock(start)
	acct := newAccount("bob", clock)
	acct.Consume()

	if err := acct.ChangeTier(models.TierPro); err != nil {
		t.Fatalf("ChangeTier: %v", err)
	}
	s := acct.Status()
	if s.Tier != models.TierPro || s.RemainingAnalyses != 100 || !s.Active {
		t.Errorf("unexpected status after upgrade %+v", s)
	}
	if s.ExpiresAt == nil || !s.ExpiresAt.Equal(start.Add(30*24*time.Hour)) {
		t.Errorf("ExpiresAt = %v, want 30 days out", s.ExpiresAt)
	}
	if !s.Features.BatchAnalysis {
		t.Error("pro tier should include batch analysis")
	}

	if err := acct.ChangeTier("platinum"); err == nil {
		t.Error("expected an error for an unknown tier")
	}
}

func TestCancel(t *testing.T) {
	acct := NewAccount("carol")
	acct.ChangeTier(models.TierBasic)
	acct.Cancel()

	s := acct.Status()
	if s.Active || s.ExpiresAt != nil {
		t.Errorf("cancelled account should be inactive without expiry: %+v", s)
	}
	if err := acct.Consume(); !errors.Is(err, ErrInactive) {
		t.Errorf("expected ErrInactive, got %v", err)
	}

	acct.ChangeTier(models.TierFree)
	if err := acct.Consume(); err != nil {
		t.Errorf("tier change should reactivate: %v", err)
	}
}

func TestExpiry(t *testing.T) {
	now, clock := fixedClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	acct := newAccount("dave", clock)
	acct.ChangeTier(models.TierBasic)

	*now = now.Add(Term)
	if acct.Status().Active {
		t.Error("account should lapse at its expiry instant")
	}
	if err := acct.Consume(); !errors.Is(err, ErrInactive) {
		t.Errorf("expected ErrInactive, got %v", err)
	}
}

func TestRequire(t *testing.T) {
	batch := func(f models.Features) bool { return f.BatchAnalysis }

	acct := NewAccount("erin")
	if err := acct.Require("batch analysis", batch); !errors.Is(err, ErrFeatureDisabled) {
		t.Errorf("free tier: expected ErrFeatureDisabled, got %v", err)
	}
	acct.ChangeTier(models.TierEnterprise)
	if err := acct.Require("batch analysis", batch); err != nil {
		t.Errorf("enterprise tier: %v", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	a := r.Get("alice")
	if r.Get("alice") != a {
		t.Error("Get should return the same account for a user")
	}
	if r.Get("  ") != r.Get(DefaultUserID) {
		t.Error("blank user should map to the default account")
	}
	users := r.Users()
	if len(users) != 2 || users[0] != "alice" || users[1] != DefaultUserID {
		t.Errorf("Users = %v", users)
	}
}

func TestConsume_Concurrent(t *testing.T) {
	acct := NewAccount("frank")
	acct.ChangeTier(models.TierPro)

	var wg sync.WaitGroup
	var mu sync.Mutex
	failures := 0
	for i := 0; i < 150; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := acct.Consume(); err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if failures != 50 {
		t.Errorf("failures = %d, want 50", failures)
	}
}
