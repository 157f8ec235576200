// Package subscription tracks per-user tiers and monthly analysis quotas.
package subscription

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"market-lens/models"
	"market-lens/observability"
)

// DefaultUserID owns requests that carry no user identity
const DefaultUserID = "local"

// Term is how long a tier change keeps the account active
const Term = 30 * 24 * time.Hour

var (
	ErrQuotaExceeded   = errors.New("monthly analysis quota exceeded")
	ErrInactive        = errors.New("subscription is not active")
	ErrFeatureDisabled = errors.New("feature not included in subscription tier")
)

// Account is one user's subscription. Safe for concurrent use.
type Account struct {
	mu        sync.Mutex
	userID    string
	tier      models.Tier
	active    bool
	expiresAt *time.Time
	remaining int
	now       func() time.Time
}

// NewAccount starts userID on an active free tier with no expiry
func NewAccount(userID string) *Account {
	return newAccount(userID, time.Now)
}

func newAccount(userID string, now func() time.Time) *Account {
	return &Account{
		userID:    userID,
		tier:      models.TierFree,
		active:    true,
		remaining: models.FeaturesFor(models.TierFree).AnalysisPerMonth,
		now:       now,
	}
}

// activeLocked reports whether the account is active and unexpired
func (a *Account) activeLocked() bool {
	if !a.active {
		return false
	}
	return a.expiresAt == nil || a.now().Before(*a.expiresAt)
}

// Status returns a snapshot of the account
func (a *Account) Status() models.SubscriptionStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	var expires *time.Time
	if a.expiresAt != nil {
		t := *a.expiresAt
		expires = &t
	}
	return models.SubscriptionStatus{
		UserID:            a.userID,
		Tier:              a.tier,
		Active:            a.activeLocked(),
		ExpiresAt:         expires,
		Features:          models.FeaturesFor(a.tier),
		RemainingAnalyses: a.remaining,
	}
}

func (a *Account) Features() models.Features {
	a.mu.Lock()
	defer a.mu.Unlock()
	return models.FeaturesFor(a.tier)
}

// Consume takes one analysis from the quota
func (a *Account) Consume() error {
	return a.ConsumeN(1)
}

// ConsumeN takes n analyses at once or none at all
func (a *Account) ConsumeN(n int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.activeLocked() {
		return ErrInactive
	}
	if n > a.remaining {
		return fmt.Errorf("%w: %d requested, %d remaining", ErrQuotaExceeded, n, a.remaining)
	}
	a.remaining -= n
	return nil
}

// Refund returns n analyses to the quota, capped at the tier allowance
func (a *Account) Refund(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.remaining = min(a.remaining+n, models.FeaturesFor(a.tier).AnalysisPerMonth)
}

// Require fails unless the tier includes the feature selected by has
func (a *Account) Require(feature string, has func(models.Features) bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.activeLocked() {
		return ErrInactive
	}
	if !has(models.FeaturesFor(a.tier)) {
		return fmt.Errorf("%w: %s requires a higher tier than %s", ErrFeatureDisabled, feature, a.tier)
	}
	return nil
}

// ChangeTier switches tiers, reactivates the account, resets the quota and
// sets expiry one term from now
func (a *Account) ChangeTier(tier models.Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("invalid tier %q", tier)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	expires := a.now().Add(Term)
	a.tier = tier
	a.active = true
	a.expiresAt = &expires
	a.remaining = models.FeaturesFor(tier).AnalysisPerMonth

	observability.Info("subscription changed", "user_id", a.userID, "tier", tier, "expires_at", expires)
	return nil
}

// Cancel deactivates the account and clears its expiry
func (a *Account) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.active = false
	a.expiresAt = nil
	observability.Info("subscription cancelled", "user_id", a.userID, "tier", a.tier)
}

// Registry hands out one Account per user ID
type Registry struct {
	mu       sync.Mutex
	accounts map[string]*Account
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{accounts: make(map[string]*Account), now: time.Now}
}

// Get returns the account for userID, creating a free one on first use.
// Blank IDs map to DefaultUserID.
func (r *Registry) Get(userID string) *Account {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = DefaultUserID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if acct, ok := r.accounts[userID]; ok {
		return acct
	}
	acct := newAccount(userID, r.now)
	r.accounts[userID] = acct
	return acct
}

// Users lists known user IDs in order
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.accounts))
	for id := range r.accounts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
