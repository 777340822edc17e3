package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/JobFuchs/app/models"
)

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		price          string
		wantDiscounted string
		wantAmount     string
	}{
		{price: "89.00", wantDiscounted: "71.2", wantAmount: "17.8"},
		{price: "149.00", wantDiscounted: "119.2", wantAmount: "29.8"},
		{price: "10.00", wantDiscounted: "8", wantAmount: "2"},
		{price: "0.99", wantDiscounted: "0.79", wantAmount: "0.2"},
	}

	for _, tt := range tests {
		price := decimal.RequireFromString(tt.price)
		discounted, amount := ApplyDiscount(price)
		if discounted.String() != tt.wantDiscounted {
			t.Fatalf("ApplyDiscount(%s) discounted = %s, want %s", tt.price, discounted, tt.wantDiscounted)
		}
		if amount.String() != tt.wantAmount {
			t.Fatalf("ApplyDiscount(%s) amount = %s, want %s", tt.price, amount, tt.wantAmount)
		}
	}
}

func TestResolveDiscountTrialUpgrade(t *testing.T) {
	now := time.Now()
	future := now.Add(5 * 24 * time.Hour)

	sub := &models.Subscription{
		Tier:      models.TierTrial,
		Status:    models.SubscriptionStatusActive,
		ExpiresAt: &future,
	}

	if got := ResolveDiscount(sub, false, now); got != DiscountTrialUpgrade {
		t.Fatalf("active trial should resolve TRIAL_UPGRADE, got %q", got)
	}
	// Trial upgrade wins even for accounts that paid before.
	if got := ResolveDiscount(sub, true, now); got != DiscountTrialUpgrade {
		t.Fatalf("trial upgrade should outrank paid history, got %q", got)
	}
}

func TestResolveDiscountLapsedActiveTrial(t *testing.T) {
	now := time.Now()

	// Lapsed but not yet swept to EXPIRED: still within the upgrade window.
	recent := now.Add(-30 * time.Minute)
	sub := &models.Subscription{
		Tier:      models.TierTrial,
		Status:    models.SubscriptionStatusActive,
		ExpiresAt: &recent,
	}
	if got := ResolveDiscount(sub, true, now); got != DiscountTrialUpgrade {
		t.Fatalf("lapsed ACTIVE trial inside the window should keep TRIAL_UPGRADE, got %q", got)
	}

	old := now.Add(-10 * 24 * time.Hour)
	sub.ExpiresAt = &old
	if got := ResolveDiscount(sub, true, now); got != "" {
		t.Fatalf("ACTIVE trial lapsed 10 days ago should get no discount, got %q", got)
	}
}

func TestResolveDiscountExpiredTrialWindow(t *testing.T) {
	now := time.Now()

	recent := now.Add(-3 * 24 * time.Hour)
	sub := &models.Subscription{
		Tier:      models.TierTrial,
		Status:    models.SubscriptionStatusExpired,
		ExpiresAt: &recent,
	}
	if got := ResolveDiscount(sub, true, now); got != DiscountTrialUpgrade {
		t.Fatalf("trial expired 3 days ago should keep the upgrade discount, got %q", got)
	}

	old := now.Add(-10 * 24 * time.Hour)
	sub.ExpiresAt = &old
	if got := ResolveDiscount(sub, true, now); got != "" {
		t.Fatalf("trial expired 10 days ago should get no discount, got %q", got)
	}
}

func TestResolveDiscountNewAccount(t *testing.T) {
	now := time.Now()

	if got := ResolveDiscount(nil, false, now); got != DiscountNewAccount {
		t.Fatalf("account without paid history should resolve NEW_ACCOUNT, got %q", got)
	}
	if got := ResolveDiscount(nil, true, now); got != "" {
		t.Fatalf("account with paid history should get no discount, got %q", got)
	}

	basic := &models.Subscription{
		Tier:   models.TierBasic,
		Status: models.SubscriptionStatusActive,
	}
	if got := ResolveDiscount(basic, false, now); got != DiscountNewAccount {
		t.Fatalf("basic account without paid history should resolve NEW_ACCOUNT, got %q", got)
	}
}

func TestResolveDiscountCancelledTrial(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour)
	sub := &models.Subscription{
		Tier:      models.TierTrial,
		Status:    models.SubscriptionStatusCancelled,
		ExpiresAt: &future,
	}
	if got := ResolveDiscount(sub, true, now); got != "" {
		t.Fatalf("cancelled trial with paid history should get no discount, got %q", got)
	}
}
