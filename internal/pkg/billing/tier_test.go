package billing

import (
	"testing"

	"github.com/ManuelReschke/JobFuchs/app/models"
)

func TestNormalizeTier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "TRIAL", want: "TRIAL"},
		{in: "basic", want: "BASIC"},
		{in: " premium ", want: "PREMIUM"},
		{in: "Pro", want: "PRO"},
		{in: "enterprise", want: ""},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		if got := NormalizeTier(tt.in); got != tt.want {
			t.Fatalf("NormalizeTier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTierRank(t *testing.T) {
	if TierRank(models.TierTrial) >= TierRank(models.TierBasic) {
		t.Fatalf("expected BASIC to outrank TRIAL")
	}
	if TierRank(models.TierBasic) >= TierRank(models.TierPremium) {
		t.Fatalf("expected PREMIUM to outrank BASIC")
	}
	if TierRank(models.TierPremium) >= TierRank(models.TierPro) {
		t.Fatalf("expected PRO to outrank PREMIUM")
	}
	if TierRank("bogus") != -1 {
		t.Fatalf("expected unknown tier to rank below everything")
	}
}

func TestActionForChange(t *testing.T) {
	tests := []struct {
		current string
		next    string
		want    string
	}{
		{current: models.TierTrial, next: models.TierPremium, want: models.ActionUpgraded},
		{current: models.TierBasic, next: models.TierPro, want: models.ActionUpgraded},
		{current: models.TierPro, next: models.TierPremium, want: models.ActionDowngraded},
		{current: models.TierPremium, next: models.TierBasic, want: models.ActionDowngraded},
		{current: models.TierPremium, next: models.TierPremium, want: models.ActionRenewed},
		{current: models.TierBasic, next: models.TierBasic, want: models.ActionRenewed},
	}

	for _, tt := range tests {
		if got := ActionForChange(tt.current, tt.next); got != tt.want {
			t.Fatalf("ActionForChange(%s, %s) = %s, want %s", tt.current, tt.next, got, tt.want)
		}
	}
}
