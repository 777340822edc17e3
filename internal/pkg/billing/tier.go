package billing

import (
	"strings"

	"github.com/ManuelReschke/JobFuchs/app/models"
)

// NormalizeTier maps arbitrary input to a canonical tier name. Unknown input
// normalizes to the empty string.
func NormalizeTier(tier string) string {
	switch strings.ToUpper(strings.TrimSpace(tier)) {
	case models.TierTrial:
		return models.TierTrial
	case models.TierBasic:
		return models.TierBasic
	case models.TierPremium:
		return models.TierPremium
	case models.TierPro:
		return models.TierPro
	default:
		return ""
	}
}

// TierRank orders tiers: TRIAL < BASIC < PREMIUM < PRO. Unknown tiers rank
// below everything.
func TierRank(tier string) int {
	switch NormalizeTier(tier) {
	case models.TierPro:
		return 3
	case models.TierPremium:
		return 2
	case models.TierBasic:
		return 1
	case models.TierTrial:
		return 0
	default:
		return -1
	}
}

// IsPaidTier reports whether the tier is bought through checkout.
func IsPaidTier(tier string) bool {
	return TierRank(tier) >= 1
}

// ActionForChange derives the history action for a tier change from the rank
// comparison alone. It is total: every tier pair maps to exactly one action.
func ActionForChange(currentTier, newTier string) string {
	cur, next := TierRank(currentTier), TierRank(newTier)
	switch {
	case next > cur:
		return models.ActionUpgraded
	case next < cur:
		return models.ActionDowngraded
	default:
		return models.ActionRenewed
	}
}
