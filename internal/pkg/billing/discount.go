package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/JobFuchs/app/models"
)

// Discount types, mutually exclusive. Proration outranks both; trial-upgrade
// outranks new-account.
const (
	DiscountTrialUpgrade = "TRIAL_UPGRADE"
	DiscountNewAccount   = "NEW_ACCOUNT"
)

var discountRate = decimal.NewFromFloat(0.20)

// trialUpgradeWindow is how long after trial expiry the upgrade discount
// still applies.
const trialUpgradeWindow = 7 * 24 * time.Hour

// ResolveDiscount picks the single applicable discount type for a paid
// checkout, or "" for list price. Callers must already have ruled out the
// proration path.
func ResolveDiscount(sub *models.Subscription, hasPaidHistory bool, now time.Time) string {
	if qualifiesTrialUpgrade(sub, now) {
		return DiscountTrialUpgrade
	}
	if !hasPaidHistory {
		return DiscountNewAccount
	}
	return ""
}

func qualifiesTrialUpgrade(sub *models.Subscription, now time.Time) bool {
	if sub == nil || sub.Tier != models.TierTrial {
		return false
	}
	switch sub.Status {
	case models.SubscriptionStatusActive:
		// A lapsed trial the sweep has not downgraded yet counts like a
		// freshly expired one.
		return !sub.IsLapsed(now) || withinUpgradeWindow(sub, now)
	case models.SubscriptionStatusExpired:
		// Recently lapsed trials keep the upgrade incentive for a week.
		return withinUpgradeWindow(sub, now)
	default:
		return false
	}
}

func withinUpgradeWindow(sub *models.Subscription, now time.Time) bool {
	return sub.ExpiresAt != nil && now.Before(sub.ExpiresAt.Add(trialUpgradeWindow))
}

// ApplyDiscount returns the discounted price and the discount amount, both
// rounded to two decimal places. 89.00 discounts to 71.20.
func ApplyDiscount(price decimal.Decimal) (discounted, amount decimal.Decimal) {
	amount = price.Mul(discountRate).Round(2)
	return price.Sub(amount).Round(2), amount
}
