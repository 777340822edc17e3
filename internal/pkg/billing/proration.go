package billing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/JobFuchs/app/models"
)

// Proration is the mid-cycle price delta for switching between two paid plans
// while the current period still runs.
type Proration struct {
	// DaysRemaining is the whole number of days left in the period, partial
	// days rounded up.
	DaysRemaining int
	// Delta is (dailyNew - dailyOld) * DaysRemaining, rounded to two decimal
	// places. Positive for upgrades.
	Delta decimal.Decimal
	// Charge is what checkout actually bills: the delta clamped at zero.
	// Downgrades surface their negative delta as information only.
	Charge decimal.Decimal
}

var billingPeriod = decimal.NewFromInt(models.BillingPeriodDays)

// ComputeProration calculates the prorated switch cost against a fixed 30 day
// period. expiresAt must lie in the future; callers guard that.
func ComputeProration(oldPrice, newPrice decimal.Decimal, expiresAt, now time.Time) Proration {
	days := daysRemaining(expiresAt, now)

	dailyOld := oldPrice.Div(billingPeriod)
	dailyNew := newPrice.Div(billingPeriod)
	delta := dailyNew.Sub(dailyOld).Mul(decimal.NewFromInt(int64(days))).Round(2)

	charge := delta
	if charge.IsNegative() {
		charge = decimal.Zero
	}

	return Proration{
		DaysRemaining: days,
		Delta:         delta,
		Charge:        charge,
	}
}

func daysRemaining(expiresAt, now time.Time) int {
	if !expiresAt.After(now) {
		return 0
	}
	return int(math.Ceil(expiresAt.Sub(now).Hours() / 24))
}
