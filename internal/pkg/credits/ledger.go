package credits

import (
	"fmt"

	"github.com/ManuelReschke/JobFuchs/app/models"
	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/billing"
)

// In-transaction ledger primitives. Each mutates the locked subscription row
// and appends exactly one ledger entry; the caller owns the transaction and
// persists the subscription afterwards.
//
// The unlimited sentinel keeps the metered ledger sum at zero: entering the
// sentinel zeroes the sum with an ADJUST, leaving it rebaselines with another
// ADJUST. Replay therefore reproduces the balance for every metered account.

// ApplyGrant adds amount credits. No-op on the unlimited sentinel.
func ApplyGrant(repos *repository.Repositories, sub *models.Subscription, amount int, reason, planTier string, gatewayEventID *string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: grant amount must be positive", billing.ErrValidation)
	}
	if sub.HasUnlimitedCredits() {
		return nil
	}

	sub.CreditBalance += amount
	return repos.Ledger.Append(&models.CreditTransaction{
		UserID:         sub.UserID,
		Kind:           models.CreditTxGrant,
		Amount:         amount,
		BalanceAfter:   sub.CreditBalance,
		Reason:         reason,
		PlanTier:       planTier,
		GatewayEventID: gatewayEventID,
	})
}

// ApplyDeduct consumes one credit (fixed unit cost). No-op on the unlimited
// sentinel apart from the usage counter; fails typed at zero balance.
func ApplyDeduct(repos *repository.Repositories, sub *models.Subscription, reason string, relatedJobID *uint) error {
	sub.LifetimeCreditsUsed++
	if sub.HasUnlimitedCredits() {
		return nil
	}
	if sub.CreditBalance == 0 {
		sub.LifetimeCreditsUsed--
		return billing.ErrInsufficientCredits
	}

	sub.CreditBalance--
	return repos.Ledger.Append(&models.CreditTransaction{
		UserID:       sub.UserID,
		Kind:         models.CreditTxDeduct,
		Amount:       -1,
		BalanceAfter: sub.CreditBalance,
		Reason:       reason,
		RelatedJobID: relatedJobID,
	})
}

// ApplyRefund removes up to requested credits and returns how many were
// actually removed. The clamped amount is what the ledger records, so the
// balance never goes negative.
func ApplyRefund(repos *repository.Repositories, sub *models.Subscription, requested int, reason string) (int, error) {
	if requested <= 0 {
		return 0, fmt.Errorf("%w: refund amount must be positive", billing.ErrValidation)
	}
	if sub.HasUnlimitedCredits() {
		return 0, nil
	}

	applied := requested
	if applied > sub.CreditBalance {
		applied = sub.CreditBalance
	}
	if applied == 0 {
		return 0, nil
	}

	sub.CreditBalance -= applied
	return applied, repos.Ledger.Append(&models.CreditTransaction{
		UserID:       sub.UserID,
		Kind:         models.CreditTxRefund,
		Amount:       -applied,
		BalanceAfter: sub.CreditBalance,
		Reason:       reason,
	})
}

// ApplyAdjustTo rebaselines the metered balance to target, recording the
// delta. Used by the state machine for trial expiry resets and for leaving
// the unlimited sentinel.
func ApplyAdjustTo(repos *repository.Repositories, sub *models.Subscription, target int, reason, planTier string, gatewayEventID *string) error {
	if target < 0 {
		return fmt.Errorf("%w: adjust target must be non-negative", billing.ErrValidation)
	}

	delta := target - meteredBalance(sub)
	sub.CreditBalance = target
	if delta == 0 {
		return nil
	}
	return repos.Ledger.Append(&models.CreditTransaction{
		UserID:         sub.UserID,
		Kind:           models.CreditTxAdjust,
		Amount:         delta,
		BalanceAfter:   sub.CreditBalance,
		Reason:         reason,
		PlanTier:       planTier,
		GatewayEventID: gatewayEventID,
	})
}

// ApplyEnterUnlimited switches the balance to the unlimited sentinel and
// zeroes the metered ledger sum so replay stays consistent.
func ApplyEnterUnlimited(repos *repository.Repositories, sub *models.Subscription, reason, planTier string, gatewayEventID *string) error {
	delta := -meteredBalance(sub)
	sub.CreditBalance = models.CreditsUnlimited
	if delta == 0 {
		return nil
	}
	return repos.Ledger.Append(&models.CreditTransaction{
		UserID:         sub.UserID,
		Kind:           models.CreditTxAdjust,
		Amount:         delta,
		BalanceAfter:   0,
		Reason:         reason,
		PlanTier:       planTier,
		GatewayEventID: gatewayEventID,
	})
}

func meteredBalance(sub *models.Subscription) int {
	if sub.HasUnlimitedCredits() {
		return 0
	}
	return sub.CreditBalance
}
