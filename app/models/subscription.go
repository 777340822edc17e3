package models

import "time"

// Subscription tiers ordered by rank, see TierRank.
const (
	TierTrial   = "TRIAL"
	TierBasic   = "BASIC"
	TierPremium = "PREMIUM"
	TierPro     = "PRO"
)

const (
	SubscriptionStatusActive    = "ACTIVE"
	SubscriptionStatusCancelled = "CANCELLED"
	SubscriptionStatusExpired   = "EXPIRED"
)

// Billing constants shared by the state machine, pricing and the reconciler.
const (
	// CreditsUnlimited is the sentinel balance for tiers without metering.
	CreditsUnlimited = -1

	TrialCredits = 8
	TrialDays    = 14
	BasicCredits = 10

	// BillingPeriodDays is the fixed month length used for proration.
	BillingPeriodDays = 30

	// AddonGraceDays is how long an addon keeps its scope after expiry.
	AddonGraceDays = 7
)

// Subscription is the single per-account subscription record. It is created
// lazily on first provider access, mutated only by the state machine and never
// deleted; CANCELLED/EXPIRED are terminal statuses, not row removal.
//
// CreditBalance is a cache: replaying the account's CreditTransactions in
// order reproduces it exactly.
type Subscription struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	UserID              uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	Tier                string     `gorm:"type:varchar(20);not null;default:'TRIAL';index" json:"tier"`
	Status              string     `gorm:"type:varchar(20);not null;default:'ACTIVE';index:idx_subscriptions_status_expires,priority:1" json:"status"`
	CreditBalance       int        `gorm:"not null;default:0" json:"credit_balance"`
	LifetimeCreditsUsed int        `gorm:"not null;default:0" json:"lifetime_credits_used"`
	ExpiresAt           *time.Time `gorm:"type:timestamp;default:null;index:idx_subscriptions_status_expires,priority:2" json:"expires_at,omitempty"`
	CancelledAt         *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasUnlimitedCredits reports whether the balance carries the unlimited sentinel.
func (s *Subscription) HasUnlimitedCredits() bool {
	return s.CreditBalance == CreditsUnlimited
}

// IsLapsed reports whether the validity window has passed at the given time.
func (s *Subscription) IsLapsed(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// IsActivePaid reports whether the subscription is a running paid plan above
// the BASIC floor, which is the precondition for mid-cycle proration.
func (s *Subscription) IsActivePaid(now time.Time) bool {
	return s.Status == SubscriptionStatusActive &&
		s.Tier != TierTrial &&
		s.Tier != TierBasic &&
		s.ExpiresAt != nil &&
		s.ExpiresAt.After(now)
}
