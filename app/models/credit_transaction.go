package models

import "time"

// Credit transaction kinds. Amounts are signed: GRANT positive,
// DEDUCT/REFUND negative, ADJUST either way.
const (
	CreditTxGrant  = "GRANT"
	CreditTxDeduct = "DEDUCT"
	CreditTxRefund = "REFUND"
	CreditTxAdjust = "ADJUST"
)

// CreditTransaction is one immutable row of the append-only credit ledger.
// The ledger is the source of truth: replaying an account's rows ordered by
// (created_at, id) reproduces Subscription.CreditBalance exactly, and
// BalanceAfter snapshots the cache at the time the row was written.
//
// GatewayEventID is set for grants caused by payment events; its unique index
// is what makes webhook replays unable to double-grant.
type CreditTransaction struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;index:idx_credit_transactions_user_created,priority:1" json:"user_id"`
	Kind           string     `gorm:"type:varchar(20);not null;index" json:"kind"`
	Amount         int        `gorm:"not null" json:"amount"`
	BalanceAfter   int        `gorm:"not null" json:"balance_after"`
	Reason         string     `gorm:"type:varchar(255)" json:"reason"`
	PlanTier       string     `gorm:"type:varchar(20);default:''" json:"plan_tier,omitempty"`
	GatewayEventID *string    `gorm:"type:varchar(191);default:null;uniqueIndex" json:"gateway_event_id,omitempty"`
	RelatedJobID   *uint      `gorm:"default:null" json:"related_job_id,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index:idx_credit_transactions_user_created,priority:2" json:"created_at"`
}
