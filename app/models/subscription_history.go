package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lifecycle actions recorded in the subscription history.
const (
	ActionCreated    = "CREATED"
	ActionUpgraded   = "UPGRADED"
	ActionDowngraded = "DOWNGRADED"
	ActionRenewed    = "RENEWED"
	ActionCancelled  = "CANCELLED"
	ActionExpired    = "EXPIRED"
)

// SubscriptionHistory is the immutable audit trail: exactly one entry per
// state machine transition, carrying the pre/post snapshot of tier, status and
// credits plus the pricing context that caused the transition.
type SubscriptionHistory struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	SubscriptionID    uint             `gorm:"not null;index" json:"subscription_id"`
	UserID            uint             `gorm:"not null;index:idx_subscription_history_user_created,priority:1" json:"user_id"`
	Action            string           `gorm:"type:varchar(20);not null;index" json:"action"`
	PreviousTier      *string          `gorm:"type:varchar(20);default:null" json:"previous_tier,omitempty"`
	NewTier           string           `gorm:"type:varchar(20);not null;index" json:"new_tier"`
	PreviousStatus    *string          `gorm:"type:varchar(20);default:null" json:"previous_status,omitempty"`
	NewStatus         string           `gorm:"type:varchar(20);not null" json:"new_status"`
	Price             *decimal.Decimal `gorm:"type:decimal(10,2);default:null" json:"price,omitempty"`
	ProratedAmount    *decimal.Decimal `gorm:"type:decimal(10,2);default:null" json:"prorated_amount,omitempty"`
	DiscountType      string           `gorm:"type:varchar(30);default:''" json:"discount_type,omitempty"`
	DiscountAmount    *decimal.Decimal `gorm:"type:decimal(10,2);default:null" json:"discount_amount,omitempty"`
	CreditsAdded      *int             `gorm:"default:null" json:"credits_added,omitempty"`
	CreditsBefore     int              `gorm:"not null;default:0" json:"credits_before"`
	CreditsAfter      int              `gorm:"not null;default:0" json:"credits_after"`
	ValidFrom         *time.Time       `gorm:"type:timestamp;default:null" json:"valid_from,omitempty"`
	ValidUntil        *time.Time       `gorm:"type:timestamp;default:null" json:"valid_until,omitempty"`
	PreviousExpiresAt *time.Time       `gorm:"type:timestamp;default:null" json:"previous_expires_at,omitempty"`
	Reason            string           `gorm:"type:varchar(255)" json:"reason"`
	ChangedBy         *uint            `gorm:"default:null" json:"changed_by,omitempty"` // nil = system
	GatewayEventID    *string          `gorm:"type:varchar(191);default:null;uniqueIndex" json:"gateway_event_id,omitempty"`
	CreatedAt         time.Time        `gorm:"autoCreateTime;index:idx_subscription_history_user_created,priority:2" json:"created_at"`
}
