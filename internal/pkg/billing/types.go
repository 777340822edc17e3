package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutQuote is the frozen pricing decision for one checkout attempt. The
// payment client copies it into session metadata so the webhook applies
// exactly what was quoted, not a recomputation.
type CheckoutQuote struct {
	PlanID   uint            `json:"plan_id"`
	Tier     string          `json:"tier"`
	Action   string          `json:"action"`
	Credits  int             `json:"credits"`
	Currency string          `json:"currency"`

	BasePrice decimal.Decimal `json:"base_price"`

	DiscountType   string          `json:"discount_type,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`

	Prorated        bool            `json:"prorated"`
	ProratedDays    int             `json:"prorated_days,omitempty"`
	ProrationDelta  decimal.Decimal `json:"proration_delta"`
	PreservedExpiry *time.Time      `json:"preserved_expiry,omitempty"`

	// FinalPrice is what the gateway charges.
	FinalPrice decimal.Decimal `json:"final_price"`

	QuotedAt time.Time `json:"quoted_at"`
}

// PlanView is a catalog entry as shown to clients, with per-caller discount
// context applied.
type PlanView struct {
	ID              uint            `json:"id"`
	Tier            string          `json:"tier"`
	DisplayName     string          `json:"display_name"`
	Description     string          `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	DiscountedPrice *decimal.Decimal `json:"discounted_price,omitempty"`
	DiscountType    string          `json:"discount_type,omitempty"`
	Currency        string          `json:"currency"`
	Credits         int             `json:"credits"`
	IsPopular       bool            `json:"is_popular"`
}
