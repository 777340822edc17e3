package subscription

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/JobFuchs/internal/pkg/notify"
)

// Notifier is the enqueue side of the notify dispatcher. Delivery is best
// effort and never part of a state machine transaction.
type Notifier interface {
	Enqueue(msg notify.Message)
}

// ActivationInput carries the frozen checkout decision from a confirmed
// payment into the state machine.
type ActivationInput struct {
	UserID  uint
	Tier    string
	Credits int

	Price          decimal.Decimal
	DiscountType   string
	DiscountAmount *decimal.Decimal
	ProratedAmount *decimal.Decimal

	// GatewayEventID ties the ledger and history rows to the webhook event.
	// Its unique indexes are the idempotency backstop.
	GatewayEventID string

	Now time.Time
}
