package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/JobFuchs/internal/pkg/billing"
)

// Supported gateway event types. Everything else is rejected at the boundary.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventInvoicePaid       = "invoice.paid"
	EventInvoiceFailed     = "invoice.payment_failed"
)

var centFactor = decimal.NewFromInt(100)

// Event is the normalized gateway event after parsing. Pricing fields come
// from the metadata frozen at checkout time.
type Event struct {
	ID   string
	Type string

	UserID uint

	Tier           string
	Credits        int
	FinalPrice     decimal.Decimal
	DiscountType   string
	DiscountAmount *decimal.Decimal
	ProrationDelta *decimal.Decimal

	AmountCents int64
	Currency    string
	PaymentRef  string
	OccurredAt  time.Time
}

type rawEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID            string            `json:"id"`
			AmountTotal   int64             `json:"amount_total"`
			AmountPaid    int64             `json:"amount_paid"`
			Currency      string            `json:"currency"`
			PaymentIntent string            `json:"payment_intent"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a webhook payload into the closed event set.
func ParseEvent(payload []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", billing.ErrValidation, err)
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, fmt.Errorf("%w: event id missing", billing.ErrValidation)
	}

	switch raw.Type {
	case EventCheckoutCompleted, EventInvoicePaid, EventInvoiceFailed:
	default:
		return nil, fmt.Errorf("%w: %q", billing.ErrUnknownEventType, raw.Type)
	}

	meta := raw.Data.Object.Metadata
	event := &Event{
		ID:          strings.TrimSpace(raw.ID),
		Type:        raw.Type,
		Currency:    strings.ToUpper(raw.Data.Object.Currency),
		PaymentRef:  firstNonEmpty(raw.Data.Object.PaymentIntent, raw.Data.Object.ID),
		AmountCents: raw.Data.Object.AmountTotal,
	}
	if event.AmountCents == 0 {
		event.AmountCents = raw.Data.Object.AmountPaid
	}
	if raw.Created > 0 {
		event.OccurredAt = time.Unix(raw.Created, 0)
	}

	userID, err := strconv.ParseUint(strings.TrimSpace(meta["user_id"]), 10, 64)
	if err != nil || userID == 0 {
		return nil, fmt.Errorf("%w: metadata user_id missing", billing.ErrValidation)
	}
	event.UserID = uint(userID)

	event.Tier = billing.NormalizeTier(meta["plan_tier"])
	if c, err := strconv.Atoi(strings.TrimSpace(meta["credits"])); err == nil {
		event.Credits = c
	}
	if p, err := decimal.NewFromString(strings.TrimSpace(meta["final_price"])); err == nil {
		event.FinalPrice = p
	} else if event.AmountCents > 0 {
		event.FinalPrice = decimal.NewFromInt(event.AmountCents).Div(centFactor)
	}
	event.DiscountType = strings.TrimSpace(meta["discount_type"])
	if d, err := decimal.NewFromString(strings.TrimSpace(meta["discount_amount"])); err == nil {
		event.DiscountAmount = &d
	}
	if d, err := decimal.NewFromString(strings.TrimSpace(meta["proration_delta"])); err == nil {
		event.ProrationDelta = &d
	}

	if raw.Type == EventCheckoutCompleted && event.Tier == "" {
		return nil, fmt.Errorf("%w: metadata plan_tier missing", billing.ErrValidation)
	}
	return event, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
