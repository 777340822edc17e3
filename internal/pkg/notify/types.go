package notify

import "time"

// Message kinds handled by the dispatcher.
const (
	KindWelcome          = "welcome"
	KindPaymentConfirmed = "payment_confirmed"
	KindPaymentFailed    = "payment_failed"
	KindTrialReminder    = "trial_reminder"
	KindExpiryDowngrade  = "expiry_downgrade"
	KindCancellation     = "cancellation"
)

// Message is one queued notification. The worker writes an in-app
// notification row and, where an address is known, sends a mail.
type Message struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	UserID      uint      `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	ReferenceID uint      `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
