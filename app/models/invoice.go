package models

import "time"

const (
	InvoiceStatusDraft = "DRAFT"
	InvoiceStatusSent  = "SENT"
	InvoiceStatusPaid  = "PAID"
)

// Invoice records a settled charge. It is written best-effort after a paid
// activation commits and is consulted by the new-account discount check; it is
// not part of the transactional critical path.
type Invoice struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	InvoiceNumber     string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"invoice_number"`
	UserID            uint      `gorm:"not null;index" json:"user_id"`
	SubscriptionID    uint      `gorm:"not null;index" json:"subscription_id"`
	AmountCents       int64     `gorm:"not null" json:"amount_cents"`
	Currency          string    `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	Status            string    `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	GatewayPaymentRef string    `gorm:"type:varchar(191);default:''" json:"gateway_payment_ref"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
