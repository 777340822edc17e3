package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AddonTypeCategory = "CATEGORY"
	AddonTypeRegion   = "REGION"

	AddonStatusActive    = "ACTIVE"
	AddonStatusExpired   = "EXPIRED"
	AddonStatusCancelled = "CANCELLED"
)

// AddonGrant extends an account's feature scope by one extra category or
// region. Its validity window is independent of the base subscription, but
// scope checks consult both. After ValidUntil the grant keeps working until
// GraceUntil, then it is swept to EXPIRED.
type AddonGrant struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Type        string          `gorm:"type:varchar(20);not null" json:"type"`
	Scope       string          `gorm:"type:varchar(100);not null" json:"scope"` // category id or region name
	DisplayName string          `gorm:"type:varchar(150)" json:"display_name"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	ValidUntil  time.Time       `gorm:"type:timestamp;not null;index" json:"valid_until"`
	GraceUntil  time.Time       `gorm:"type:timestamp;not null" json:"grace_until"`
	AutoRenew   bool            `gorm:"default:false" json:"auto_renew"`
	Status      string          `gorm:"type:varchar(20);not null;default:'ACTIVE';index" json:"status"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// CoversAt reports whether the grant still extends scope at the given time,
// counting the grace period.
func (a *AddonGrant) CoversAt(now time.Time) bool {
	return a.Status == AddonStatusActive && now.Before(a.GraceUntil)
}
