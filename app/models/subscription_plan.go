package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionPlan is a catalog row. Plans can be scoped to a category/region
// pair for segmented pricing; a null scope means the plan is global. At most
// one active plan exists per (tier, scope).
type SubscriptionPlan struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Tier         string          `gorm:"type:varchar(20);not null;index:ux_subscription_plans_tier_scope,unique,priority:1" json:"tier"`
	DisplayName  string          `gorm:"type:varchar(100);not null" json:"display_name"`
	Description  string          `gorm:"type:text" json:"description"`
	Price        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Currency     string          `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	Credits      int             `gorm:"not null" json:"credits"` // -1 = unlimited
	CategoryID   *uint           `gorm:"default:null;index:ux_subscription_plans_tier_scope,unique,priority:2" json:"category_id,omitempty"`
	Region       *string         `gorm:"type:varchar(100);default:null;index:ux_subscription_plans_tier_scope,unique,priority:3" json:"region,omitempty"`
	DisplayOrder int             `gorm:"not null;default:0" json:"display_order"`
	IsPopular    bool            `gorm:"default:false" json:"is_popular"`
	IsActive     bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsGlobal reports whether the plan applies regardless of category and region.
func (p *SubscriptionPlan) IsGlobal() bool {
	return p.CategoryID == nil && p.Region == nil
}

// IsFree reports whether the plan carries no charge (TRIAL).
func (p *SubscriptionPlan) IsFree() bool {
	return p.Price.IsZero()
}
