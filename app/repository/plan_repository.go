package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
)

// planRepository implements the PlanRepository interface
type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository instance
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

// GetByID retrieves a plan by its ID
func (r *planRepository) GetByID(id uint) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := r.db.First(&plan, id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetActiveByTier resolves the active plan for a tier. A plan scoped to the
// given category/region wins over the global plan for the same tier.
func (r *planRepository) GetActiveByTier(tier string, categoryID *uint, region *string) (*models.SubscriptionPlan, error) {
	if categoryID != nil || region != nil {
		var scoped models.SubscriptionPlan
		query := r.db.Where("tier = ? AND is_active = ?", tier, true)
		if categoryID != nil {
			query = query.Where("category_id = ?", *categoryID)
		} else {
			query = query.Where("category_id IS NULL")
		}
		if region != nil {
			query = query.Where("region = ?", *region)
		} else {
			query = query.Where("region IS NULL")
		}
		err := query.First(&scoped).Error
		if err == nil {
			return &scoped, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	var plan models.SubscriptionPlan
	err := r.db.Where("tier = ? AND is_active = ? AND category_id IS NULL AND region IS NULL", tier, true).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListActive returns all active plans ordered for display. Scoped plans
// replace their global counterpart for the requested category/region.
func (r *planRepository) ListActive(categoryID *uint, region *string) ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	err := r.db.Where("is_active = ? AND category_id IS NULL AND region IS NULL", true).
		Order("display_order ASC, id ASC").
		Find(&plans).Error
	if err != nil {
		return nil, err
	}

	if categoryID == nil && region == nil {
		return plans, nil
	}

	for i := range plans {
		scoped, err := r.GetActiveByTier(plans[i].Tier, categoryID, region)
		if err != nil {
			return nil, err
		}
		plans[i] = *scoped
	}
	return plans, nil
}
