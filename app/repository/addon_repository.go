package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
)

// addonRepository implements the AddonRepository interface
type addonRepository struct {
	db *gorm.DB
}

// NewAddonRepository creates a new addon grant repository instance
func NewAddonRepository(db *gorm.DB) AddonRepository {
	return &addonRepository{db: db}
}

// Create creates a new addon grant
func (r *addonRepository) Create(grant *models.AddonGrant) error {
	return r.db.Create(grant).Error
}

// ListActiveByUser returns grants that still cover scope at the given time,
// including grants inside their grace window.
func (r *addonRepository) ListActiveByUser(userID uint, now time.Time) ([]models.AddonGrant, error) {
	var grants []models.AddonGrant
	err := r.db.Where("user_id = ? AND status = ? AND grace_until > ?", userID, models.AddonStatusActive, now).
		Order("created_at ASC").
		Find(&grants).Error
	return grants, err
}

// ExpireLapsed flips grants past their grace window to EXPIRED
func (r *addonRepository) ExpireLapsed(now time.Time) (int64, error) {
	tx := r.db.Model(&models.AddonGrant{}).
		Where("status = ? AND grace_until <= ?", models.AddonStatusActive, now).
		Update("status", models.AddonStatusExpired)
	return tx.RowsAffected, tx.Error
}
