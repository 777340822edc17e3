package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
)

// historyRepository implements the HistoryRepository interface
type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository creates a new subscription history repository instance
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

// Append inserts one immutable history entry
func (r *historyRepository) Append(entry *models.SubscriptionHistory) error {
	return r.db.Create(entry).Error
}

// List returns history entries for an account, newest first
func (r *historyRepository) List(userID uint, filter HistoryFilter) ([]models.SubscriptionHistory, error) {
	var entries []models.SubscriptionHistory
	query := r.db.Where("user_id = ?", userID)
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Tier != "" {
		query = query.Where("new_tier = ?", filter.Tier)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	err := query.Order("created_at DESC, id DESC").Offset(filter.Offset).Find(&entries).Error
	return entries, err
}

// CountByUser returns how many history entries exist for an account
func (r *historyRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.SubscriptionHistory{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
