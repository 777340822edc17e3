package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/JobFuchs/app/models"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Create creates a new subscription row
func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

// GetByUserID retrieves the subscription for a user
func (r *subscriptionRepository) GetByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByUserIDForUpdate retrieves the subscription with a row lock (SELECT ...
// FOR UPDATE). Only meaningful inside a transaction.
func (r *subscriptionRepository) GetByUserIDForUpdate(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Save persists all fields of an existing subscription
func (r *subscriptionRepository) Save(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

// ListLapsed returns subscriptions past their expiry that the sweep still has
// to downgrade. BASIC never lapses and cancelled rows stay frozen, so both
// are excluded at the query level.
func (r *subscriptionRepository) ListLapsed(now time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	query := r.db.Where(
		"expires_at IS NOT NULL AND expires_at < ? AND tier <> ? AND status <> ?",
		now, models.TierBasic, models.SubscriptionStatusCancelled,
	).Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&subs).Error
	return subs, err
}

// ListExpiringTrials returns active trials that expire within the window.
func (r *subscriptionRepository) ListExpiringTrials(now time.Time, within time.Duration, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	query := r.db.Where(
		"tier = ? AND status = ? AND expires_at IS NOT NULL AND expires_at > ? AND expires_at <= ?",
		models.TierTrial, models.SubscriptionStatusActive, now, now.Add(within),
	).Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&subs).Error
	return subs, err
}
