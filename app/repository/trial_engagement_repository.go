package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
)

// Counter columns the engagement tracker may increment. Everything else is
// rejected to keep the column name out of injection reach.
var engagementColumns = map[string]bool{
	"leads_purchased":          true,
	"leads_converted":          true,
	"offers_sent":              true,
	"chat_messages_sent":       true,
	"logins_count":             true,
	"total_time_spent_minutes": true,
}

// trialEngagementRepository implements the TrialEngagementRepository interface
type trialEngagementRepository struct {
	db *gorm.DB
}

// NewTrialEngagementRepository creates a new trial engagement repository instance
func NewTrialEngagementRepository(db *gorm.DB) TrialEngagementRepository {
	return &trialEngagementRepository{db: db}
}

// Create creates the engagement row for a fresh trial
func (r *trialEngagementRepository) Create(e *models.TrialEngagement) error {
	return r.db.Create(e).Error
}

// GetByUserID retrieves the engagement row for a user
func (r *trialEngagementRepository) GetByUserID(userID uint) (*models.TrialEngagement, error) {
	var e models.TrialEngagement
	err := r.db.Where("user_id = ?", userID).First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Increment atomically adds delta to one counter column and refreshes the
// activity timestamp.
func (r *trialEngagementRepository) Increment(userID uint, column string, delta int) error {
	if !engagementColumns[column] {
		return fmt.Errorf("unknown engagement counter: %s", column)
	}
	now := time.Now()
	updates := map[string]interface{}{
		column:             gorm.Expr(column+" + ?", delta),
		"last_activity_at": &now,
	}
	if column == "logins_count" {
		updates["last_login_at"] = &now
	}
	return r.db.Model(&models.TrialEngagement{}).Where("user_id = ?", userID).Updates(updates).Error
}

// MarkReminderSent stamps the trial reminder so it is only sent once
func (r *trialEngagementRepository) MarkReminderSent(userID uint, at time.Time) error {
	return r.db.Model(&models.TrialEngagement{}).Where("user_id = ?", userID).
		Update("reminder_sent_at", at).Error
}
