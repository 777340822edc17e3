package models

import "time"

// TrialEngagement tracks how actively a trial account uses the platform.
// It is a secondary read model consumed only by reminder scheduling; the
// state machine never reads it.
type TrialEngagement struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	UserID                uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	SubscriptionID        uint       `gorm:"not null;index" json:"subscription_id"`
	LeadsPurchased        int        `gorm:"not null;default:0" json:"leads_purchased"`
	LeadsConverted        int        `gorm:"not null;default:0" json:"leads_converted"`
	OffersSent            int        `gorm:"not null;default:0" json:"offers_sent"`
	ChatMessagesSent      int        `gorm:"not null;default:0" json:"chat_messages_sent"`
	LoginsCount           int        `gorm:"not null;default:0" json:"logins_count"`
	TotalTimeSpentMinutes int        `gorm:"not null;default:0" json:"total_time_spent_minutes"`
	LastLoginAt           *time.Time `gorm:"type:timestamp;default:null" json:"last_login_at,omitempty"`
	LastActivityAt        *time.Time `gorm:"type:timestamp;default:null" json:"last_activity_at,omitempty"`
	ReminderSentAt        *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
