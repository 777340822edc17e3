package trial

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/billing"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/database"
)

// Engagement metrics. The names double as ledger column names.
const (
	MetricLeadsPurchased   = "leads_purchased"
	MetricLeadsConverted   = "leads_converted"
	MetricOffersSent       = "offers_sent"
	MetricChatMessages     = "chat_messages_sent"
	MetricLogins           = "logins_count"
	MetricTimeSpentMinutes = "total_time_spent_minutes"
)

var trackedMetrics = map[string]bool{
	MetricLeadsPurchased:   true,
	MetricLeadsConverted:   true,
	MetricOffersSent:       true,
	MetricChatMessages:     true,
	MetricLogins:           true,
	MetricTimeSpentMinutes: true,
}

// Tracker records engagement counters for trial accounts. Tracking is
// fire-and-forget from the caller's perspective: accounts outside an active
// trial are skipped silently, so call sites never have to check tier first.
type Tracker struct {
	repos *repository.Repositories
}

func NewTracker(repos *repository.Repositories) *Tracker {
	return &Tracker{repos: repos}
}

func NewTrackerFromDB() *Tracker {
	return NewTracker(repository.NewRepositories(database.GetDB()))
}

// Track adds delta to one engagement metric if the account is in an active
// trial. Unknown metrics and non-positive deltas are rejected.
func (t *Tracker) Track(userID uint, metric string, delta int, now time.Time) error {
	if !trackedMetrics[metric] {
		return fmt.Errorf("%w: unknown engagement metric %q", billing.ErrValidation, metric)
	}
	if delta <= 0 {
		return fmt.Errorf("%w: delta must be positive", billing.ErrValidation)
	}

	sub, err := t.repos.Subscription.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if sub.Tier != models.TierTrial || sub.Status != models.SubscriptionStatusActive || sub.IsLapsed(now) {
		return nil
	}

	if err := t.repos.TrialEngagement.Increment(userID, metric, delta); err != nil {
		log.Errorf("[Trial] track %s for user %d: %v", metric, userID, err)
		return err
	}
	return nil
}

// RecordLogin bumps the login counter, refreshing the last login timestamp.
func (t *Tracker) RecordLogin(userID uint, now time.Time) error {
	return t.Track(userID, MetricLogins, 1, now)
}

// Snapshot returns the engagement counters for an account.
func (t *Tracker) Snapshot(userID uint) (*models.TrialEngagement, error) {
	e, err := t.repos.TrialEngagement.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, billing.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return e, nil
}
