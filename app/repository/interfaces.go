package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
)

// UserRepository defines the interface for account-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	TouchAPIKeyUsage(id uint, at time.Time) error
}

// PlanRepository defines read-only access to the subscription plan catalog
type PlanRepository interface {
	GetByID(id uint) (*models.SubscriptionPlan, error)
	// GetActiveByTier resolves the active plan for a tier, preferring a
	// (category, region) scoped plan over the global one.
	GetActiveByTier(tier string, categoryID *uint, region *string) (*models.SubscriptionPlan, error)
	ListActive(categoryID *uint, region *string) ([]models.SubscriptionPlan, error)
}

// SubscriptionRepository defines the interface for subscription rows
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByUserID(userID uint) (*models.Subscription, error)
	// GetByUserIDForUpdate loads the row with an exclusive lock; callers must
	// run inside a transaction.
	GetByUserIDForUpdate(userID uint) (*models.Subscription, error)
	Save(sub *models.Subscription) error
	// ListLapsed returns subscriptions whose validity window has passed and
	// that the expiry sweep still has to downgrade.
	ListLapsed(now time.Time, limit int) ([]models.Subscription, error)
	// ListExpiringTrials returns active trials whose expiry falls within the
	// given window, for reminder scheduling.
	ListExpiringTrials(now time.Time, within time.Duration, limit int) ([]models.Subscription, error)
}

// LedgerRepository defines append-only access to the credit ledger
type LedgerRepository interface {
	Append(tx *models.CreditTransaction) error
	// HasPaidGrant reports whether the account ever received a credit grant
	// tied to a paid (non-trial) plan.
	HasPaidGrant(userID uint) (bool, error)
	ListByUser(userID uint, kind string, limit, offset int) ([]models.CreditTransaction, error)
	// SumAmounts replays the ledger: the signed sum of all amounts for an
	// account, in insertion order, must equal the cached balance.
	SumAmounts(userID uint) (int, error)
}

// HistoryFilter narrows subscription history queries.
type HistoryFilter struct {
	Action string
	Tier   string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// HistoryRepository defines append-only access to the lifecycle audit trail
type HistoryRepository interface {
	Append(entry *models.SubscriptionHistory) error
	List(userID uint, filter HistoryFilter) ([]models.SubscriptionHistory, error)
	CountByUser(userID uint) (int64, error)
}

// WebhookEventRepository stores gateway webhook events with deduplication
type WebhookEventRepository interface {
	// CreateIfNotExists inserts the event unless the (provider, event id)
	// pair already exists. Returns created=false for duplicates along with
	// the stored row.
	CreateIfNotExists(event *models.GatewayWebhookEvent) (bool, *models.GatewayWebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
}

// AddonRepository defines the interface for addon scope grants
type AddonRepository interface {
	Create(grant *models.AddonGrant) error
	ListActiveByUser(userID uint, now time.Time) ([]models.AddonGrant, error)
	// ExpireLapsed marks grants whose grace period has passed as EXPIRED and
	// returns how many rows changed.
	ExpireLapsed(now time.Time) (int64, error)
}

// TrialEngagementRepository defines the interface for the trial read model
type TrialEngagementRepository interface {
	Create(e *models.TrialEngagement) error
	GetByUserID(userID uint) (*models.TrialEngagement, error)
	// Increment atomically adds delta to one counter column and refreshes
	// the activity timestamp.
	Increment(userID uint, column string, delta int) error
	MarkReminderSent(userID uint, at time.Time) error
}

// InvoiceRepository defines the interface for settled charges
type InvoiceRepository interface {
	Create(inv *models.Invoice) error
	HasPaid(userID uint) (bool, error)
	ListByUser(userID uint, limit, offset int) ([]models.Invoice, error)
}

// NotificationRepository defines the interface for in-app notifications
type NotificationRepository interface {
	Create(n *models.Notification) error
}

// Repositories bundles all repository instances
type Repositories struct {
	User            UserRepository
	Plan            PlanRepository
	Subscription    SubscriptionRepository
	Ledger          LedgerRepository
	History         HistoryRepository
	WebhookEvent    WebhookEventRepository
	Addon           AddonRepository
	TrialEngagement TrialEngagementRepository
	Invoice         InvoiceRepository
	Notification    NotificationRepository
}

// NewRepositories creates all repository instances against the given handle.
// Pass a transaction handle to get a repository set scoped to that transaction.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:            NewUserRepository(db),
		Plan:            NewPlanRepository(db),
		Subscription:    NewSubscriptionRepository(db),
		Ledger:          NewLedgerRepository(db),
		History:         NewHistoryRepository(db),
		WebhookEvent:    NewWebhookEventRepository(db),
		Addon:           NewAddonRepository(db),
		TrialEngagement: NewTrialEngagementRepository(db),
		Invoice:         NewInvoiceRepository(db),
		Notification:    NewNotificationRepository(db),
	}
}
