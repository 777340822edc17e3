package credits

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
	"github.com/ManuelReschke/JobFuchs/app/repository"
	"github.com/ManuelReschke/JobFuchs/internal/pkg/billing"
)

// Service runs standalone ledger operations. Every mutation locks the
// subscription row inside one transaction so the balance snapshot in the
// appended ledger entry is never stale.
type Service struct {
	db *gorm.DB
}

// NewService creates a credit service on a GORM DB handle.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Grant adds credits outside a payment flow (support, promotions).
func (s *Service) Grant(userID uint, amount int, reason string) (*models.Subscription, error) {
	return s.withLockedSubscription(userID, func(repos *repository.Repositories, sub *models.Subscription) error {
		return ApplyGrant(repos, sub, amount, reason, "", nil)
	})
}

// Deduct consumes one credit for a priced action.
func (s *Service) Deduct(userID uint, reason string, relatedJobID *uint) (*models.Subscription, error) {
	return s.withLockedSubscription(userID, func(repos *repository.Repositories, sub *models.Subscription) error {
		return ApplyDeduct(repos, sub, reason, relatedJobID)
	})
}

// Refund returns up to amount credits previously spent.
func (s *Service) Refund(userID uint, amount int, reason string) (*models.Subscription, error) {
	return s.withLockedSubscription(userID, func(repos *repository.Repositories, sub *models.Subscription) error {
		_, err := ApplyRefund(repos, sub, amount, reason)
		return err
	})
}

// Replay recomputes the balance from the ordered ledger and reports whether
// it matches the cached balance. Unlimited accounts must replay to zero.
func (s *Service) Replay(userID uint) (sum int, consistent bool, err error) {
	repos := repository.NewRepositories(s.db)

	sub, err := repos.Subscription.GetByUserID(userID)
	if err != nil {
		return 0, false, err
	}
	sum, err = repos.Ledger.SumAmounts(userID)
	if err != nil {
		return 0, false, err
	}

	if sub.HasUnlimitedCredits() {
		return sum, sum == 0, nil
	}
	return sum, sum == sub.CreditBalance, nil
}

// withLockedSubscription runs op inside a transaction holding the FOR UPDATE
// lock on the user's subscription row. Lock conflicts are retried once.
func (s *Service) withLockedSubscription(userID uint, op func(*repository.Repositories, *models.Subscription) error) (*models.Subscription, error) {
	var result *models.Subscription

	run := func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			repos := repository.NewRepositories(tx)

			sub, err := repos.Subscription.GetByUserIDForUpdate(userID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return billing.ErrSubscriptionNotFound
				}
				return err
			}

			if err := op(repos, sub); err != nil {
				return err
			}
			if err := repos.Subscription.Save(sub); err != nil {
				return err
			}
			result = sub
			return nil
		})
	}

	err := run()
	if err != nil && isLockError(err) {
		log.Warnf("[Credits] lock conflict for user %d, retrying once: %v", userID, err)
		err = run()
		if err != nil && isLockError(err) {
			return nil, fmt.Errorf("%w: %v", billing.ErrConcurrentModification, err)
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// isLockError matches MySQL deadlock (1213) and lock wait timeout (1205).
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") || strings.Contains(msg, "lock wait timeout")
}
