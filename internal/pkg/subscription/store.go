package subscription

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

// Store abstracts transaction handling away from the state machine so the
// transition logic is testable against in-memory repositories.
type Store interface {
	// Repos returns repositories outside any transaction.
	Repos() *repository.Repositories
	// Transaction runs op with transaction-scoped repositories.
	Transaction(op func(repos *repository.Repositories) error) error
	// WithLockedSubscription runs op in a transaction holding the FOR UPDATE
	// lock on the user's subscription row, retrying once on lock conflicts.
	// The subscription is saved after op returns nil.
	WithLockedSubscription(userID uint, op func(repos *repository.Repositories, sub *models.Subscription) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates the GORM-backed store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Repos() *repository.Repositories {
	return repository.NewRepositories(s.db)
}

func (s *gormStore) Transaction(op func(repos *repository.Repositories) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return op(repository.NewRepositories(tx))
	})
}

func (s *gormStore) WithLockedSubscription(userID uint, op func(repos *repository.Repositories, sub *models.Subscription) error) error {
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
			return repos.Subscription.Save(sub)
		})
	}

	err := run()
	if err != nil && isLockError(err) {
		log.Warnf("[Subscription] lock conflict for user %d, retrying once: %v", userID, err)
		err = run()
		if err != nil && isLockError(err) {
			return fmt.Errorf("%w: %v", billing.ErrConcurrentModification, err)
		}
	}
	return err
}

// isLockError matches MySQL deadlock (1213) and lock wait timeout (1205).
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") || strings.Contains(msg, "lock wait timeout")
}
