package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
)

// ledgerRepository implements the LedgerRepository interface
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new credit ledger repository instance
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// Append inserts one immutable ledger row. There is no update or delete.
func (r *ledgerRepository) Append(tx *models.CreditTransaction) error {
	return r.db.Create(tx).Error
}

// HasPaidGrant reports whether the account ever received credits from a paid
// plan. TRIAL grants and rows without a tier do not count.
func (r *ledgerRepository) HasPaidGrant(userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.CreditTransaction{}).
		Where("user_id = ? AND kind = ? AND plan_tier NOT IN ('', ?)", userID, models.CreditTxGrant, models.TierTrial).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByUser returns ledger rows for an account, newest first, optionally
// filtered by kind.
func (r *ledgerRepository) ListByUser(userID uint, kind string, limit, offset int) ([]models.CreditTransaction, error) {
	var rows []models.CreditTransaction
	query := r.db.Where("user_id = ?", userID)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Order("created_at DESC, id DESC").Offset(offset).Find(&rows).Error
	return rows, err
}

// SumAmounts returns the signed sum of all ledger amounts for an account.
func (r *ledgerRepository) SumAmounts(userID uint) (int, error) {
	var sum int
	err := r.db.Model(&models.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Row().Scan(&sum)
	return sum, err
}
