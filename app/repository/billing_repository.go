package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/JobFuchs/app/models"
)

// invoiceRepository implements the InvoiceRepository interface
type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository instance
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// Create creates a new invoice
func (r *invoiceRepository) Create(inv *models.Invoice) error {
	return r.db.Create(inv).Error
}

// HasPaid reports whether the account has at least one settled invoice
func (r *invoiceRepository) HasPaid(userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Invoice{}).
		Where("user_id = ? AND status = ?", userID, models.InvoiceStatusPaid).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByUser returns invoices for an account, newest first
func (r *invoiceRepository) ListByUser(userID uint, limit, offset int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	query := r.db.Where("user_id = ?", userID)
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Order("created_at DESC, id DESC").Offset(offset).Find(&invoices).Error
	return invoices, err
}

// notificationRepository implements the NotificationRepository interface
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository instance
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create creates a new notification
func (r *notificationRepository) Create(n *models.Notification) error {
	return r.db.Create(n).Error
}
