package invoices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline-backend/internal/repo"
	"github.com/ledgerline/ledgerline-backend/pkg/db"
	"github.com/ledgerline/ledgerline-backend/pkg/db/models"
	"github.com/ledgerline/ledgerline-backend/pkg/pagination"
)

// Repository persists invoices. Invoices are immutable, so it exposes no update or delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]models.Invoice, error)
}

// ListFilter selects invoices newest first. A nil CustomerID lists every customer.
type ListFilter struct {
	CustomerID *uuid.UUID
	Cursor     *pagination.Cursor
	Limit      int
}

type repository struct {
	base repo.Base
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

// Insert writes the invoice and its line items in one Create call.
func (r *repository) Insert(ctx context.Context, invoice *models.Invoice) error {
	return r.base.DB(ctx).Create(invoice).Error
}

// FindByID loads the invoice with its line items in submission order. It
// returns gorm.ErrRecordNotFound when absent.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.base.DB(ctx).
		Preload("LineItems", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		}).
		Where("id = ?", id).
		Take(&invoice).
		Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// List returns up to filter.Limit invoices ordered by (purchase_date, id) descending,
// starting after filter.Cursor.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Invoice, error) {
	q := r.base.DB(ctx).
		Preload("LineItems", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC")
		})
	if filter.CustomerID != nil {
		q = q.Where("customer_id = ?", *filter.CustomerID)
	}
	if c := filter.Cursor; c != nil {
		q = q.Where("(purchase_date < ?) OR (purchase_date = ? AND id < ?)", c.At, c.At, c.ID)
	}

	var out []models.Invoice
	err := q.Order("purchase_date DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Find(&out).
		Error
	return out, err
}

// isNumberCollision matches the unique index on invoice_number. Postgres
// reports the index name, SQLite only the column.
func isNumberCollision(err error) bool {
	return db.IsUniqueViolation(err, "idx_invoices_invoice_number") ||
		db.IsUniqueViolation(err, "invoices.invoice_number")
}
