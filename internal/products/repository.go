package products

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline-backend/internal/ledger"
	"github.com/ledgerline/ledgerline-backend/internal/repo"
	"github.com/ledgerline/ledgerline-backend/pkg/db/models"
	"github.com/ledgerline/ledgerline-backend/pkg/money"
)

// decrementSQL is the single guarded statement behind every reservation. The
// WHERE clause re-evaluates against the latest committed row, so concurrent
// decrements can never take quantity_on_hand below zero.
const decrementSQL = `
UPDATE products
SET quantity_on_hand = quantity_on_hand - ?,
    updated_at = ?
WHERE id = ? AND quantity_on_hand >= ?
RETURNING price_cents, quantity_on_hand
`

// Repository persists products and implements ledger.Store.
type Repository struct {
	base repo.Base
}

var _ ledger.Store = (*Repository)(nil)

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.WithTx(tx)}
}

// FindByID loads the product. It returns gorm.ErrRecordNotFound when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	found, err := r.base.FindByID(ctx, &product, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, gorm.ErrRecordNotFound
	}
	return &product, nil
}

// FindProduct satisfies ledger.Store.
func (r *Repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := r.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ledger.ErrProductNotFound
	}
	return product, err
}

type decrementRow struct {
	PriceCents     int64
	QuantityOnHand int
}

// ConditionalDecrement subtracts qty when enough stock is on hand and returns
// the price and remaining quantity read by the same statement.
func (r *Repository) ConditionalDecrement(ctx context.Context, id uuid.UUID, qty int) (ledger.Decrement, bool, error) {
	var rows []decrementRow
	err := r.base.DB(ctx).
		Raw(decrementSQL, qty, time.Now().UTC(), id, qty).
		Scan(&rows).
		Error
	if err != nil {
		return ledger.Decrement{}, false, err
	}
	if len(rows) == 0 {
		return ledger.Decrement{}, false, nil
	}
	return ledger.Decrement{
		UnitPrice: money.Cents(rows[0].PriceCents),
		Remaining: rows[0].QuantityOnHand,
	}, true, nil
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.base.DB(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// ListByBusiness returns a business's products ordered by name.
func (r *Repository) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.base.DB(ctx).
		Where("business_id = ?", businessID).
		Order("name ASC").
		Find(&rows).
		Error
	return rows, err
}
