package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline-backend/pkg/db/models"
	"github.com/ledgerline/ledgerline-backend/pkg/money"
)

// ErrProductNotFound is returned by stores when the product id is unknown.
var ErrProductNotFound = errors.New("product not found")

// Decrement is the product state observed by a successful guarded decrement.
type Decrement struct {
	UnitPrice money.Cents
	Remaining int
}

// Store is the persistence surface the ledger needs. ConditionalDecrement must
// subtract qty only when quantity_on_hand >= qty, as one indivisible step, and
// report false (with no error) when the guard did not match.
type Store interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ConditionalDecrement(ctx context.Context, id uuid.UUID, qty int) (Decrement, bool, error)
}
