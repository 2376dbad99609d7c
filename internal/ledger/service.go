package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/ledgerline/ledgerline-backend/pkg/errors"
	"github.com/ledgerline/ledgerline-backend/pkg/logger"
	"github.com/ledgerline/ledgerline-backend/pkg/metrics"
	"github.com/ledgerline/ledgerline-backend/pkg/money"
)

// Failure reasons attached to reservation errors under the "reason" detail.
const (
	ReasonInvalidQuantity   = "invalid_quantity"
	ReasonInvalidProduct    = "invalid_product_id"
	ReasonNotFound          = "not_found"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonStoreFailure      = "store_failure"
	ReasonCancelled         = "cancelled"
)

// Reservation is a successful stock decrement together with the unit price
// captured at that instant.
type Reservation struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice money.Cents
	Remaining int
}

// Service is the only path that decrements quantity on hand.
type Service interface {
	Reserve(ctx context.Context, productID uuid.UUID, quantity int) (Reservation, error)
}

type service struct {
	store   Store
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
}

// NewService wires the ledger with its store. metrics may be nil.
func NewService(store Store, logg *logger.Logger, m *metrics.LedgerMetrics) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{store: store, logg: logg, metrics: m}, nil
}

func (s *service) Reserve(ctx context.Context, productID uuid.UUID, quantity int) (Reservation, error) {
	if quantity <= 0 {
		s.metrics.ObserveReservation(metrics.OutcomeInvalid, quantity)
		return Reservation{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(details(productID, ReasonInvalidQuantity, map[string]any{"quantity": quantity}))
	}
	if productID == uuid.Nil {
		s.metrics.ObserveReservation(metrics.OutcomeInvalid, quantity)
		return Reservation{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required").
			WithDetails(details(productID, ReasonInvalidProduct, nil))
	}
	if err := ctx.Err(); err != nil {
		s.metrics.ObserveReservation(metrics.OutcomeError, quantity)
		return Reservation{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reservation cancelled").
			WithDetails(details(productID, ReasonCancelled, nil))
	}

	dec, ok, err := s.store.ConditionalDecrement(ctx, productID, quantity)
	if err != nil {
		s.metrics.ObserveReservation(metrics.OutcomeError, quantity)
		return Reservation{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock").
			WithDetails(details(productID, ReasonStoreFailure, nil))
	}
	if ok {
		s.metrics.ObserveReservation(metrics.OutcomeReserved, quantity)
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"product_id": productID.String(),
			"quantity":   quantity,
			"remaining":  dec.Remaining,
		}), "ledger.reserved")
		return Reservation{
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: dec.UnitPrice,
			Remaining: dec.Remaining,
		}, nil
	}

	return Reservation{}, s.explainMiss(ctx, productID, quantity)
}

// explainMiss tells an unknown product apart from a short one after the guard
// failed. The stock it reports is a snapshot and may already be stale.
func (s *service) explainMiss(ctx context.Context, productID uuid.UUID, quantity int) error {
	product, err := s.store.FindProduct(ctx, productID)
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		s.metrics.ObserveReservation(metrics.OutcomeNotFound, quantity)
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(details(productID, ReasonNotFound, nil))
	case err != nil:
		s.metrics.ObserveReservation(metrics.OutcomeError, quantity)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product").
			WithDetails(details(productID, ReasonStoreFailure, nil))
	}

	s.metrics.ObserveReservation(metrics.OutcomeInsufficientStock, quantity)
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(details(productID, ReasonInsufficientStock, map[string]any{
			"requested": quantity,
			"available": product.QuantityOnHand,
		}))
}

func details(productID uuid.UUID, reason string, extra map[string]any) map[string]any {
	out := map[string]any{
		"product_id": productID.String(),
		"reason":     reason,
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
