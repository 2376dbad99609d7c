package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline-backend/internal/ledger"
	"github.com/ledgerline/ledgerline-backend/pkg/db/models"
	pkgerrors "github.com/ledgerline/ledgerline-backend/pkg/errors"
	"github.com/ledgerline/ledgerline-backend/pkg/logger"
	"github.com/ledgerline/ledgerline-backend/pkg/metrics"
	"github.com/ledgerline/ledgerline-backend/pkg/money"
	"github.com/ledgerline/ledgerline-backend/pkg/pagination"
)

// Abort reasons that are not produced by the ledger itself.
const (
	ReasonValidation      = "validation"
	ReasonOverflow        = "amount_overflow"
	ReasonNumberCollision = "invoice_number_conflict"
	ReasonCommitFailed    = "commit_failed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type businessLookup interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service builds and reads invoices.
type Service interface {
	CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*models.Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID, viewer Viewer) (*models.Invoice, error)
	ListInvoices(ctx context.Context, viewer Viewer, params pagination.Params) (*pagination.Page[models.Invoice], error)
}

type service struct {
	tx         txRunner
	repo       Repository
	businesses businessLookup
	ledger     ledger.Service
	numbers    NumberGenerator
	logg       *logger.Logger
	metrics    *metrics.InvoiceMetrics
	now        func() time.Time
}

// NewService wires the invoice builder. metrics may be nil.
func NewService(
	tx txRunner,
	repo Repository,
	businesses businessLookup,
	stock ledger.Service,
	numbers NumberGenerator,
	logg *logger.Logger,
	m *metrics.InvoiceMetrics,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if businesses == nil {
		return nil, fmt.Errorf("business lookup required")
	}
	if stock == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if numbers == nil {
		numbers = NewTimestampNumbers(nil)
	}
	return &service{
		tx:         tx,
		repo:       repo,
		businesses: businesses,
		ledger:     stock,
		numbers:    numbers,
		logg:       logg,
		metrics:    m,
		now:        time.Now,
	}, nil
}

func (s *service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*models.Invoice, error) {
	explicitNumber, err := validateCreateInput(input)
	if err != nil {
		s.metrics.IncAbort(ReasonValidation)
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"customer_id": input.CustomerID.String(),
		"business_id": input.BusinessID.String(),
	})

	exists, err := s.businesses.Exists(ctx, input.BusinessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load business")
	}
	if !exists {
		s.metrics.IncAbort(ledger.ReasonNotFound)
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "business not found").
			WithDetails(map[string]any{"business_id": input.BusinessID.String()})
	}

	// Numbers are drawn before any stock moves.
	number := explicitNumber
	if number == "" {
		number, err = s.numbers.Next(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate invoice number")
		}
	}
	ctx = s.logg.WithInvoiceNumber(ctx, number)

	invoice := &models.Invoice{
		InvoiceNumber: number,
		CustomerID:    input.CustomerID,
		BusinessID:    input.BusinessID,
		LineItems:     make([]models.InvoiceLineItem, 0, len(input.Items)),
	}
	reserved := make([]uuid.UUID, 0, len(input.Items))

	var total money.Cents
	for i, item := range input.Items {
		res, err := s.ledger.Reserve(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return nil, s.abort(ctx, reserved, lineError(err, i))
		}
		reserved = append(reserved, item.ProductID)

		lineTotal, err := res.UnitPrice.Times(res.Quantity)
		if err == nil {
			total, err = total.Add(lineTotal)
		}
		if err != nil {
			return nil, s.abort(ctx, reserved, overflowError(err, item.ProductID, i))
		}

		invoice.LineItems = append(invoice.LineItems, models.InvoiceLineItem{
			Position:       i,
			ProductID:      item.ProductID,
			Quantity:       res.Quantity,
			UnitPriceCents: res.UnitPrice,
			LineTotalCents: lineTotal,
		})
	}

	invoice.TotalAmountCents = total
	invoice.PurchaseDate = s.now().UTC().Truncate(time.Microsecond)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Insert(ctx, invoice)
	})
	if err != nil {
		if isNumberCollision(err) {
			return nil, s.abort(ctx, reserved, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "invoice number already exists").
				WithDetails(map[string]any{"invoice_number": number, "reason": ReasonNumberCollision}))
		}
		return nil, s.abort(ctx, reserved, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist invoice").
			WithDetails(map[string]any{"reason": ReasonCommitFailed}))
	}

	s.metrics.ObserveCreated(int64(invoice.TotalAmountCents), len(invoice.LineItems))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"invoice_id":   invoice.ID.String(),
		"total_cents":  int64(invoice.TotalAmountCents),
		"line_items":   len(invoice.LineItems),
		"purchased_at": invoice.PurchaseDate.Format(time.RFC3339Nano),
	}), "invoice.created")
	return invoice, nil
}

func (s *service) GetInvoice(ctx context.Context, id uuid.UUID, viewer Viewer) (*models.Invoice, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found").
				WithDetails(map[string]any{"invoice_id": id.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if !viewer.Role.CanReadAnyInvoice() && invoice.CustomerID != viewer.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "invoice belongs to another customer")
	}
	return invoice, nil
}

// ListInvoices pages through invoices newest first. Customers only see their
// own; admins and managers see every invoice.
func (s *service) ListInvoices(ctx context.Context, viewer Viewer, params pagination.Params) (*pagination.Page[models.Invoice], error) {
	if !viewer.Role.IsValid() || viewer.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "viewer required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]any{"field": "cursor"})
	}

	filter := ListFilter{Cursor: cursor, Limit: pagination.LimitWithBuffer(params.Limit)}
	if !viewer.Role.CanReadAnyInvoice() {
		customerID := viewer.UserID
		filter.CustomerID = &customerID
	}

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	items, next := pagination.Trim(rows, params.Limit, func(inv models.Invoice) pagination.Cursor {
		return pagination.Cursor{At: inv.PurchaseDate, ID: inv.ID}
	})
	return &pagination.Page[models.Invoice]{Items: items, NextCursor: next}, nil
}

// abort records a failed creation. Reservations already applied stay applied;
// they are logged so operators can reconcile stock.
func (s *service) abort(ctx context.Context, reserved []uuid.UUID, err *pkgerrors.Error) error {
	reason := detailString(err, "reason")
	s.metrics.IncAbort(reason)

	fields := map[string]any{
		"reason":     reason,
		"error_code": string(err.Code()),
	}
	if productID := detailString(err, "product_id"); productID != "" {
		fields["product_id"] = productID
	}
	if len(reserved) == 0 {
		s.logg.Info(s.logg.WithFields(ctx, fields), "invoice.aborted")
		return err
	}

	ids := make([]string, 0, len(reserved))
	for _, id := range reserved {
		ids = append(ids, id.String())
	}
	fields["reserved_product_ids"] = ids
	s.logg.Warn(s.logg.WithFields(ctx, fields), "invoice.aborted_with_partial_reservations")

	// Stock already moved: repeating the request would take it again.
	details := map[string]any{}
	if existing, ok := err.Details().(map[string]any); ok {
		for k, v := range existing {
			details[k] = v
		}
	}
	details["reserved_product_ids"] = ids
	return err.WithDetails(details).WithRetryable(false)
}

func validateCreateInput(input CreateInvoiceInput) (string, error) {
	if input.CustomerID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if input.BusinessID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "business id is required")
	}
	if len(input.Items) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	for i, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "product id is required").
				WithDetails(map[string]any{"index": i, "field": "product_id", "reason": ledger.ReasonInvalidProduct})
		}
		if item.Quantity <= 0 {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{
					"index":      i,
					"field":      "quantity",
					"product_id": item.ProductID.String(),
					"reason":     ledger.ReasonInvalidQuantity,
				})
		}
	}

	if input.InvoiceNumber == nil {
		return "", nil
	}
	number := strings.TrimSpace(*input.InvoiceNumber)
	if number == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invoice number cannot be blank").
			WithDetails(map[string]any{"field": "invoice_number"})
	}
	if utf8.RuneCountInString(number) > maxNumberLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invoice number exceeds %d characters", maxNumberLength)).
			WithDetails(map[string]any{"field": "invoice_number"})
	}
	return number, nil
}

// lineError re-labels a ledger failure with the index of the line that caused it.
func lineError(err error, index int) *pkgerrors.Error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve stock").
			WithDetails(map[string]any{"index": index})
	}
	details := map[string]any{"index": index}
	if src, ok := typed.Details().(map[string]any); ok {
		for k, v := range src {
			details[k] = v
		}
	}
	return pkgerrors.Wrap(typed.Code(), err, typed.Message()).WithDetails(details)
}

func overflowError(err error, productID uuid.UUID, index int) *pkgerrors.Error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invoice amount too large").
		WithDetails(map[string]any{
			"index":      index,
			"product_id": productID.String(),
			"reason":     ReasonOverflow,
		})
}

func detailString(err *pkgerrors.Error, key string) string {
	details, ok := err.Details().(map[string]any)
	if !ok {
		return ""
	}
	value, _ := details[key].(string)
	return value
}
