package products

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline-backend/pkg/db/models"
	pkgerrors "github.com/ledgerline/ledgerline-backend/pkg/errors"
)

type stubRepo struct {
	product   *models.Product
	findErr   error
	createErr error
	created   *models.Product
}

func (s *stubRepo) FindByID(context.Context, uuid.UUID) (*models.Product, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.product, nil
}

func (s *stubRepo) CreateProduct(_ context.Context, p *models.Product) (*models.Product, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = p
	return p, nil
}

func TestGetStock(t *testing.T) {
	id := uuid.New()
	repo := &stubRepo{product: &models.Product{
		ID:             id,
		BusinessID:     uuid.New(),
		Name:           "Widget",
		PriceCents:     1050,
		QuantityOnHand: 7,
		UpdatedAt:      time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	dto, err := svc.GetStock(context.Background(), id)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if dto.ProductID != id || dto.QuantityOnHand != 7 || dto.PriceCents != 1050 || dto.Price != "10.50" {
		t.Fatalf("unexpected dto %+v", dto)
	}
}

func TestGetStockErrors(t *testing.T) {
	cases := []struct {
		name string
		id   uuid.UUID
		err  error
		want pkgerrors.Code
	}{
		{name: "nil id", id: uuid.Nil, want: pkgerrors.CodeValidation},
		{name: "missing", id: uuid.New(), err: gorm.ErrRecordNotFound, want: pkgerrors.CodeNotFound},
		{name: "store down", id: uuid.New(), err: errors.New("dial tcp"), want: pkgerrors.CodeDependency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := NewService(&stubRepo{findErr: tc.err})
			_, err := svc.GetStock(context.Background(), tc.id)
			if !pkgerrors.Is(err, tc.want) {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateProductValidation(t *testing.T) {
	business := uuid.New()
	cases := []CreateProductInput{
		{Name: "x", PriceCents: 1},
		{BusinessID: business, Name: "  ", PriceCents: 1},
		{BusinessID: business, Name: "x", PriceCents: -1},
		{BusinessID: business, Name: "x", PriceCents: 1, QuantityOnHand: -1},
	}
	for _, input := range cases {
		repo := &stubRepo{}
		svc, _ := NewService(repo)
		if _, err := svc.CreateProduct(context.Background(), input); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %+v, got %v", input, err)
		}
		if repo.created != nil {
			t.Fatalf("repository must not be called for %+v", input)
		}
	}
}

func TestCreateProductTrimsName(t *testing.T) {
	repo := &stubRepo{}
	svc, _ := NewService(repo)

	p, err := svc.CreateProduct(context.Background(), CreateProductInput{
		BusinessID:     uuid.New(),
		Name:           "  Gadget ",
		PriceCents:     999,
		QuantityOnHand: 3,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Name != "Gadget" || p.QuantityOnHand != 3 {
		t.Fatalf("unexpected product %+v", p)
	}
}

func TestNewServiceRequiresRepository(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected error for nil repository")
	}
}
