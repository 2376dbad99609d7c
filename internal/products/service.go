package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline-backend/pkg/db/models"
	pkgerrors "github.com/ledgerline/ledgerline-backend/pkg/errors"
	"github.com/ledgerline/ledgerline-backend/pkg/money"
)

// Service exposes read access to stock and product creation for seeding.
type Service interface {
	GetStock(ctx context.Context, productID uuid.UUID) (*StockDTO, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	BusinessID     uuid.UUID
	Name           string
	Description    *string
	PriceCents     money.Cents
	QuantityOnHand int
}

type productRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
}

type service struct {
	repo productRepository
}

// NewService builds the product service.
func NewService(repo productRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetStock(ctx context.Context, productID uuid.UUID) (*StockDTO, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": productID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return toStockDTO(product), nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	switch {
	case input.BusinessID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business id is required")
	case name == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case input.PriceCents < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	case input.QuantityOnHand < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity on hand cannot be negative")
	}

	product := &models.Product{
		BusinessID:     input.BusinessID,
		Name:           name,
		Description:    input.Description,
		PriceCents:     input.PriceCents,
		QuantityOnHand: input.QuantityOnHand,
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return created, nil
}
