package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline-backend/pkg/db/models"
)

// StockDTO is the public view of a product's current stock and price.
type StockDTO struct {
	ProductID      uuid.UUID `json:"product_id"`
	BusinessID     uuid.UUID `json:"business_id"`
	Name           string    `json:"name"`
	QuantityOnHand int       `json:"quantity_on_hand"`
	PriceCents     int64     `json:"price_cents"`
	Price          string    `json:"price"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toStockDTO(p *models.Product) *StockDTO {
	return &StockDTO{
		ProductID:      p.ID,
		BusinessID:     p.BusinessID,
		Name:           p.Name,
		QuantityOnHand: p.QuantityOnHand,
		PriceCents:     int64(p.PriceCents),
		Price:          p.PriceCents.String(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
}
