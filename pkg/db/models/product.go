package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline-backend/pkg/money"
)

// Product is a sellable item together with its on-hand stock.
type Product struct {
	ID             uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	BusinessID     uuid.UUID   `gorm:"column:business_id;type:uuid;not null;index"`
	Name           string      `gorm:"column:name;not null"`
	Description    *string     `gorm:"column:description"`
	PriceCents     money.Cents `gorm:"column:price_cents;not null;check:chk_products_price_cents,price_cents >= 0"`
	QuantityOnHand int         `gorm:"column:quantity_on_hand;not null;default:0;check:chk_products_quantity_on_hand,quantity_on_hand >= 0"`
	CreatedAt      time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
