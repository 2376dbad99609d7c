package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerline/ledgerline-backend/pkg/money"
)

// Invoice is written once at purchase time and never updated.
type Invoice struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceNumber    string            `gorm:"column:invoice_number;not null;uniqueIndex:idx_invoices_invoice_number"`
	CustomerID       uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	BusinessID       uuid.UUID         `gorm:"column:business_id;type:uuid;not null;index"`
	TotalAmountCents money.Cents       `gorm:"column:total_amount_cents;not null"`
	PurchaseDate     time.Time         `gorm:"column:purchase_date;not null"`
	LineItems        []InvoiceLineItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:RESTRICT"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// InvoiceLineItem is one priced product/quantity entry. Position keeps the
// submission order.
type InvoiceLineItem struct {
	ID             uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID      uuid.UUID   `gorm:"column:invoice_id;type:uuid;not null;uniqueIndex:idx_invoice_line_items_position,priority:1"`
	Position       int         `gorm:"column:position;not null;uniqueIndex:idx_invoice_line_items_position,priority:2"`
	ProductID      uuid.UUID   `gorm:"column:product_id;type:uuid;not null"`
	Quantity       int         `gorm:"column:quantity;not null;check:chk_invoice_line_items_quantity,quantity > 0"`
	UnitPriceCents money.Cents `gorm:"column:unit_price_cents;not null"`
	LineTotalCents money.Cents `gorm:"column:line_total_cents;not null"`
}

func (li *InvoiceLineItem) BeforeCreate(*gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}
