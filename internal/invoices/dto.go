package invoices

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline-backend/pkg/db/models"
	"github.com/ledgerline/ledgerline-backend/pkg/enums"
	"github.com/ledgerline/ledgerline-backend/pkg/pagination"
)

// CreateInvoiceInput is a validated purchase request.
type CreateInvoiceInput struct {
	CustomerID    uuid.UUID
	BusinessID    uuid.UUID
	InvoiceNumber *string
	Items         []LineRequest
}

// LineRequest is one requested product and quantity.
type LineRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

// Viewer identifies who is reading an invoice.
type Viewer struct {
	UserID uuid.UUID
	Role   enums.Role
}

// InvoiceDTO is the public representation of an invoice.
type InvoiceDTO struct {
	ID            uuid.UUID     `json:"id"`
	InvoiceNumber string        `json:"invoice_number"`
	CustomerID    uuid.UUID     `json:"customer_id"`
	BusinessID    uuid.UUID     `json:"business_id"`
	PurchaseDate  time.Time     `json:"purchase_date"`
	TotalCents    int64         `json:"total_amount_cents"`
	Total         string        `json:"total_amount"`
	LineItems     []LineItemDTO `json:"line_items"`
}

// LineItemDTO is one priced line of an invoice.
type LineItemDTO struct {
	ProductID      uuid.UUID `json:"product_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	UnitPrice      string    `json:"unit_price"`
	LineTotalCents int64     `json:"line_total_cents"`
	LineTotal      string    `json:"line_total"`
}

// NewInvoiceDTO maps a stored invoice to its public form.
func NewInvoiceDTO(inv *models.Invoice) *InvoiceDTO {
	if inv == nil {
		return nil
	}
	lines := make([]LineItemDTO, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		lines = append(lines, LineItemDTO{
			ProductID:      li.ProductID,
			Quantity:       li.Quantity,
			UnitPriceCents: int64(li.UnitPriceCents),
			UnitPrice:      li.UnitPriceCents.String(),
			LineTotalCents: int64(li.LineTotalCents),
			LineTotal:      li.LineTotalCents.String(),
		})
	}
	return &InvoiceDTO{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    inv.CustomerID,
		BusinessID:    inv.BusinessID,
		PurchaseDate:  inv.PurchaseDate.UTC(),
		TotalCents:    int64(inv.TotalAmountCents),
		Total:         inv.TotalAmountCents.String(),
		LineItems:     lines,
	}
}

// InvoicePageDTO is one page of invoices.
type InvoicePageDTO struct {
	Items      []*InvoiceDTO `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// NewInvoicePageDTO converts a page of models for the wire.
func NewInvoicePageDTO(page *pagination.Page[models.Invoice]) InvoicePageDTO {
	out := InvoicePageDTO{Items: []*InvoiceDTO{}}
	if page == nil {
		return out
	}
	for i := range page.Items {
		out.Items = append(out.Items, NewInvoiceDTO(&page.Items[i]))
	}
	out.NextCursor = page.NextCursor
	return out
}
