package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline-backend/api/middleware"
	"github.com/ledgerline/ledgerline-backend/api/responses"
	"github.com/ledgerline/ledgerline-backend/api/validators"
	invoicesvc "github.com/ledgerline/ledgerline-backend/internal/invoices"
	pkgerrors "github.com/ledgerline/ledgerline-backend/pkg/errors"
	"github.com/ledgerline/ledgerline-backend/pkg/logger"
)

type createInvoiceRequest struct {
	BusinessID    string               `json:"business_id" validate:"required,uuid"`
	InvoiceNumber *string              `json:"invoice_number,omitempty" validate:"omitempty,max=64"`
	Items         []invoiceLineRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

// Quantity is range-checked by the invoice service so the error carries the line index.
type invoiceLineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"`
}

func (p createInvoiceRequest) toInput(customerID uuid.UUID) (invoicesvc.CreateInvoiceInput, error) {
	businessID, err := uuid.Parse(p.BusinessID)
	if err != nil {
		return invoicesvc.CreateInvoiceInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid business id").
			WithDetails(map[string]any{"field": "business_id"})
	}

	items := make([]invoicesvc.LineRequest, 0, len(p.Items))
	for i, item := range p.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return invoicesvc.CreateInvoiceInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id").
				WithDetails(map[string]any{"field": "product_id", "index": i})
		}
		items = append(items, invoicesvc.LineRequest{ProductID: productID, Quantity: item.Quantity})
	}

	return invoicesvc.CreateInvoiceInput{
		CustomerID:    customerID,
		BusinessID:    businessID,
		InvoiceNumber: p.InvoiceNumber,
		Items:         items,
	}, nil
}

// CreateInvoice reserves stock for every requested line and records the invoice.
// The verified caller is the invoice's customer.
func CreateInvoice(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		customerID, _, ok := middleware.Actor(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload createInvoiceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.CreateInvoice(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Location", "/api/v1/invoices/"+invoice.ID.String())
		responses.WriteSuccessStatus(w, http.StatusCreated, invoicesvc.NewInvoiceDTO(invoice))
	}
}

// GetInvoice returns one invoice. Customers only see their own.
func GetInvoice(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		userID, role, ok := middleware.Actor(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		invoiceID, err := validators.ParseUUIDParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.GetInvoice(r.Context(), invoiceID, invoicesvc.Viewer{UserID: userID, Role: role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, invoicesvc.NewInvoiceDTO(invoice))
	}
}

// ListInvoices pages through invoices newest first. Customers only see their own.
func ListInvoices(svc invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}

		userID, role, ok := middleware.Actor(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListInvoices(r.Context(), invoicesvc.Viewer{UserID: userID, Role: role}, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, invoicesvc.NewInvoicePageDTO(page))
	}
}
