package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline-backend/internal/products"
	"github.com/ledgerline/ledgerline-backend/pkg/money"
)

type productSeed struct {
	name     string
	price    money.Cents
	quantity int
}

func (p productSeed) toInput(businessID uuid.UUID) products.CreateProductInput {
	return products.CreateProductInput{
		BusinessID:     businessID,
		Name:           p.name,
		PriceCents:     p.price,
		QuantityOnHand: p.quantity,
	}
}

// parseProductSeeds reads "name:price:quantity" entries, e.g. "Widget:10.00:25".
func parseProductSeeds(raw string) ([]productSeed, error) {
	var seeds []productSeed
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("product %q: want name:price:quantity", entry)
		}
		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, fmt.Errorf("product %q: name is empty", entry)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("product %q: price: %w", entry, err)
		}
		price, err := money.FromDecimal(amount)
		if err != nil {
			return nil, fmt.Errorf("product %q: price: %w", entry, err)
		}
		if price < 0 {
			return nil, fmt.Errorf("product %q: price cannot be negative", entry)
		}
		qty, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("product %q: quantity: %w", entry, err)
		}
		if qty < 0 {
			return nil, fmt.Errorf("product %q: quantity cannot be negative", entry)
		}
		seeds = append(seeds, productSeed{name: name, price: price, quantity: qty})
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no products given")
	}
	return seeds, nil
}
