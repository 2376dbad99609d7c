package money

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTimes(t *testing.T) {
	tests := []struct {
		name    string
		price   Cents
		qty     int
		want    Cents
		wantErr error
	}{
		{name: "simple", price: 1000, qty: 2, want: 2000},
		{name: "zero price", price: 0, qty: 5, want: 0},
		{name: "zero qty", price: 1999, qty: 0, want: 0},
		{name: "overflow", price: Cents(math.MaxInt64 / 2), qty: 3, wantErr: ErrOverflow},
	}
	for _, tt := range tests {
		got, err := tt.price.Times(tt.qty)
		if !errors.Is(err, tt.wantErr) {
			t.Fatalf("%s: expected err %v got %v", tt.name, tt.wantErr, err)
		}
		if err == nil && got != tt.want {
			t.Fatalf("%s: expected %d got %d", tt.name, tt.want, got)
		}
	}
}

func TestAdd(t *testing.T) {
	sum, err := Cents(2000).Add(1500)
	if err != nil || sum != 3500 {
		t.Fatalf("unexpected sum %d err %v", sum, err)
	}
	if _, err := Cents(math.MaxInt64).Add(1); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestStringAndDecimal(t *testing.T) {
	if got := Cents(2000).String(); got != "20.00" {
		t.Fatalf("expected 20.00 got %s", got)
	}
	if got := Cents(5).String(); got != "0.05" {
		t.Fatalf("expected 0.05 got %s", got)
	}
	if !Cents(1234).Decimal().Equal(decimal.RequireFromString("12.34")) {
		t.Fatal("decimal conversion mismatch")
	}
}

func TestFromDecimal(t *testing.T) {
	got, err := FromDecimal(decimal.RequireFromString("10.505"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1051 {
		t.Fatalf("expected 1051 got %d", got)
	}
}
