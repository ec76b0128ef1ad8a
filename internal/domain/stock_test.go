package domain_test

import (
	"testing"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func TestStockIsLowStock(t *testing.T) {
	cases := []struct {
		name      string
		available int32
		threshold int32
		want      bool
	}{
		{name: "above threshold", available: 10, threshold: 3, want: false},
		{name: "at threshold", available: 3, threshold: 3, want: true},
		{name: "below threshold", available: 1, threshold: 3, want: true},
		{name: "zero", available: 0, threshold: 0, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := domain.Stock{Available: tc.available, LowStockThreshold: tc.threshold}
			if got := s.IsLowStock(); got != tc.want {
				t.Fatalf("IsLowStock: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStockHistoryValidate(t *testing.T) {
	h := domain.StockHistory{ProductID: "product-1", ChangeType: domain.StockChangeOut, Qty: 2}
	if errs := h.Validate(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}

	h = domain.StockHistory{ChangeType: domain.StockChangeOut, Qty: 0}
	if len(h.Validate()) == 0 {
		t.Fatal("expected validation errors for empty product and zero qty")
	}

	// Для ADJUST допустимо нулевое значение: остаток выставляется в 0.
	h = domain.StockHistory{ProductID: "product-1", ChangeType: domain.StockChangeAdjust, Qty: 0}
	if errs := h.Validate(); len(errs) != 0 {
		t.Fatalf("adjust to zero must be valid, got %v", errs)
	}
}

func TestValidCartQty(t *testing.T) {
	cases := []struct {
		qty  int32
		want bool
	}{
		{0, false},
		{1, true},
		{50, true},
		{99, true},
		{100, false},
		{-1, false},
	}

	for _, tc := range cases {
		if got := domain.ValidCartQty(tc.qty); got != tc.want {
			t.Fatalf("ValidCartQty(%d): got %v, want %v", tc.qty, got, tc.want)
		}
	}
}
