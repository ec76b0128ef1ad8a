package stock

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	return NewService(memory.NewStockRepository(), nil)
}

func TestCreateAndGet(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.Create("product-1", 10, 2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Available != 10 {
		t.Errorf("expected available 10, got %d", created.Available)
	}

	stock, err := svc.Get("product-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stock.ProductID != "product-1" || stock.LowStockThreshold != 2 {
		t.Errorf("unexpected stock: %+v", stock)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Create("", 1, 0); !errors.Is(err, domain.ErrProductRequired) {
		t.Errorf("expected ErrProductRequired, got %v", err)
	}
	if _, err := svc.Create("product-1", -1, 0); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestHasStock(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Create("product-1", 5, 0); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name    string
		qty     int32
		want    bool
		wantErr error
	}{
		{"enough", 5, true, nil},
		{"not enough", 6, false, nil},
		{"zero qty", 0, false, domain.ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.HasStock("product-1", tt.qty)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("HasStock: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if _, err := svc.HasStock("missing", 1); !errors.Is(err, domain.ErrStockNotFound) {
		t.Errorf("expected ErrStockNotFound, got %v", err)
	}
}

func TestReduceRejectsInsufficient(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Create("product-1", 3, 0); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Reduce("product-1", 4, "order", "ref-1"); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Отклонённое списание не трогает остаток.
	available, err := svc.Available("product-1")
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if available != 3 {
		t.Errorf("expected available 3, got %d", available)
	}
}

func TestReduceIdempotentByRef(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Create("product-1", 10, 0); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Reduce("product-1", 4, "fulfillment", "payment-1:product-1"); err != nil {
		t.Fatalf("first reduce: %v", err)
	}
	stock, err := svc.Reduce("product-1", 4, "fulfillment", "payment-1:product-1")
	if err != nil {
		t.Fatalf("duplicate reduce: %v", err)
	}
	if stock.Available != 6 {
		t.Errorf("duplicate reduce must be a no-op, available %d", stock.Available)
	}

	history, err := svc.History("product-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("expected single history row, got %d", len(history))
	}
}

func TestAddSetAndLowStock(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Create("product-1", 1, 3); err != nil {
		t.Fatalf("Create: %v", err)
	}

	low, err := svc.IsLowStock("product-1")
	if err != nil {
		t.Fatalf("IsLowStock: %v", err)
	}
	if !low {
		t.Error("expected low stock at available=1, threshold=3")
	}

	if _, err := svc.Add("product-1", 9, "restock"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	low, err = svc.IsLowStock("product-1")
	if err != nil {
		t.Fatalf("IsLowStock: %v", err)
	}
	if low {
		t.Error("expected stock above threshold after restock")
	}

	if _, err := svc.Set("product-1", 0, "inventory check"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	has, err := svc.HasStock("product-1", 1)
	if err != nil {
		t.Fatalf("HasStock: %v", err)
	}
	if has {
		t.Error("expected no stock after set to zero")
	}

	history, err := svc.History("product-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}
	if history[0].ChangeType != domain.StockChangeIn || history[1].ChangeType != domain.StockChangeAdjust {
		t.Errorf("unexpected history order: %+v", history)
	}
}
