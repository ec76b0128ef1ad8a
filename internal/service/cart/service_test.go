package cart

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func newTestService(t *testing.T) (Service, *catalog.MockCatalog) {
	t.Helper()
	cat := catalog.NewMockCatalog(map[string]int64{
		"product-1": 1000,
		"product-2": 2500,
	})
	return NewService(memory.NewCartRepository(), cat, nil), cat
}

func TestAddItem(t *testing.T) {
	svc, _ := newTestService(t)

	item, err := svc.AddItem("user-1", "product-1", 2)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if item.Qty != 2 {
		t.Errorf("expected qty 2, got %d", item.Qty)
	}
	if item.PriceMinor != 1000 {
		t.Errorf("expected stamped price 1000, got %d", item.PriceMinor)
	}
	if item.ID == "" {
		t.Error("expected generated item ID")
	}
}

func TestAddItemValidation(t *testing.T) {
	svc, cat := newTestService(t)
	cat.SetUnavailable("product-2")

	tests := []struct {
		name      string
		userID    string
		productID string
		qty       int32
		wantErr   error
	}{
		{"empty user", "", "product-1", 1, domain.ErrUserRequired},
		{"empty product", "user-1", "", 1, domain.ErrProductRequired},
		{"zero qty", "user-1", "product-1", 0, domain.ErrInvalidQuantity},
		{"negative qty", "user-1", "product-1", -1, domain.ErrInvalidQuantity},
		{"qty above max", "user-1", "product-1", 100, domain.ErrInvalidQuantity},
		{"unavailable product", "user-1", "product-2", 1, domain.ErrProductUnavailable},
		{"unknown product", "user-1", "product-x", 1, domain.ErrProductUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.AddItem(tt.userID, tt.productID, tt.qty); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAddItemIncrementsExisting(t *testing.T) {
	svc, cat := newTestService(t)

	if _, err := svc.AddItem("user-1", "product-1", 2); err != nil {
		t.Fatalf("first add: %v", err)
	}

	// Цена в каталоге изменилась между добавлениями.
	cat.SetPrice("product-1", 1200)

	item, err := svc.AddItem("user-1", "product-1", 3)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if item.Qty != 5 {
		t.Errorf("expected qty 5 after increment, got %d", item.Qty)
	}
	if item.PriceMinor != 1200 {
		t.Errorf("expected re-stamped price 1200, got %d", item.PriceMinor)
	}
}

func TestAddItemIncrementAboveMax(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.AddItem("user-1", "product-1", 98); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := svc.AddItem("user-1", "product-1", 2); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}

	// Корзина осталась без изменений.
	item, err := svc.UpdateItem("user-1", "product-1", 98)
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if item.Qty != 98 {
		t.Errorf("expected untouched qty 98, got %d", item.Qty)
	}
}

func TestUpdateItemKeepsPrice(t *testing.T) {
	svc, cat := newTestService(t)

	if _, err := svc.AddItem("user-1", "product-1", 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	cat.SetPrice("product-1", 9999)

	item, err := svc.UpdateItem("user-1", "product-1", 7)
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if item.Qty != 7 {
		t.Errorf("expected qty 7, got %d", item.Qty)
	}
	if item.PriceMinor != 1000 {
		t.Errorf("update must not re-stamp price, got %d", item.PriceMinor)
	}
}

func TestUpdateItemNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.UpdateItem("user-1", "product-1", 1); !errors.Is(err, domain.ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}

func TestRemoveAndClear(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.AddItem("user-1", "product-1", 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.AddItem("user-1", "product-2", 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if err := svc.RemoveItem("user-1", "product-1"); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	items, err := svc.List("user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item after remove, got %d", len(items))
	}

	if err := svc.Clear("user-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	items, err = svc.List("user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty cart after clear, got %d items", len(items))
	}
}

func TestSnapshot(t *testing.T) {
	svc, cat := newTestService(t)

	if _, err := svc.AddItem("user-1", "product-1", 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.AddItem("user-1", "product-2", 3); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	// Снимок фиксирует цены: поздние изменения каталога его не касаются.
	cat.SetPrice("product-1", 5000)

	snapshot, err := svc.Snapshot("user-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snapshot.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(snapshot.Lines))
	}

	wantTotal := int64(2*1000 + 3*2500)
	if snapshot.TotalMinor != wantTotal {
		t.Errorf("expected total %d, got %d", wantTotal, snapshot.TotalMinor)
	}
	for _, line := range snapshot.Lines {
		if line.SubtotalMinor != int64(line.Qty)*line.PriceMinor {
			t.Errorf("line %s: subtotal %d != qty*price", line.ProductID, line.SubtotalMinor)
		}
	}
}

func TestSnapshotEmptyCart(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Snapshot("user-1"); !errors.Is(err, domain.ErrCartEmpty) {
		t.Fatalf("expected ErrCartEmpty, got %v", err)
	}
}
