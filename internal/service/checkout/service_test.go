package checkout

import (
	"errors"
	"strings"
	"testing"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/cart"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
	"github.com/vladislavdragonenkov/shop/internal/service/payment"
	"github.com/vladislavdragonenkov/shop/internal/service/stock"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

type fixture struct {
	svc      Service
	carts    cart.Service
	stocks   stock.Service
	payments payment.Service
	catalog  *catalog.MockCatalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat := catalog.NewMockCatalog(map[string]int64{
		"product-1": 1000,
		"product-2": 2500,
	})
	carts := cart.NewService(memory.NewCartRepository(), cat, nil)
	stocks := stock.NewService(memory.NewStockRepository(), nil)

	outbox := memory.NewOutboxRepository()
	orderRepo := memory.NewOrderRepository()
	orders := order.NewService(orderRepo, outbox, memory.NewTimelineRepository(), nil, nil)
	payments := payment.NewService(memory.NewPaymentRepository(outbox), orderRepo, nil)

	svc := NewService(carts, stocks, orders, payments, carts, "RUB", nil, nil)

	return &fixture{
		svc:      svc,
		carts:    carts,
		stocks:   stocks,
		payments: payments,
		catalog:  cat,
	}
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	if _, err := f.stocks.Create("product-1", 10, 0); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	if _, err := f.carts.AddItem("user-1", "product-1", 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	result, err := f.svc.Checkout("user-1", domain.PaymentMethodCard)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if result.Order.AmountMinor != 2000 {
		t.Errorf("expected order total 2000, got %d", result.Order.AmountMinor)
	}
	if result.Order.Status != domain.OrderStatusPending {
		t.Errorf("expected pending order, got %s", result.Order.Status)
	}
	if result.Payment.Status != domain.PaymentStatusInit {
		t.Errorf("expected init payment, got %s", result.Payment.Status)
	}
	if result.Payment.AmountMinor != 2000 {
		t.Errorf("expected payment amount 2000, got %d", result.Payment.AmountMinor)
	}

	// Корзина очищена.
	items, err := f.carts.List("user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty cart after checkout, got %d items", len(items))
	}

	// Остаток при checkout не трогается — списание только после оплаты.
	available, err := f.stocks.Available("product-1")
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if available != 10 {
		t.Errorf("checkout must not reduce stock, available %d", available)
	}
}

func TestCheckoutDefaultMethod(t *testing.T) {
	f := newFixture(t)
	if _, err := f.stocks.Create("product-1", 10, 0); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	if _, err := f.carts.AddItem("user-1", "product-1", 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	result, err := f.svc.Checkout("user-1", "")
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if result.Payment.Method != DefaultPaymentMethod {
		t.Errorf("expected default method %s, got %s", DefaultPaymentMethod, result.Payment.Method)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Checkout("user-1", domain.PaymentMethodCard); !errors.Is(err, domain.ErrCartEmpty) {
		t.Fatalf("expected ErrCartEmpty, got %v", err)
	}
}

func TestCheckoutInsufficientStock(t *testing.T) {
	f := newFixture(t)
	if _, err := f.stocks.Create("product-1", 10, 0); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	if _, err := f.stocks.Create("product-2", 1, 0); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	if _, err := f.carts.AddItem("user-1", "product-1", 1); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := f.carts.AddItem("user-1", "product-2", 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	_, err := f.svc.Checkout("user-1", domain.PaymentMethodCard)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	// Ошибка называет проблемный товар.
	if got := err.Error(); !strings.Contains(got, "product-2") {
		t.Errorf("error must name the offending product, got %q", got)
	}

	// Корзина не очищена после провала.
	items, err := f.carts.List("user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("cart must survive failed checkout, got %d items", len(items))
	}
}

func TestCheckoutUsesSnapshotPrices(t *testing.T) {
	f := newFixture(t)
	if _, err := f.stocks.Create("product-1", 10, 0); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	if _, err := f.carts.AddItem("user-1", "product-1", 2); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	// Цена в каталоге меняется после добавления в корзину.
	f.catalog.SetPrice("product-1", 99999)

	result, err := f.svc.Checkout("user-1", domain.PaymentMethodCard)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if result.Order.AmountMinor != 2000 {
		t.Errorf("order must use captured cart price, got total %d", result.Order.AmountMinor)
	}
}
