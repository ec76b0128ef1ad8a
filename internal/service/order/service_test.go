package order

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

type fixture struct {
	svc    Service
	orders domain.OrderRepository
	outbox domain.OutboxRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	orders := memory.NewOrderRepository()
	outbox := memory.NewOutboxRepository()
	timeline := memory.NewTimelineRepository()
	return &fixture{
		svc:    NewService(orders, outbox, timeline, nil, nil),
		orders: orders,
		outbox: outbox,
	}
}

func staticPrices(prices map[string]int64) PriceResolver {
	return func(productID string) (int64, error) {
		price, ok := prices[productID]
		if !ok {
			return 0, domain.ErrProductNotFound
		}
		return price, nil
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create("user-1", "RUB", []Line{
		{ProductID: "product-1", Qty: 2},
		{ProductID: "product-2", Qty: 1},
	}, staticPrices(map[string]int64{"product-1": 1000, "product-2": 2500}))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected pending status, got %s", order.Status)
	}
	if order.AmountMinor != 2*1000+2500 {
		t.Errorf("expected total 4500, got %d", order.AmountMinor)
	}
	if len(order.Details) != 2 {
		t.Fatalf("expected 2 details, got %d", len(order.Details))
	}

	stored, err := f.orders.Get(order.ID)
	if err != nil {
		t.Fatalf("Get after create: %v", err)
	}
	if stored.AmountMinor != order.AmountMinor {
		t.Errorf("stored amount mismatch: %d vs %d", stored.AmountMinor, order.AmountMinor)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	resolve := staticPrices(map[string]int64{"product-1": 1000, "free": 0})

	tests := []struct {
		name    string
		userID  string
		lines   []Line
		wantErr error
	}{
		{"empty user", "", []Line{{ProductID: "product-1", Qty: 1}}, domain.ErrUserRequired},
		{"no lines", "user-1", nil, domain.ErrItemsRequired},
		{"empty product", "user-1", []Line{{ProductID: "", Qty: 1}}, domain.ErrProductRequired},
		{"zero qty", "user-1", []Line{{ProductID: "product-1", Qty: 0}}, domain.ErrInvalidQuantity},
		{"unknown product", "user-1", []Line{{ProductID: "nope", Qty: 1}}, domain.ErrProductNotFound},
		{"zero price", "user-1", []Line{{ProductID: "free", Qty: 1}}, domain.ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(tt.userID, "RUB", tt.lines, resolve); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateEmitsEvents(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create("user-1", "RUB", []Line{{ProductID: "product-1", Qty: 1}},
		staticPrices(map[string]int64{"product-1": 1000}))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	pending, err := f.outbox.PullPending(10)
	if err != nil {
		t.Fatalf("PullPending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(pending))
	}
	if pending[0].EventType != "OrderCreated" || pending[0].AggregateID != order.ID {
		t.Errorf("unexpected outbox event: %+v", pending[0])
	}

	timeline, err := f.svc.Timeline(order.ID)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(timeline) != 1 || timeline[0].Type != "OrderCreated" {
		t.Errorf("unexpected timeline: %+v", timeline)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create("user-1", "RUB", []Line{{ProductID: "product-1", Qty: 1}},
		staticPrices(map[string]int64{"product-1": 1000}))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	canceled, err := f.svc.Cancel(order.ID, "changed my mind")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if canceled.Status != domain.OrderStatusCanceled {
		t.Errorf("expected canceled, got %s", canceled.Status)
	}
}

func TestCancelShippedRejected(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create("user-1", "RUB", []Line{{ProductID: "product-1", Qty: 1}},
		staticPrices(map[string]int64{"product-1": 1000}))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.UpdateStatus(order.ID, domain.OrderStatusProcessing, ""); err != nil {
		t.Fatalf("to processing: %v", err)
	}
	if _, err := f.svc.UpdateStatus(order.ID, domain.OrderStatusShipped, ""); err != nil {
		t.Fatalf("to shipped: %v", err)
	}

	if _, err := f.svc.Cancel(order.ID, ""); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}

	stored, err := f.svc.Get(order.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != domain.OrderStatusShipped {
		t.Errorf("status must stay shipped, got %s", stored.Status)
	}
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create("user-1", "RUB", []Line{{ProductID: "product-1", Qty: 1}},
		staticPrices(map[string]int64{"product-1": 1000}))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// pending → shipped запрещён таблицей переходов.
	if _, err := f.svc.UpdateStatus(order.ID, domain.OrderStatusShipped, ""); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}

	if _, err := f.svc.UpdateStatus(order.ID, "bogus", ""); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition for unknown status, got %v", err)
	}
}

func TestUpdateStatusIdempotent(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create("user-1", "RUB", []Line{{ProductID: "product-1", Qty: 1}},
		staticPrices(map[string]int64{"product-1": 1000}))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	first, err := f.svc.UpdateStatus(order.ID, domain.OrderStatusProcessing, "")
	if err != nil {
		t.Fatalf("first update: %v", err)
	}

	// Повторный перевод в тот же статус — no-op: заказ возвращается
	// без ошибки и без новой записи в хранилище.
	updated, err := f.svc.UpdateStatus(order.ID, domain.OrderStatusProcessing, "")
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if updated.Status != domain.OrderStatusProcessing {
		t.Errorf("expected processing, got %s", updated.Status)
	}
	if updated.Version != first.Version {
		t.Errorf("no-op must not bump version: got %d, want %d", updated.Version, first.Version)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	resolve := staticPrices(map[string]int64{"product-1": 1000})

	first, err := f.svc.Create("user-1", "RUB", []Line{{ProductID: "product-1", Qty: 1}}, resolve)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Create("user-2", "RUB", []Line{{ProductID: "product-1", Qty: 3}}, resolve); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.UpdateStatus(first.ID, domain.OrderStatusProcessing, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	stats, err := f.svc.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.CountByStatus[domain.OrderStatusPending] != 1 {
		t.Errorf("expected 1 pending, got %d", stats.CountByStatus[domain.OrderStatusPending])
	}
	if stats.CountByStatus[domain.OrderStatusProcessing] != 1 {
		t.Errorf("expected 1 processing, got %d", stats.CountByStatus[domain.OrderStatusProcessing])
	}
	if stats.RevenueMinor != 1000 {
		t.Errorf("expected revenue 1000, got %d", stats.RevenueMinor)
	}
}
