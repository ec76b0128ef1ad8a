package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:          "order-1",
		UserID:      "user-1",
		Status:      domain.OrderStatusPending,
		Currency:    "USD",
		AmountMinor: 500,
		Details: []domain.OrderDetail{
			{
				ID:         "detail-1",
				ProductID:  "product-1",
				Qty:        5,
				PriceMinor: 100,
				CreatedAt:  now,
			},
		},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no user",
			mut: func(o *domain.Order) {
				o.UserID = ""
			},
		},
		{
			name: "negative amount",
			mut: func(o *domain.Order) {
				o.AmountMinor = -1
			},
		},
		{
			name: "no details",
			mut: func(o *domain.Order) {
				o.Details = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Details[0].Qty = 0
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Details[0].PriceMinor = 0
			},
		},
		{
			name: "no product",
			mut: func(o *domain.Order) {
				o.Details[0].ProductID = ""
			},
		},
		{
			name: "amount mismatch",
			mut: func(o *domain.Order) {
				o.AmountMinor = 999
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			// Изменяем состояние согласно сценарию.
			mutOrder := order
			tc.mut(&mutOrder)

			if len(mutOrder.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

// Полный перебор пар статусов против таблицы переходов.
func TestOrderStatusTransitionTable(t *testing.T) {
	allowed := map[[2]domain.OrderStatus]bool{
		{domain.OrderStatusPending, domain.OrderStatusProcessing}:  true,
		{domain.OrderStatusPending, domain.OrderStatusCanceled}:    true,
		{domain.OrderStatusProcessing, domain.OrderStatusShipped}:  true,
		{domain.OrderStatusProcessing, domain.OrderStatusCanceled}: true,
		{domain.OrderStatusShipped, domain.OrderStatusDelivered}:   true,
	}

	statuses := []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
		domain.OrderStatusCanceled,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			got := from.CanTransition(to)
			want := allowed[[2]domain.OrderStatus{from, to}]
			if got != want {
				t.Fatalf("transition %s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestOrderTransition_InvalidKeepsStatus(t *testing.T) {
	order := makeOrder()
	order.Status = domain.OrderStatusShipped

	if err := order.Transition(domain.OrderStatusCanceled); err != domain.ErrInvalidStatusTransition {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
	if order.Status != domain.OrderStatusShipped {
		t.Fatalf("status must be unchanged after rejected transition, got %s", order.Status)
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if !domain.OrderStatusDelivered.Terminal() {
		t.Fatal("delivered must be terminal")
	}
	if !domain.OrderStatusCanceled.Terminal() {
		t.Fatal("canceled must be terminal")
	}
	if domain.OrderStatusPending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
}
