package http

import (
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Qty       int32  `json:"qty" binding:"required"`
}

type updateCartItemRequest struct {
	Qty int32 `json:"qty" binding:"required"`
}

type cartItemResponse struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	Qty        int32     `json:"qty"`
	PriceMinor int64     `json:"price_minor"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type cartResponse struct {
	Items      []cartItemResponse `json:"items"`
	TotalMinor int64              `json:"total_minor"`
}

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type checkoutResponse struct {
	Order   orderResponse   `json:"order"`
	Payment paymentResponse `json:"payment"`
}

type createOrderRequest struct {
	Currency string             `json:"currency"`
	Lines    []orderLineRequest `json:"lines" binding:"required"`
}

type orderLineRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Qty       int32  `json:"qty" binding:"required"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type orderDetailResponse struct {
	ID            string `json:"id"`
	ProductID     string `json:"product_id"`
	Qty           int32  `json:"qty"`
	PriceMinor    int64  `json:"price_minor"`
	SubtotalMinor int64  `json:"subtotal_minor"`
}

type orderResponse struct {
	ID          string                `json:"id"`
	UserID      string                `json:"user_id"`
	Status      string                `json:"status"`
	Currency    string                `json:"currency"`
	AmountMinor int64                 `json:"amount_minor"`
	Details     []orderDetailResponse `json:"details"`
	Version     int64                 `json:"version"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

type timelineEventResponse struct {
	OrderID  string    `json:"order_id"`
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred_at"`
}

type paymentResponse struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"order_id"`
	Method         string    `json:"method"`
	Status         string    `json:"status"`
	AmountMinor    int64     `json:"amount_minor"`
	Currency       string    `json:"currency"`
	TransactionRef string    `json:"transaction_ref,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type stockResponse struct {
	ProductID         string    `json:"product_id"`
	Available         int32     `json:"available"`
	LowStockThreshold int32     `json:"low_stock_threshold"`
	LowStock          bool      `json:"low_stock"`
	Version           int64     `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type adjustStockRequest struct {
	// Op: "add" увеличивает остаток, "set" выставляет абсолютное значение.
	Op     string `json:"op" binding:"required"`
	Qty    int32  `json:"qty"`
	Reason string `json:"reason"`
}

type orderStatsResponse struct {
	CountByStatus map[string]int `json:"count_by_status"`
	RevenueMinor  int64          `json:"revenue_minor"`
}

func toCartItemResponse(item domain.CartItem) cartItemResponse {
	return cartItemResponse{
		ID:         item.ID,
		ProductID:  item.ProductID,
		Qty:        item.Qty,
		PriceMinor: item.PriceMinor,
		CreatedAt:  item.CreatedAt,
		UpdatedAt:  item.UpdatedAt,
	}
}

func toCartResponse(items []domain.CartItem) cartResponse {
	resp := cartResponse{Items: make([]cartItemResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, toCartItemResponse(item))
		resp.TotalMinor += int64(item.Qty) * item.PriceMinor
	}
	return resp
}

func toOrderResponse(o domain.Order) orderResponse {
	details := make([]orderDetailResponse, 0, len(o.Details))
	for _, d := range o.Details {
		details = append(details, orderDetailResponse{
			ID:            d.ID,
			ProductID:     d.ProductID,
			Qty:           d.Qty,
			PriceMinor:    d.PriceMinor,
			SubtotalMinor: d.SubtotalMinor(),
		})
	}
	return orderResponse{
		ID:          o.ID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		Currency:    o.Currency,
		AmountMinor: o.AmountMinor,
		Details:     details,
		Version:     o.Version,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func toOrderListResponse(orders []domain.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}
	return resp
}

func toPaymentResponse(p domain.Payment) paymentResponse {
	return paymentResponse{
		ID:             p.ID,
		OrderID:        p.OrderID,
		Method:         string(p.Method),
		Status:         string(p.Status),
		AmountMinor:    p.AmountMinor,
		Currency:       p.Currency,
		TransactionRef: p.TransactionRef,
		FailureReason:  p.FailureReason,
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toStockResponse(s domain.Stock) stockResponse {
	return stockResponse{
		ProductID:         s.ProductID,
		Available:         s.Available,
		LowStockThreshold: s.LowStockThreshold,
		LowStock:          s.IsLowStock(),
		Version:           s.Version,
		UpdatedAt:         s.UpdatedAt,
	}
}

func toTimelineResponse(events []domain.TimelineEvent) []timelineEventResponse {
	resp := make([]timelineEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, timelineEventResponse{
			OrderID:  e.OrderID,
			Type:     e.Type,
			Reason:   e.Reason,
			Occurred: e.Occurred,
		})
	}
	return resp
}

func toOrderStatsResponse(stats order.Stats) orderStatsResponse {
	counts := make(map[string]int, len(stats.CountByStatus))
	for status, count := range stats.CountByStatus {
		counts[string(status)] = count
	}
	return orderStatsResponse{
		CountByStatus: counts,
		RevenueMinor:  stats.RevenueMinor,
	}
}
