package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
)

// defaultCurrency применяется, когда запрос не указывает валюту.
const defaultCurrency = "RUB"

func parsePaymentMethod(raw string) (domain.PaymentMethod, error) {
	switch domain.PaymentMethod(raw) {
	case "":
		return checkout.DefaultPaymentMethod, nil
	case domain.PaymentMethodCOD, domain.PaymentMethodCard, domain.PaymentMethodWallet, domain.PaymentMethodTest:
		return domain.PaymentMethod(raw), nil
	default:
		return "", domain.ErrPaymentMethodRequired
	}
}

func (h *Handler) postCheckout(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	var req checkoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, domain.ErrPaymentMethodRequired)
			return
		}
	}

	method, err := parsePaymentMethod(req.PaymentMethod)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.checkouts.Checkout(user, method)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, checkoutResponse{
		Order:   toOrderResponse(result.Order),
		Payment: toPaymentResponse(result.Payment),
	})
}

func (h *Handler) createOrder(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.ErrItemsRequired)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	lines := make([]order.Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, order.Line{ProductID: l.ProductID, Qty: l.Qty})
	}

	created, err := h.orders.Create(user, currency, lines, h.catalog.PriceOf)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(created))
}

func (h *Handler) listOrders(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	orders, err := h.orders.ListByUser(user, queryLimit(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderListResponse(orders))
}

func (h *Handler) getOrder(c *gin.Context) {
	found, err := h.orders.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(found))
}

func (h *Handler) getOrderTimeline(c *gin.Context) {
	events, err := h.orders.Timeline(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTimelineResponse(events))
}

func (h *Handler) cancelOrder(c *gin.Context) {
	var req cancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, domain.ErrInvalidStatusTransition)
			return
		}
	}

	canceled, err := h.orders.Cancel(c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(canceled))
}

// queryLimit читает необязательный limit из query. 0 означает без ограничения.
func queryLimit(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
