package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func (h *Handler) getStock(c *gin.Context) {
	found, err := h.stocks.Get(c.Param("product_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toStockResponse(found))
}

func (h *Handler) adminListOrders(c *gin.Context) {
	orders, err := h.orders.ListAll(queryLimit(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderListResponse(orders))
}

func (h *Handler) adminOrderStats(c *gin.Context) {
	stats, err := h.orders.Stats()
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderStatsResponse(stats))
}

func (h *Handler) adminListPayments(c *gin.Context) {
	payments, err := h.payments.ListAll(queryLimit(c))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, toPaymentResponse(p))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) adminListStock(c *gin.Context) {
	stocks, err := h.stocks.List(queryLimit(c))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]stockResponse, 0, len(stocks))
	for _, s := range stocks {
		resp = append(resp, toStockResponse(s))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) adminStockHistory(c *gin.Context) {
	history, err := h.stocks.History(c.Param("product_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	type historyRow struct {
		ChangeType string `json:"change_type"`
		Qty        int32  `json:"qty"`
		Reason     string `json:"reason,omitempty"`
		RefID      string `json:"ref_id,omitempty"`
	}
	resp := make([]historyRow, 0, len(history))
	for _, row := range history {
		resp = append(resp, historyRow{
			ChangeType: string(row.ChangeType),
			Qty:        row.Qty,
			Reason:     row.Reason,
			RefID:      row.RefID,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) adminAdjustStock(c *gin.Context) {
	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.ErrInvalidQuantity)
		return
	}

	productID := c.Param("product_id")

	var (
		adjusted domain.Stock
		err      error
	)
	switch req.Op {
	case "add":
		adjusted, err = h.stocks.Add(productID, req.Qty, req.Reason)
	case "set":
		adjusted, err = h.stocks.Set(productID, req.Qty, req.Reason)
	case "create":
		adjusted, err = h.stocks.Create(productID, req.Qty, 0)
	default:
		writeError(c, domain.ErrInvalidQuantity)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toStockResponse(adjusted))
}
