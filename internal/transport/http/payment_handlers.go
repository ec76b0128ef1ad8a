package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) getPayment(c *gin.Context) {
	found, err := h.payments.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPaymentResponse(found))
}

func (h *Handler) processPayment(c *gin.Context) {
	processed, err := h.payments.Process(c.Param("id"))
	if err != nil {
		// Отклонённый платёж — валидный исход: отдаём платёж вместе со статусом.
		status := statusFor(err)
		if status == http.StatusPaymentRequired {
			c.JSON(status, toPaymentResponse(processed))
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPaymentResponse(processed))
}

func (h *Handler) cancelPayment(c *gin.Context) {
	canceled, err := h.payments.Cancel(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPaymentResponse(canceled))
}
