package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func (h *Handler) getCart(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	items, err := h.carts.List(user)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCartResponse(items))
}

func (h *Handler) addCartItem(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.ErrProductRequired)
		return
	}

	item, err := h.carts.AddItem(user, req.ProductID, req.Qty)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toCartItemResponse(item))
}

func (h *Handler) updateCartItem(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.ErrInvalidQuantity)
		return
	}

	item, err := h.carts.UpdateItem(user, c.Param("product_id"), req.Qty)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCartItemResponse(item))
}

func (h *Handler) removeCartItem(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	if err := h.carts.RemoveItem(user, c.Param("product_id")); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) clearCart(c *gin.Context) {
	user, ok := userID(c)
	if !ok {
		return
	}

	if err := h.carts.Clear(user); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
