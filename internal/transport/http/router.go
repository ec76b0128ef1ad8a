// Package http реализует REST API поверх сервисного слоя.
package http

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/cart"
	"github.com/vladislavdragonenkov/shop/internal/service/checkout"
	"github.com/vladislavdragonenkov/shop/internal/service/order"
	"github.com/vladislavdragonenkov/shop/internal/service/payment"
	"github.com/vladislavdragonenkov/shop/internal/service/stock"
)

// Handler связывает HTTP-маршруты с сервисным слоем.
type Handler struct {
	carts       cart.Service
	checkouts   checkout.Service
	orders      order.Service
	payments    payment.Service
	stocks      stock.Service
	catalog     domain.Catalog
	idempotency domain.IdempotencyRepository
	logger      *log.Entry
}

// NewHandler создаёт HTTP-обработчик.
func NewHandler(
	carts cart.Service,
	checkouts checkout.Service,
	orders order.Service,
	payments payment.Service,
	stocks stock.Service,
	catalog domain.Catalog,
	idempotency domain.IdempotencyRepository,
	logger *log.Entry,
) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}
	return &Handler{
		carts:       carts,
		checkouts:   checkouts,
		orders:      orders,
		payments:    payments,
		stocks:      stocks,
		catalog:     catalog,
		idempotency: idempotency,
		logger:      logger,
	}
}

// RegisterRoutes вешает все маршруты API на gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	idem := idempotencyMiddleware(h.idempotency, h.logger)

	r.GET("/cart", h.getCart)
	r.POST("/cart/items", h.addCartItem)
	r.PUT("/cart/items/:product_id", h.updateCartItem)
	r.DELETE("/cart/items/:product_id", h.removeCartItem)
	r.DELETE("/cart", h.clearCart)

	r.POST("/checkout", idem, h.postCheckout)

	r.POST("/orders", idem, h.createOrder)
	r.GET("/orders", h.listOrders)
	r.GET("/orders/:id", h.getOrder)
	r.GET("/orders/:id/timeline", h.getOrderTimeline)
	r.POST("/orders/:id/cancel", h.cancelOrder)

	r.GET("/payments/:id", h.getPayment)
	r.POST("/payments/:id/process", h.processPayment)
	r.POST("/payments/:id/cancel", h.cancelPayment)

	r.GET("/stock/:product_id", h.getStock)

	admin := r.Group("/admin")
	{
		admin.GET("/orders", h.adminListOrders)
		admin.GET("/orders/stats", h.adminOrderStats)
		admin.GET("/payments", h.adminListPayments)
		admin.GET("/stock", h.adminListStock)
		admin.GET("/stock/:product_id/history", h.adminStockHistory)
		admin.POST("/stock/:product_id/adjust", h.adminAdjustStock)
	}
}

// NewRouter собирает готовый gin engine с маршрутами API.
func NewRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	h.RegisterRoutes(r)
	return r
}
