// Package catalog содержит заглушку внешнего каталога товаров.
package catalog

import (
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// MockCatalog — конфигурируемая заглушка domain.Catalog.
// Используется в тестах и локальных запусках, пока реальный каталог внешний.
type MockCatalog struct {
	mu          sync.Mutex
	prices      map[string]int64
	unavailable map[string]struct{}

	PriceErr error

	PriceCalls     int
	AvailableCalls int
}

// NewMockCatalog возвращает каталог с заданными ценами (minor units).
func NewMockCatalog(prices map[string]int64) *MockCatalog {
	cloned := make(map[string]int64, len(prices))
	for id, price := range prices {
		cloned[id] = price
	}
	return &MockCatalog{
		prices:      cloned,
		unavailable: make(map[string]struct{}),
	}
}

// DefaultCatalog возвращает каталог с набором товаров для локального запуска.
func DefaultCatalog() *MockCatalog {
	return NewMockCatalog(map[string]int64{
		"sku-tea":    45900,
		"sku-coffee": 89900,
		"sku-mug":    19900,
		"sku-kettle": 329900,
	})
}

// SetPrice задаёт или обновляет цену товара.
func (c *MockCatalog) SetPrice(productID string, priceMinor int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[productID] = priceMinor
}

// SetUnavailable помечает товар недоступным для продажи.
func (c *MockCatalog) SetUnavailable(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unavailable[productID] = struct{}{}
}

// PriceOf возвращает текущую цену товара или ErrProductNotFound.
func (c *MockCatalog) PriceOf(productID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.PriceCalls++
	if c.PriceErr != nil {
		return 0, c.PriceErr
	}

	price, ok := c.prices[productID]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	return price, nil
}

// IsAvailable сообщает, доступен ли товар для продажи.
func (c *MockCatalog) IsAvailable(productID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.AvailableCalls++
	if _, blocked := c.unavailable[productID]; blocked {
		return false
	}
	_, known := c.prices[productID]
	return known
}

var _ domain.Catalog = (*MockCatalog)(nil)
