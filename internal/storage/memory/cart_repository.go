package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// cartRepositoryInMemory — in-memory реализация CartRepository.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.CartItem
	// byUserProduct индексирует позиции по паре (пользователь, товар):
	// позиция корзины уникальна по этой паре.
	byUserProduct map[string]map[string]string
}

// NewCartRepository возвращает in-memory репозиторий корзин.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{
		items:         make(map[string]domain.CartItem),
		byUserProduct: make(map[string]map[string]string),
	}
}

// Upsert сохраняет позицию корзины (новую или обновлённую).
func (r *cartRepositoryInMemory) Upsert(item domain.CartItem) error {
	if item.UserID == "" {
		return domain.ErrUserRequired
	}
	if item.ProductID == "" {
		return domain.ErrProductRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[item.ID] = item
	byProduct, ok := r.byUserProduct[item.UserID]
	if !ok {
		byProduct = make(map[string]string)
		r.byUserProduct[item.UserID] = byProduct
	}
	byProduct[item.ProductID] = item.ID
	return nil
}

// GetItem возвращает позицию по идентификатору или ErrCartItemNotFound.
func (r *cartRepositoryInMemory) GetItem(itemID string) (domain.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[itemID]
	if !ok {
		return domain.CartItem{}, domain.ErrCartItemNotFound
	}
	return item, nil
}

// GetByUserAndProduct возвращает позицию пользователя по товару или ErrCartItemNotFound.
func (r *cartRepositoryInMemory) GetByUserAndProduct(userID, productID string) (domain.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUserProduct[userID][productID]
	if !ok {
		return domain.CartItem{}, domain.ErrCartItemNotFound
	}
	return r.items[id], nil
}

// ListByUser возвращает позиции корзины пользователя, старые первыми.
func (r *cartRepositoryInMemory) ListByUser(userID string) ([]domain.CartItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.CartItem, 0, len(r.byUserProduct[userID]))
	for _, id := range r.byUserProduct[userID] {
		result = append(result, r.items[id])
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Remove удаляет позицию по идентификатору.
func (r *cartRepositoryInMemory) Remove(itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[itemID]
	if !ok {
		return domain.ErrCartItemNotFound
	}
	delete(r.items, itemID)
	delete(r.byUserProduct[item.UserID], item.ProductID)
	return nil
}

// Clear удаляет все позиции корзины пользователя.
func (r *cartRepositoryInMemory) Clear(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.byUserProduct[userID] {
		delete(r.items, id)
	}
	delete(r.byUserProduct, userID)
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
