package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// stockRepositoryInMemory — in-memory реализация StockRepository.
// Мутация остатка и append истории выполняются под одной блокировкой,
// поэтому история никогда не расходится с текущим состоянием.
type stockRepositoryInMemory struct {
	mu        sync.RWMutex
	items     map[string]domain.Stock
	histories map[string][]domain.StockHistory
	// refIDs хранит ключи уже применённых списаний для идемпотентности.
	refIDs map[string]struct{}
}

// NewStockRepository возвращает in-memory репозиторий остатков.
func NewStockRepository() domain.StockRepository {
	return &stockRepositoryInMemory{
		items:     make(map[string]domain.Stock),
		histories: make(map[string][]domain.StockHistory),
		refIDs:    make(map[string]struct{}),
	}
}

// Create заводит строку остатка для товара.
func (r *stockRepositoryInMemory) Create(stock domain.Stock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[stock.ProductID]; exists {
		return domain.ErrVersionConflict
	}
	if stock.ID == "" {
		stock.ID = uuid.NewString()
	}
	r.items[stock.ProductID] = stock
	return nil
}

// Get возвращает остаток товара или ErrStockNotFound.
func (r *stockRepositoryInMemory) Get(productID string) (domain.Stock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stock, ok := r.items[productID]
	if !ok {
		return domain.Stock{}, domain.ErrStockNotFound
	}
	return stock, nil
}

// ListAll возвращает строки остатков, отсортированные по товару.
func (r *stockRepositoryInMemory) ListAll(limit int) ([]domain.Stock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Stock, 0, len(r.items))
	for _, stock := range r.items {
		result = append(result, stock)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ProductID < result[j].ProductID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Reduce атомарно списывает остаток и пишет OUT-строку истории.
// При нехватке остатка возвращает ErrInsufficientStock без частичного списания.
func (r *stockRepositoryInMemory) Reduce(productID string, qty int32, reason, refID string) (domain.Stock, error) {
	if qty <= 0 {
		return domain.Stock{}, domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stock, ok := r.items[productID]
	if !ok {
		return domain.Stock{}, domain.ErrStockNotFound
	}

	// Повторная доставка события с тем же ключом — no-op.
	if refID != "" {
		if _, seen := r.refIDs[refID]; seen {
			return stock, nil
		}
	}

	if stock.Available < qty {
		return stock, domain.ErrInsufficientStock
	}

	stock.Available -= qty
	stock.Version++
	stock.UpdatedAt = time.Now().UTC()
	r.items[productID] = stock

	r.appendHistoryLocked(productID, domain.StockChangeOut, qty, reason, refID)
	if refID != "" {
		r.refIDs[refID] = struct{}{}
	}

	return stock, nil
}

// Add атомарно увеличивает остаток и пишет IN-строку истории.
func (r *stockRepositoryInMemory) Add(productID string, qty int32, reason string) (domain.Stock, error) {
	if qty <= 0 {
		return domain.Stock{}, domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stock, ok := r.items[productID]
	if !ok {
		return domain.Stock{}, domain.ErrStockNotFound
	}

	stock.Available += qty
	stock.Version++
	stock.UpdatedAt = time.Now().UTC()
	r.items[productID] = stock

	r.appendHistoryLocked(productID, domain.StockChangeIn, qty, reason, "")

	return stock, nil
}

// Set атомарно выставляет абсолютное значение остатка и пишет ADJUST-строку.
func (r *stockRepositoryInMemory) Set(productID string, qty int32, reason string) (domain.Stock, error) {
	if qty < 0 {
		return domain.Stock{}, domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stock, ok := r.items[productID]
	if !ok {
		return domain.Stock{}, domain.ErrStockNotFound
	}

	stock.Available = qty
	stock.Version++
	stock.UpdatedAt = time.Now().UTC()
	r.items[productID] = stock

	r.appendHistoryLocked(productID, domain.StockChangeAdjust, qty, reason, "")

	return stock, nil
}

// History возвращает строки аудита по товару в хронологическом порядке.
func (r *stockRepositoryInMemory) History(productID string) ([]domain.StockHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.histories[productID]
	result := make([]domain.StockHistory, len(history))
	copy(result, history)
	return result, nil
}

func (r *stockRepositoryInMemory) appendHistoryLocked(productID string, change domain.StockChangeType, qty int32, reason, refID string) {
	r.histories[productID] = append(r.histories[productID], domain.StockHistory{
		ID:         uuid.NewString(),
		ProductID:  productID,
		ChangeType: change,
		Qty:        qty,
		Reason:     reason,
		RefID:      refID,
		CreatedAt:  time.Now().UTC(),
	})
}

var _ domain.StockRepository = (*stockRepositoryInMemory)(nil)
