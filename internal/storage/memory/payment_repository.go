package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// paymentRepositoryInMemory — in-memory реализация PaymentRepository.
// Для SaveSettled репозиторий держит ссылку на outbox: статус и событие
// становятся видимыми под одной блокировкой платёжного хранилища.
type paymentRepositoryInMemory struct {
	mu      sync.RWMutex
	items   map[string]domain.Payment
	byOrder map[string]string
	outbox  domain.OutboxRepository
}

// NewPaymentRepository возвращает in-memory репозиторий платежей.
// outbox нужен для атомарного SaveSettled; nil допустим только в тестах,
// которым не нужен settlement.
func NewPaymentRepository(outbox domain.OutboxRepository) domain.PaymentRepository {
	return &paymentRepositoryInMemory{
		items:   make(map[string]domain.Payment),
		byOrder: make(map[string]string),
		outbox:  outbox,
	}
}

// Create сохраняет новый платёж; второй платёж на заказ запрещён.
func (r *paymentRepositoryInMemory) Create(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[payment.ID]; exists {
		return domain.ErrVersionConflict
	}
	if _, exists := r.byOrder[payment.OrderID]; exists {
		return domain.ErrDuplicatePayment
	}

	r.items[payment.ID] = payment
	r.byOrder[payment.OrderID] = payment.ID
	return nil
}

// Get возвращает платёж или ErrPaymentNotFound.
func (r *paymentRepositoryInMemory) Get(id string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.items[id]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return payment, nil
}

// GetByOrder возвращает платёж заказа или ErrPaymentNotFound.
func (r *paymentRepositoryInMemory) GetByOrder(orderID string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byOrder[orderID]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return r.items[id], nil
}

// ListAll возвращает платежи, отсортированные от новых к старым.
func (r *paymentRepositoryInMemory) ListAll(limit int) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Payment, 0, len(r.items))
	for _, payment := range r.items {
		result = append(result, payment)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save перезаписывает платёж, проверяя версию (optimistic locking).
func (r *paymentRepositoryInMemory) Save(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.saveLocked(payment)
}

// SaveSettled сохраняет success-переход и кладёт событие в outbox
// в одной единице работы.
func (r *paymentRepositoryInMemory) SaveSettled(payment domain.Payment, event domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.outbox == nil {
		return domain.ErrOutboxPublish
	}
	prev, ok := r.items[payment.ID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	if err := r.saveLocked(payment); err != nil {
		return err
	}
	if _, err := r.outbox.Enqueue(event); err != nil {
		// Откатываем запись: без события settlement не считается завершённым.
		r.items[payment.ID] = prev
		return err
	}
	return nil
}

func (r *paymentRepositoryInMemory) saveLocked(payment domain.Payment) error {
	current, ok := r.items[payment.ID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	if current.Version != payment.Version {
		return domain.ErrVersionConflict
	}
	payment.Version++
	r.items[payment.ID] = payment
	return nil
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
