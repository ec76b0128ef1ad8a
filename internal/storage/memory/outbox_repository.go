package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type outboxStatus uint8

const (
	outboxPending outboxStatus = iota
	outboxSent
	outboxFailed
)

type outboxEntry struct {
	message    domain.OutboxMessage
	status     outboxStatus
	attempts   int
	enqueuedAt time.Time
	settledAt  time.Time
}

// outboxQueue — in-memory transactional outbox. Записи хранятся в FIFO
// порядке постановки, поэтому PullPending отдаёт события в том порядке,
// в котором их создали сервисы.
type outboxQueue struct {
	mu    sync.Mutex
	order []string
	byID  map[string]*outboxEntry
}

// NewOutboxRepository создаёт in-memory реализацию outbox.
func NewOutboxRepository() *outboxQueue {
	return &outboxQueue{byID: make(map[string]*outboxEntry)}
}

// Enqueue сохраняет событие в статусе pending и возвращает его с присвоенным ID.
func (q *outboxQueue) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	q.byID[msg.ID] = &outboxEntry{
		message:    msg,
		status:     outboxPending,
		enqueuedAt: time.Now().UTC(),
	}
	q.order = append(q.order, msg.ID)
	return msg, nil
}

// PullPending возвращает до limit необработанных событий в порядке постановки.
func (q *outboxQueue) PullPending(limit int) ([]domain.OutboxMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	batch := make([]domain.OutboxMessage, 0, limit)
	for _, id := range q.order {
		entry := q.byID[id]
		if entry.status != outboxPending {
			continue
		}
		batch = append(batch, entry.message)
		if len(batch) == limit {
			break
		}
	}
	return batch, nil
}

// Stats возвращает размер backlog и время самой старой pending-записи.
// Благодаря FIFO порядку первая найденная pending-запись и есть самая старая.
func (q *outboxQueue) Stats() (domain.OutboxStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var stats domain.OutboxStats
	for _, id := range q.order {
		entry := q.byID[id]
		if entry.status != outboxPending {
			continue
		}
		if stats.PendingCount == 0 {
			stats.OldestPendingAt = entry.enqueuedAt
		}
		stats.PendingCount++
	}
	return stats, nil
}

// MarkSent фиксирует успешную публикацию события.
func (q *outboxQueue) MarkSent(id string) error {
	return q.settle(id, outboxSent)
}

// MarkFailed фиксирует отказ публикации.
func (q *outboxQueue) MarkFailed(id string) error {
	return q.settle(id, outboxFailed)
}

func (q *outboxQueue) settle(id string, status outboxStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.byID[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	entry.status = status
	entry.attempts++
	entry.settledAt = time.Now().UTC()
	return nil
}

// AllPending возвращает копию всех pending-событий в порядке постановки.
func (q *outboxQueue) AllPending() []domain.OutboxMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	var batch []domain.OutboxMessage
	for _, id := range q.order {
		if entry := q.byID[id]; entry.status == outboxPending {
			batch = append(batch, entry.message)
		}
	}
	return batch
}

var _ domain.OutboxRepository = (*outboxQueue)(nil)
