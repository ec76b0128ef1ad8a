package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// orderTimeline хранит хронологию заказов в памяти. Событие вставляется
// сразу в нужную позицию, поэтому срез всегда отсортирован по Occurred.
type orderTimeline struct {
	mu      sync.RWMutex
	byOrder map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &orderTimeline{byOrder: make(map[string][]domain.TimelineEvent)}
}

func (t *orderTimeline) Append(event domain.TimelineEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	events := t.byOrder[event.OrderID]
	at := sort.Search(len(events), func(i int) bool {
		return events[i].Occurred.After(event.Occurred)
	})
	events = append(events, domain.TimelineEvent{})
	copy(events[at+1:], events[at:])
	events[at] = event
	t.byOrder[event.OrderID] = events
	return nil
}

func (t *orderTimeline) List(orderID string) ([]domain.TimelineEvent, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return append([]domain.TimelineEvent(nil), t.byOrder[orderID]...), nil
}

var _ domain.TimelineRepository = (*orderTimeline)(nil)
