package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	timelineInsertSQL = `
		INSERT INTO timeline_events (order_id, event_type, reason, occurred_at)
		VALUES ($1, $2, $3, $4)`

	timelineSelectSQL = `
		SELECT order_id, event_type, reason, occurred_at
		FROM timeline_events
		WHERE order_id = $1
		ORDER BY occurred_at, id`
)

type orderTimelinePostgres struct {
	db *sql.DB
}

// NewTimelineRepository создаёт PostgreSQL-репозиторий таймлайна заказов.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &orderTimelinePostgres{db: store.DB()}
}

func (t *orderTimelinePostgres) Append(event domain.TimelineEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := t.db.ExecContext(ctx, timelineInsertSQL,
		event.OrderID, event.Type, event.Reason, event.Occurred)
	if err != nil {
		return fmt.Errorf("insert timeline event for order %s: %w", event.OrderID, err)
	}
	return nil
}

func (t *orderTimelinePostgres) List(orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := t.db.QueryContext(ctx, timelineSelectSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("select timeline for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var events []domain.TimelineEvent
	for rows.Next() {
		var event domain.TimelineEvent
		if err := rows.Scan(&event.OrderID, &event.Type, &event.Reason, &event.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline rows: %w", err)
	}
	return events, nil
}

var _ domain.TimelineRepository = (*orderTimelinePostgres)(nil)
