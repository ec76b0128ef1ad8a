package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const opTimeout = 5 * time.Second

// normalizeLimit переводит "limit<=0 — без ограничения" в конкретное значение для SQL.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 10000
	}
	return limit
}

// isUniqueViolation определяет нарушение уникального ограничения PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

type orderRepositoryPostgres struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-репозиторий заказов.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryPostgres{db: store.DB()}
}

func (r *orderRepositoryPostgres) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create order tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, currency, amount_minor, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.ID, order.UserID, string(order.Status), order.Currency, order.AmountMinor,
		order.Version, order.CreatedAt, order.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}

	for _, detail := range order.Details {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_details (id, order_id, product_id, qty, price_minor, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, detail.ID, order.ID, detail.ProductID, detail.Qty, detail.PriceMinor, detail.CreatedAt); err != nil {
			return fmt.Errorf("insert order detail %s: %w", detail.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create order tx: %w", err)
	}

	return nil
}

func (r *orderRepositoryPostgres) Get(orderID string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var order domain.Order
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, currency, amount_minor, version, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, orderID).Scan(&order.ID, &order.UserID, &status, &order.Currency,
		&order.AmountMinor, &order.Version, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("query order %s: %w", orderID, err)
	}
	order.Status = domain.OrderStatus(status)

	details, err := r.loadDetails(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Details = details

	return order, nil
}

func (r *orderRepositoryPostgres) ListByUser(userID string, limit int) ([]domain.Order, error) {
	return r.list(`
		SELECT id, user_id, status, currency, amount_minor, version, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, normalizeLimit(limit))
}

func (r *orderRepositoryPostgres) ListAll(limit int) ([]domain.Order, error) {
	return r.list(`
		SELECT id, user_id, status, currency, amount_minor, version, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, normalizeLimit(limit))
}

func (r *orderRepositoryPostgres) Save(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// Состав заказа неизменяем после создания, обновляется только заголовок.
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, amount_minor = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`, string(order.Status), order.AmountMinor, order.ID, order.Version)
	if err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated order rows: %w", err)
	}
	if affected == 0 {
		exists, err := r.exists(ctx, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrVersionConflict
	}

	return nil
}

func (r *orderRepositoryPostgres) list(query string, args ...any) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		var status string
		if err := rows.Scan(&order.ID, &order.UserID, &status, &order.Currency,
			&order.AmountMinor, &order.Version, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.Status = domain.OrderStatus(status)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		details, err := r.loadDetails(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Details = details
	}

	return orders, nil
}

func (r *orderRepositoryPostgres) loadDetails(ctx context.Context, orderID string) ([]domain.OrderDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, qty, price_minor, created_at
		FROM order_details
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order details %s: %w", orderID, err)
	}
	defer rows.Close()

	var details []domain.OrderDetail
	for rows.Next() {
		var detail domain.OrderDetail
		if err := rows.Scan(&detail.ID, &detail.ProductID, &detail.Qty, &detail.PriceMinor, &detail.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order detail row: %w", err)
		}
		details = append(details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order detail rows: %w", err)
	}

	return details, nil
}

func (r *orderRepositoryPostgres) exists(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)
	`, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check order existence %s: %w", orderID, err)
	}
	return exists, nil
}

var _ domain.OrderRepository = (*orderRepositoryPostgres)(nil)
