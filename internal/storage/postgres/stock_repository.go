package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type stockRepositoryPostgres struct {
	db *sql.DB
}

// NewStockRepository создаёт PostgreSQL-репозиторий остатков.
func NewStockRepository(store *Store) domain.StockRepository {
	return &stockRepositoryPostgres{db: store.DB()}
}

func (r *stockRepositoryPostgres) Create(stock domain.Stock) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stock (id, product_id, available, low_stock_threshold, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, stock.ID, stock.ProductID, stock.Available, stock.LowStockThreshold,
		stock.Version, stock.CreatedAt, stock.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("insert stock for %s: %w", stock.ProductID, err)
	}

	return nil
}

func (r *stockRepositoryPostgres) Get(productID string) (domain.Stock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.get(ctx, r.db, productID)
}

func (r *stockRepositoryPostgres) ListAll(limit int) ([]domain.Stock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, available, low_stock_threshold, version, created_at, updated_at
		FROM stock
		ORDER BY product_id
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	defer rows.Close()

	var stocks []domain.Stock
	for rows.Next() {
		var stock domain.Stock
		if err := rows.Scan(&stock.ID, &stock.ProductID, &stock.Available, &stock.LowStockThreshold,
			&stock.Version, &stock.CreatedAt, &stock.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock row: %w", err)
		}
		stocks = append(stocks, stock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock rows: %w", err)
	}

	return stocks, nil
}

// Reduce списывает qty со склада атомарно: защитное условие, декремент и
// запись истории выполняются в одной транзакции. Повтор с тем же refID
// не изменяет остаток.
func (r *stockRepositoryPostgres) Reduce(productID string, qty int32, reason, refID string) (domain.Stock, error) {
	if qty <= 0 {
		return domain.Stock{}, domain.ErrInvalidQuantity
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stock{}, fmt.Errorf("begin reduce stock tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if refID != "" {
		var seen bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM stock_history WHERE ref_id = $1)
		`, refID).Scan(&seen); err != nil {
			return domain.Stock{}, fmt.Errorf("check stock reduction ref %s: %w", refID, err)
		}
		if seen {
			stock, err := r.get(ctx, tx, productID)
			if err != nil {
				return domain.Stock{}, err
			}
			return stock, tx.Commit()
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE stock
		SET available = available - $1, version = version + 1, updated_at = NOW()
		WHERE product_id = $2 AND available >= $1
	`, qty, productID)
	if err != nil {
		return domain.Stock{}, fmt.Errorf("reduce stock for %s: %w", productID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Stock{}, fmt.Errorf("check reduced stock rows: %w", err)
	}
	if affected == 0 {
		if _, err := r.get(ctx, tx, productID); errors.Is(err, domain.ErrStockNotFound) {
			return domain.Stock{}, domain.ErrStockNotFound
		}
		return domain.Stock{}, domain.ErrInsufficientStock
	}

	if err := insertHistory(ctx, tx, domain.StockHistory{
		ID:         uuid.NewString(),
		ProductID:  productID,
		ChangeType: domain.StockChangeOut,
		Qty:        qty,
		Reason:     reason,
		RefID:      refID,
	}); err != nil {
		return domain.Stock{}, err
	}

	stock, err := r.get(ctx, tx, productID)
	if err != nil {
		return domain.Stock{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Stock{}, fmt.Errorf("commit reduce stock tx: %w", err)
	}

	return stock, nil
}

func (r *stockRepositoryPostgres) Add(productID string, qty int32, reason string) (domain.Stock, error) {
	if qty <= 0 {
		return domain.Stock{}, domain.ErrInvalidQuantity
	}

	return r.change(productID, domain.StockHistory{
		ProductID:  productID,
		ChangeType: domain.StockChangeIn,
		Qty:        qty,
		Reason:     reason,
	}, `
		UPDATE stock
		SET available = available + $1, version = version + 1, updated_at = NOW()
		WHERE product_id = $2
	`, qty, productID)
}

func (r *stockRepositoryPostgres) Set(productID string, qty int32, reason string) (domain.Stock, error) {
	if qty < 0 {
		return domain.Stock{}, domain.ErrInvalidQuantity
	}

	return r.change(productID, domain.StockHistory{
		ProductID:  productID,
		ChangeType: domain.StockChangeAdjust,
		Qty:        qty,
		Reason:     reason,
	}, `
		UPDATE stock
		SET available = $1, version = version + 1, updated_at = NOW()
		WHERE product_id = $2
	`, qty, productID)
}

func (r *stockRepositoryPostgres) History(productID string) ([]domain.StockHistory, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, change_type, qty, reason, ref_id, created_at
		FROM stock_history
		WHERE product_id = $1
		ORDER BY created_at, id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query stock history for %s: %w", productID, err)
	}
	defer rows.Close()

	var history []domain.StockHistory
	for rows.Next() {
		var entry domain.StockHistory
		var changeType string
		if err := rows.Scan(&entry.ID, &entry.ProductID, &changeType, &entry.Qty,
			&entry.Reason, &entry.RefID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock history row: %w", err)
		}
		entry.ChangeType = domain.StockChangeType(changeType)
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock history rows: %w", err)
	}

	return history, nil
}

func (r *stockRepositoryPostgres) change(productID string, entry domain.StockHistory, query string, args ...any) (domain.Stock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stock{}, fmt.Errorf("begin change stock tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Stock{}, fmt.Errorf("change stock for %s: %w", productID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Stock{}, fmt.Errorf("check changed stock rows: %w", err)
	}
	if affected == 0 {
		return domain.Stock{}, domain.ErrStockNotFound
	}

	entry.ID = uuid.NewString()
	if err := insertHistory(ctx, tx, entry); err != nil {
		return domain.Stock{}, err
	}

	stock, err := r.get(ctx, tx, productID)
	if err != nil {
		return domain.Stock{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Stock{}, fmt.Errorf("commit change stock tx: %w", err)
	}

	return stock, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *stockRepositoryPostgres) get(ctx context.Context, db querier, productID string) (domain.Stock, error) {
	var stock domain.Stock
	err := db.QueryRowContext(ctx, `
		SELECT id, product_id, available, low_stock_threshold, version, created_at, updated_at
		FROM stock
		WHERE product_id = $1
	`, productID).Scan(&stock.ID, &stock.ProductID, &stock.Available, &stock.LowStockThreshold,
		&stock.Version, &stock.CreatedAt, &stock.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Stock{}, domain.ErrStockNotFound
	}
	if err != nil {
		return domain.Stock{}, fmt.Errorf("query stock for %s: %w", productID, err)
	}

	return stock, nil
}

func insertHistory(ctx context.Context, db execer, entry domain.StockHistory) error {
	if _, err := db.ExecContext(ctx, `
		INSERT INTO stock_history (id, product_id, change_type, qty, reason, ref_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, entry.ID, entry.ProductID, string(entry.ChangeType), entry.Qty, entry.Reason, entry.RefID); err != nil {
		return fmt.Errorf("insert stock history for %s: %w", entry.ProductID, err)
	}
	return nil
}

var _ domain.StockRepository = (*stockRepositoryPostgres)(nil)
