package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type paymentRepositoryPostgres struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-репозиторий платежей.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepositoryPostgres{db: store.DB()}
}

func (r *paymentRepositoryPostgres) Create(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, method, status, amount_minor, currency,
			transaction_ref, failure_reason, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, payment.ID, payment.OrderID, string(payment.Method), string(payment.Status),
		payment.AmountMinor, payment.Currency, payment.TransactionRef, payment.FailureReason,
		payment.Version, payment.CreatedAt, payment.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicatePayment
	}
	if err != nil {
		return fmt.Errorf("insert payment %s: %w", payment.ID, err)
	}

	return nil
}

func (r *paymentRepositoryPostgres) Get(paymentID string) (domain.Payment, error) {
	return r.queryOne(`
		SELECT id, order_id, method, status, amount_minor, currency,
			transaction_ref, failure_reason, version, created_at, updated_at
		FROM payments
		WHERE id = $1
	`, paymentID)
}

func (r *paymentRepositoryPostgres) GetByOrder(orderID string) (domain.Payment, error) {
	return r.queryOne(`
		SELECT id, order_id, method, status, amount_minor, currency,
			transaction_ref, failure_reason, version, created_at, updated_at
		FROM payments
		WHERE order_id = $1
	`, orderID)
}

func (r *paymentRepositoryPostgres) ListAll(limit int) ([]domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, method, status, amount_minor, currency,
			transaction_ref, failure_reason, version, created_at, updated_at
		FROM payments
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}

	return payments, nil
}

func (r *paymentRepositoryPostgres) Save(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.save(ctx, r.db, payment)
}

// SaveSettled фиксирует итог платежа и событие outbox в одной транзакции.
func (r *paymentRepositoryPostgres) SaveSettled(payment domain.Payment, event domain.OutboxMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settle payment tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.save(ctx, tx, payment); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_messages (id, aggregate_type, aggregate_id, event_type, payload, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'PENDING', 0, NOW(), NOW())
	`, event.ID, event.AggregateType, event.AggregateID, event.EventType, event.Payload); err != nil {
		return fmt.Errorf("enqueue settlement event for payment %s: %w", payment.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settle payment tx: %w", err)
	}

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *paymentRepositoryPostgres) save(ctx context.Context, db execer, payment domain.Payment) error {
	result, err := db.ExecContext(ctx, `
		UPDATE payments
		SET status = $1, transaction_ref = $2, failure_reason = $3,
			version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5
	`, string(payment.Status), payment.TransactionRef, payment.FailureReason,
		payment.ID, payment.Version)
	if err != nil {
		return fmt.Errorf("update payment %s: %w", payment.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated payment rows: %w", err)
	}
	if affected == 0 {
		if _, err := r.Get(payment.ID); errors.Is(err, domain.ErrPaymentNotFound) {
			return domain.ErrPaymentNotFound
		}
		return domain.ErrVersionConflict
	}

	return nil
}

func (r *paymentRepositoryPostgres) queryOne(query string, arg any) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, query, arg)
	payment, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	if err != nil {
		return domain.Payment{}, err
	}

	return payment, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (domain.Payment, error) {
	var payment domain.Payment
	var method, status string
	if err := row.Scan(&payment.ID, &payment.OrderID, &method, &status,
		&payment.AmountMinor, &payment.Currency, &payment.TransactionRef,
		&payment.FailureReason, &payment.Version, &payment.CreatedAt, &payment.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, err
		}
		return domain.Payment{}, fmt.Errorf("scan payment row: %w", err)
	}
	payment.Method = domain.PaymentMethod(method)
	payment.Status = domain.PaymentStatus(status)

	return payment, nil
}

var _ domain.PaymentRepository = (*paymentRepositoryPostgres)(nil)
