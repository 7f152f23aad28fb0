package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/payment-snap/internal/domain"
	"github.com/dvloznov/payment-snap/internal/store"
)

// Config holds the pool settings.
type Config struct {
	DSN      string
	MaxConns int32
}

// TransactionRepository is the PostgreSQL implementation of
// store.TransactionRepository.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

var _ store.TransactionRepository = (*TransactionRepository)(nil)

// NewTransactionRepository opens a pool and verifies connectivity.
func NewTransactionRepository(ctx context.Context, cfg Config) (*TransactionRepository, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("NewTransactionRepository: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("NewTransactionRepository: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("NewTransactionRepository: ping: %w", err)
	}

	return &TransactionRepository{pool: pool}, nil
}

// Close closes the pool.
func (r *TransactionRepository) Close() error {
	r.pool.Close()
	return nil
}

const insertTransactionSQL = `
	INSERT INTO payment_transactions (id, note, amount, merchant, category, attachment_key, created_at, updated_at)
	VALUES ($1, $2, $3::numeric, NULLIF($4, ''), $5, NULLIF($6, ''), $7, $7)`

// CreateTransaction inserts tx, assigning an ID when empty.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := r.pool.Exec(ctx, insertTransactionSQL,
		tx.ID,
		tx.Note,
		tx.Amount.StringFixed(2),
		tx.Merchant,
		string(tx.Category),
		tx.AttachmentKey,
		now,
	)
	if err != nil {
		return fmt.Errorf("CreateTransaction: %w", err)
	}

	tx.CreatedAt = now
	tx.UpdatedAt = now
	return nil
}

const selectTransactionColumns = `
	id, note, amount::text, COALESCE(merchant, ''), category, COALESCE(attachment_key, ''), created_at, updated_at`

// GetTransaction returns store.ErrNotFound when id does not exist.
func (r *TransactionRepository) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+selectTransactionColumns+` FROM payment_transactions WHERE id = $1`, id)

	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return tx, nil
}

// ListTransactions returns transactions newest first.
func (r *TransactionRepository) ListTransactions(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+selectTransactionColumns+`
		 FROM payment_transactions
		 ORDER BY created_at DESC, id
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: rows: %w", err)
	}
	return txs, nil
}

// CountTransactions returns the number of stored transactions.
func (r *TransactionRepository) CountTransactions(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payment_transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountTransactions: %w", err)
	}
	return n, nil
}

// DeleteTransaction returns store.ErrNotFound when id does not exist.
func (r *TransactionRepository) DeleteTransaction(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM payment_transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx       domain.Transaction
		amount   string
		category string
	)
	if err := row.Scan(
		&tx.ID,
		&tx.Note,
		&amount,
		&tx.Merchant,
		&category,
		&tx.AttachmentKey,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: amount %q: %w", tx.ID, amount, err)
	}
	tx.Amount = d
	tx.Category = domain.Category(category)
	return &tx, nil
}
