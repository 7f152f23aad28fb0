package store

import (
	"context"
	"errors"

	"github.com/dvloznov/payment-snap/internal/domain"
)

// ErrNotFound is returned when a transaction does not exist.
var ErrNotFound = errors.New("transaction not found")

// TransactionRepository provides an interface for transaction persistence.
// Implementations live under internal/infra.
type TransactionRepository interface {
	// CreateTransaction stores tx. It sets CreatedAt and UpdatedAt.
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error

	// GetTransaction returns ErrNotFound when id does not exist.
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)

	// ListTransactions returns transactions newest first.
	ListTransactions(ctx context.Context, limit, offset int) ([]*domain.Transaction, error)

	CountTransactions(ctx context.Context) (int, error)

	// DeleteTransaction returns ErrNotFound when id does not exist.
	DeleteTransaction(ctx context.Context, id string) error

	Close() error
}
