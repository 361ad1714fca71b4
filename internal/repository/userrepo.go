// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/paintroom/paintroom/internal/model"
)

// UserRepository provides access to persisted accounts and their balances.
// Currency changes go through Debit/Credit only, never through row rewrites.
type UserRepository interface {
	// Create inserts a new account.
	Create(ctx context.Context, a *model.Account) error
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// GetByUsername loads an account by username.
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	// Debit atomically subtracts amount if the balance covers it and returns
	// the new balance. Fails with errs.ErrInsufficientFunds otherwise.
	Debit(ctx context.Context, id uuid.UUID, amount int64) (int64, error)
	// Credit atomically adds amount back (purchase rollback) and returns the
	// new balance.
	Credit(ctx context.Context, id uuid.UUID, amount int64) (int64, error)
}
