package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new account row with the schema's starting balance.
func (r *UserRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `
INSERT INTO users (id, username, pwd_hash, salt_auth)
VALUES ($1, $2, $3, $4)`
	_, err := r.db.Pool.Exec(ctx, q, a.ID, a.Username, a.PwdHash, a.SaltAuth)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	return nil
}

// GetByID selects an account by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	const q = `
SELECT id, username, pwd_hash, salt_auth, currency, created_at
FROM users WHERE id=$1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByUsername selects an account by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	const q = `
SELECT id, username, pwd_hash, salt_auth, currency, created_at
FROM users WHERE username=$1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, username))
}

func (r *UserRepo) scanOne(row pgx.Row) (*model.Account, error) {
	var a model.Account
	if err := row.Scan(&a.ID, &a.Username, &a.PwdHash, &a.SaltAuth, &a.Currency, &a.CreatedAt); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, errs.ErrNotFound
	}
	return &a, nil
}

// Debit subtracts amount only if the balance covers it. The conditional
// update is the atomicity guarantee: two concurrent debits can never both
// pass the check against a stale read.
func (r *UserRepo) Debit(ctx context.Context, id uuid.UUID, amount int64) (int64, error) {
	const q = `
UPDATE users SET currency = currency - $2
WHERE id = $1 AND currency >= $2
RETURNING currency`
	var balance int64
	err := r.db.Pool.QueryRow(ctx, q, id, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errs.ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	return balance, nil
}

// Credit adds amount back to the balance (purchase rollback path).
func (r *UserRepo) Credit(ctx context.Context, id uuid.UUID, amount int64) (int64, error) {
	const q = `
UPDATE users SET currency = currency + $2
WHERE id = $1
RETURNING currency`
	var balance int64
	err := r.db.Pool.QueryRow(ctx, q, id, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errs.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	return balance, nil
}
