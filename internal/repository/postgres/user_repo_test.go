package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestUserRepo_Create_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectExec(`INSERT INTO users \(id, username, pwd_hash, salt_auth\)`).
		WithArgs(id, "alice", []byte("h"), []byte("s")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := r.Create(context.Background(), &model.Account{
		ID: id, Username: "alice", PwdHash: []byte("h"), SaltAuth: []byte("s"),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_UsernameTaken(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(id, "alice", []byte("h"), []byte("s")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := r.Create(context.Background(), &model.Account{
		ID: id, Username: "alice", PwdHash: []byte("h"), SaltAuth: []byte("s"),
	})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestUserRepo_GetByUsername_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	id := uuid.Must(uuid.NewV4())
	now := time.Now()
	mock.ExpectQuery(`SELECT id, username, pwd_hash, salt_auth, currency, created_at`).
		WithArgs("alice").
		WillReturnRows(pgxmock.
			NewRows([]string{"id", "username", "pwd_hash", "salt_auth", "currency", "created_at"}).
			AddRow(id, "alice", []byte("h"), []byte("s"), int64(100), now))

	a, err := r.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, id, a.ID)
	require.Equal(t, int64(100), a.Currency)
}

func TestUserRepo_GetByUsername_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	mock.ExpectQuery(`SELECT id, username`).
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	_, err := r.GetByUsername(context.Background(), "nobody")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_Debit_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`UPDATE users SET currency = currency - \$2`).
		WithArgs(id, int64(20)).
		WillReturnRows(pgxmock.NewRows([]string{"currency"}).AddRow(int64(80)))

	balance, err := r.Debit(context.Background(), id, 20)
	require.NoError(t, err)
	require.Equal(t, int64(80), balance)
}

func TestUserRepo_Debit_InsufficientFunds(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`UPDATE users SET currency = currency - \$2`).
		WithArgs(id, int64(20)).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.Debit(context.Background(), id, 20)
	require.ErrorIs(t, err, errs.ErrInsufficientFunds)
}

func TestUserRepo_Debit_PersistenceFailure(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`UPDATE users SET currency = currency - \$2`).
		WithArgs(id, int64(20)).
		WillReturnError(errors.New("connection refused"))

	_, err := r.Debit(context.Background(), id, 20)
	require.ErrorIs(t, err, errs.ErrPersistence)
}

func TestUserRepo_Credit_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)

	id := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`UPDATE users SET currency = currency \+ \$2`).
		WithArgs(id, int64(20)).
		WillReturnRows(pgxmock.NewRows([]string{"currency"}).AddRow(int64(100)))

	balance, err := r.Credit(context.Background(), id, 20)
	require.NoError(t, err)
	require.Equal(t, int64(100), balance)
}
