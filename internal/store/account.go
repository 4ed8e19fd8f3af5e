package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/pavelanni/mlquiz/internal/model"
)

// CreateAccount inserts a new account. Username uniqueness is enforced by
// the primary key; a lost race returns model.ErrDuplicateUsername.
func (s *Store) CreateAccount(ctx context.Context, a model.Account) (model.Account, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO accounts (username, password_hash, is_admin, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (username) DO NOTHING`),
		a.Username, a.PasswordHash, a.IsAdmin, a.CreatedAt,
	)
	if err != nil {
		slog.Error("failed to create account", "username", a.Username, "error", err)
		return model.Account{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Account{}, err
	}
	if n == 0 {
		return model.Account{}, model.ErrDuplicateUsername
	}
	slog.Info("created account", "username", a.Username, "admin", a.IsAdmin)
	return a, nil
}

// GetAccount returns an account by normalized username, or model.ErrNotFound.
func (s *Store) GetAccount(ctx context.Context, username string) (model.Account, error) {
	var a model.Account
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT username, password_hash, is_admin, created_at
		 FROM accounts WHERE username = ?`), username,
	).Scan(&a.Username, &a.PasswordHash, &a.IsAdmin, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, model.ErrNotFound
	}
	if err != nil {
		return model.Account{}, err
	}
	return a, nil
}

// AccountExists reports whether username is taken.
func (s *Store) AccountExists(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM accounts WHERE username = ?`), username).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AccountCount returns the total number of accounts.
func (s *Store) AccountCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count)
	return count, err
}
