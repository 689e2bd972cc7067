package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Account is an authentication record. Profile data (age, height, medical
// history, ...) lives in the document store, not here.
type Account struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrAccountNotFound is returned when no account matches the lookup key.
var ErrAccountNotFound = errors.New("account not found")

// AccountStore persists login credentials.
type AccountStore struct {
	pool *pgxpool.Pool
}

func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

func (s *AccountStore) Create(ctx context.Context, a Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (user_id, email, name, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.UserID, a.Email, a.Name, a.PasswordHash, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *AccountStore) GetByEmail(ctx context.Context, email string) (Account, error) {
	return s.get(ctx, `SELECT user_id, email, name, password_hash, created_at
		FROM accounts WHERE email = $1`, email)
}

func (s *AccountStore) GetByID(ctx context.Context, userID string) (Account, error) {
	return s.get(ctx, `SELECT user_id, email, name, password_hash, created_at
		FROM accounts WHERE user_id = $1`, userID)
}

func (s *AccountStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

func (s *AccountStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $2 WHERE user_id = $1`,
		userID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *AccountStore) get(ctx context.Context, query, arg string) (Account, error) {
	var a Account
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&a.UserID, &a.Email, &a.Name, &a.PasswordHash, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}
