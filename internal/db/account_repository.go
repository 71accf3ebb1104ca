package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tOgg1/ostruka/internal/protocol"
)

// Account repository errors.
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account with this username already exists")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrEmptyPassword        = errors.New("password is required")
)

// Account is a relay login.
type Account struct {
	ID          string
	Username    string
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

// AccountRepository handles account persistence.
type AccountRepository struct {
	db   *DB
	cost int
}

// AccountOption configures an AccountRepository.
type AccountOption func(*AccountRepository)

// WithBcryptCost overrides the password hashing cost. Tests use
// bcrypt.MinCost to stay fast.
func WithBcryptCost(cost int) AccountOption {
	return func(r *AccountRepository) {
		r.cost = cost
	}
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *DB, opts ...AccountOption) *AccountRepository {
	r := &AccountRepository{db: db, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create adds an account with a hashed password.
func (r *AccountRepository) Create(ctx context.Context, username, password string) (*Account, error) {
	if err := protocol.ValidateUser(username); err != nil {
		return nil, fmt.Errorf("invalid account: %w", err)
	}
	if password == "" {
		return nil, ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &Account{
		ID:        uuid.New().String(),
		Username:  username,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	err = r.db.write(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, username, password_hash, created_at)
			VALUES (?, ?, ?, ?)
		`,
			account.ID,
			account.Username,
			string(hash),
			account.CreatedAt.Format(time.RFC3339),
		)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrAccountAlreadyExists) || errors.Is(err, ErrDatabaseBusy) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}
	return account, nil
}

// Get retrieves an account by username.
func (r *AccountRepository) Get(ctx context.Context, username string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, created_at, last_login_at
		FROM accounts
		WHERE username = ?
	`, username)
	return scanAccount(row)
}

// Authenticate checks password for username and records the login time.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (r *AccountRepository) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	var account *Account
	err := r.db.write(ctx, func(tx *sql.Tx) error {
		var hash string
		err := tx.QueryRowContext(ctx, `SELECT password_hash FROM accounts WHERE username = ?`, username).Scan(&hash)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidCredentials
		}
		if err != nil {
			return fmt.Errorf("failed to query account: %w", err)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
			return ErrInvalidCredentials
		}

		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.ExecContext(ctx, `UPDATE accounts SET last_login_at = ? WHERE username = ?`, now, username); err != nil {
			return fmt.Errorf("failed to record login: %w", err)
		}

		row := tx.QueryRowContext(ctx, `
			SELECT id, username, created_at, last_login_at
			FROM accounts
			WHERE username = ?
		`, username)
		account, err = scanAccount(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// List retrieves all accounts ordered by username.
func (r *AccountRepository) List(ctx context.Context) ([]*Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, created_at, last_login_at
		FROM accounts
		ORDER BY username
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// Delete removes an account by username.
func (r *AccountRepository) Delete(ctx context.Context, username string) error {
	return r.db.write(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE username = ?`, username)
		if err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return ErrAccountNotFound
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*Account, error) {
	var (
		account   Account
		createdAt string
		lastLogin sql.NullString
	)
	if err := row.Scan(&account.ID, &account.Username, &createdAt, &lastLogin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	var err error
	if account.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if lastLogin.Valid {
		t, err := time.Parse(time.RFC3339, lastLogin.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_login_at: %w", err)
		}
		account.LastLoginAt = &t
	}
	return &account, nil
}
