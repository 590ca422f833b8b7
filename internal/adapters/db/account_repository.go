package db

import (
	"context"
	"database/sql"
	"errors"

	"heritage-auction-service/internal/domain/account"
	"heritage-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

const accountColumns = `id, username, full_name, mobile, password_hash, role, status, created_at, reviewed_at`

// AccountRepository implements the account repository interface
type AccountRepository struct {
	conn *Connection
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(conn *Connection) *AccountRepository {
	return &AccountRepository{conn: conn}
}

// Create inserts an account. The unique username index decides races.
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		acc.ID,
		acc.Username,
		acc.FullName,
		acc.Mobile,
		acc.PasswordHash,
		acc.Role,
		acc.Status,
		acc.CreatedAt,
		acc.ReviewedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrUsernameTaken
		}
		return shared.StorageError("create account", err)
	}

	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.getOne(ctx, "get account", query, id)
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return r.getOne(ctx, "get account by username", query, username)
}

func (r *AccountRepository) getOne(ctx context.Context, op, query string, arg interface{}) (*account.Account, error) {
	acc, err := scanAccount(r.conn.GetDB().QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrAccountNotFound
		}
		return nil, shared.StorageError(op, err)
	}
	return acc, nil
}

// ListByStatus retrieves accounts with the given role and status, oldest first
func (r *AccountRepository) ListByStatus(ctx context.Context, role account.Role, status account.Status) ([]*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE role = $1 AND status = $2
		ORDER BY created_at ASC, username ASC
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, role, status)
	if err != nil {
		return nil, shared.StorageError("list accounts", err)
	}
	defer rows.Close()

	accounts := make([]*account.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, shared.StorageError("scan account", err)
		}
		accounts = append(accounts, acc)
	}

	if err = rows.Err(); err != nil {
		return nil, shared.StorageError("iterate accounts", err)
	}

	return accounts, nil
}

// UpdateReview only touches rows that are still pending
func (r *AccountRepository) UpdateReview(ctx context.Context, acc *account.Account) error {
	query := `
		UPDATE accounts
		SET status = $2, reviewed_at = $3
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query, acc.ID, acc.Status, acc.ReviewedAt)
	if err != nil {
		return shared.StorageError("update account review", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return shared.StorageError("update account review", err)
	}
	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, acc.ID); err != nil {
			return err
		}
		return shared.ErrAlreadyReviewed
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var acc account.Account
	err := row.Scan(
		&acc.ID,
		&acc.Username,
		&acc.FullName,
		&acc.Mobile,
		&acc.PasswordHash,
		&acc.Role,
		&acc.Status,
		&acc.CreatedAt,
		&acc.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}
