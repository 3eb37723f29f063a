package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stanstork/adscope-api/internal/models"
)

// SecretSealer encrypts account secrets before they reach the database.
type SecretSealer interface {
	Encrypt(plain string) ([]byte, error)
	Decrypt(data []byte) (string, error)
}

type AccountRepository interface {
	// GetActiveAccount returns the account with its plaintext secret, or ErrNotFound
	// when the account is unknown or deactivated.
	GetActiveAccount(ctx context.Context, id string) (models.Account, error)
	GetAccount(ctx context.Context, id string) (models.Account, error)
	CreateAccount(ctx context.Context, name, customerID, secret string) (models.Account, error)
	RotateSecret(ctx context.Context, id, secret string) error
	SetActive(ctx context.Context, id string, active bool) error
}

type accountRepository struct {
	db     *sql.DB
	sealer SecretSealer
}

func NewAccountRepository(db *sql.DB, sealer SecretSealer) AccountRepository {
	return &accountRepository{db: db, sealer: sealer}
}

func (r *accountRepository) GetActiveAccount(ctx context.Context, id string) (models.Account, error) {
	account, err := r.GetAccount(ctx, id)
	if err != nil {
		return account, err
	}
	if !account.IsActive {
		return models.Account{}, ErrNotFound
	}
	return account, nil
}

func (r *accountRepository) GetAccount(ctx context.Context, id string) (models.Account, error) {
	// Ids that are not UUIDs can never match and would otherwise surface as a cast error.
	if _, err := uuid.Parse(id); err != nil {
		return models.Account{}, ErrNotFound
	}

	const query = `
		SELECT id, name, customer_id, secret_ciphertext, is_active, created_at, updated_at
		FROM ingest.accounts
		WHERE id = $1
	`
	var (
		account    models.Account
		ciphertext []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.Name,
		&account.CustomerID,
		&ciphertext,
		&account.IsActive,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("get account: %w", err)
	}

	secret, err := r.sealer.Decrypt(ciphertext)
	if err != nil {
		return models.Account{}, fmt.Errorf("decrypt account secret: %w", err)
	}
	account.Secret = secret
	return account, nil
}

func (r *accountRepository) CreateAccount(ctx context.Context, name, customerID, secret string) (models.Account, error) {
	ciphertext, err := r.sealer.Encrypt(secret)
	if err != nil {
		return models.Account{}, fmt.Errorf("encrypt account secret: %w", err)
	}

	const query = `
		INSERT INTO ingest.accounts (name, customer_id, secret_ciphertext)
		VALUES ($1, $2, $3)
		RETURNING id, name, customer_id, is_active, created_at, updated_at
	`
	var account models.Account
	err = r.db.QueryRowContext(ctx, query, name, customerID, ciphertext).Scan(
		&account.ID,
		&account.Name,
		&account.CustomerID,
		&account.IsActive,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return models.Account{}, fmt.Errorf("create account: %w", err)
	}
	account.Secret = secret
	return account, nil
}

func (r *accountRepository) RotateSecret(ctx context.Context, id, secret string) error {
	ciphertext, err := r.sealer.Encrypt(secret)
	if err != nil {
		return fmt.Errorf("encrypt account secret: %w", err)
	}
	const query = `
		UPDATE ingest.accounts
		SET secret_ciphertext = $2, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, ciphertext)
}

func (r *accountRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `
		UPDATE ingest.accounts
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, active)
}

func (r *accountRepository) execOne(ctx context.Context, query, id string, arg interface{}) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, query, id, arg)
	if err != nil {
		return err
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
