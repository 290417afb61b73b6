package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sms-wallet-go/internal/models"
	"sms-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateAccount inserts a new account with zero balances.
func (s *Service) CreateAccount(ctx context.Context, id, name, email string) (*models.Account, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("account id cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("account name cannot be empty")
	}
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("account email cannot be empty")
	}

	_, err := s.db.ExecContext(ctx, queryInsertAccount, id, name, email)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, store.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	zap.L().Info("Account created",
		zap.String("id", id),
		zap.String("name", name),
		zap.String("email", email))

	return s.GetAccount(ctx, id)
}

func (s *Service) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, queryGetAccount, accountID)
	return scanAccount(row)
}

func (s *Service) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, queryGetAccountByEmail, email)
	return scanAccount(row)
}

func (s *Service) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, queryListAccounts)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// rowScanner lets the scan helpers accept both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	var balanceStr, frozenStr string

	err := row.Scan(&account.ID, &account.Name, &account.Email,
		&balanceStr, &frozenStr, &account.Version,
		&account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account.Balance, err = decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balanceStr, err)
	}
	account.FrozenBalance, err = decimal.NewFromString(frozenStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frozen_balance %q: %w", frozenStr, err)
	}
	return &account, nil
}
