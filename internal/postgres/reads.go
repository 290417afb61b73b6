package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sms-wallet-go/internal/models"
	"sms-wallet-go/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const pgUniqueViolation = "23505"

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

	_, err := s.pool.Exec(ctx, queryInsertAccount, id, name, email)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
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
	account, err := scanAccount(s.pool.QueryRow(ctx, queryGetAccount, accountID))
	if err == pgx.ErrNoRows {
		return nil, store.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

func (s *Service) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	account, err := scanAccount(s.pool.QueryRow(ctx, queryGetAccountByEmail, email))
	if err == pgx.ErrNoRows {
		return nil, store.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.pool.Query(ctx, queryListAccounts)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

func (s *Service) GetPurchase(ctx context.Context, ref models.PurchaseRef) (*models.Purchase, error) {
	purchase, err := scanPurchase(s.pool.QueryRow(ctx, queryGetPurchase, ref.ID, string(ref.Kind)))
	if err == pgx.ErrNoRows {
		return nil, store.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase: %w", err)
	}
	return purchase, nil
}

func (s *Service) ListExpiredPurchases(ctx context.Context, now time.Time, limit int) ([]models.Purchase, error) {
	rows, err := s.pool.Query(ctx, queryListExpiredPurchases, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired purchases: %w", err)
	}
	defer rows.Close()

	var purchases []models.Purchase
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, *purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired purchases: %w", err)
	}
	return purchases, nil
}

func (s *Service) ClaimExpired(ctx context.Context, ref models.PurchaseRef, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, queryClaimExpired, ref.ID, string(ref.Kind), now.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to claim expired purchase: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Service) ListOperations(ctx context.Context, accountID string, limit, offset int) ([]models.Operation, error) {
	rows, err := s.pool.Query(ctx, queryListOperations, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	var operations []models.Operation
	for rows.Next() {
		var op models.Operation
		var opTypeStr, amountStr, balBeforeStr, balAfterStr, frzBeforeStr, frzAfterStr string

		err := rows.Scan(&op.ID, &op.AccountID, &op.PurchaseID, &opTypeStr, &amountStr,
			&balBeforeStr, &balAfterStr, &frzBeforeStr, &frzAfterStr,
			&op.Reason, &op.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}

		op.Type = models.OperationType(opTypeStr)
		if op.Amount, err = parseDecimal(amountStr, "amount"); err != nil {
			return nil, err
		}
		if op.BalanceBefore, err = parseDecimal(balBeforeStr, "balance_before"); err != nil {
			return nil, err
		}
		if op.BalanceAfter, err = parseDecimal(balAfterStr, "balance_after"); err != nil {
			return nil, err
		}
		if op.FrozenBefore, err = parseDecimal(frzBeforeStr, "frozen_before"); err != nil {
			return nil, err
		}
		if op.FrozenAfter, err = parseDecimal(frzAfterStr, "frozen_after"); err != nil {
			return nil, err
		}
		operations = append(operations, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}
	return operations, nil
}

func (s *Service) ListFrozenAccounts(ctx context.Context) ([]models.AccountDrift, error) {
	rows, err := s.pool.Query(ctx, queryListFrozenAccountIds)
	if err != nil {
		return nil, fmt.Errorf("failed to list frozen accounts: %w", err)
	}

	var accountIds []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		accountIds = append(accountIds, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating frozen accounts: %w", err)
	}
	rows.Close()

	var drifts []models.AccountDrift
	for _, accountID := range accountIds {
		account, err := s.GetAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}

		expected, open, err := s.sumOpenFrozen(ctx, accountID)
		if err != nil {
			return nil, err
		}

		drifts = append(drifts, models.AccountDrift{
			AccountID:      accountID,
			FrozenBalance:  account.FrozenBalance,
			ExpectedFrozen: expected,
			OpenPurchases:  open,
		})
	}
	return drifts, nil
}

func (s *Service) sumOpenFrozen(ctx context.Context, accountID string) (decimal.Decimal, int, error) {
	rows, err := s.pool.Query(ctx, queryOpenFrozenAmounts, accountID)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to query open purchases: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	count := 0
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return decimal.Zero, 0, fmt.Errorf("failed to scan frozen amount: %w", err)
		}
		amount, err := parseDecimal(amountStr, "frozen_amount")
		if err != nil {
			return decimal.Zero, 0, err
		}
		total = total.Add(amount)
		count++
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, 0, fmt.Errorf("error iterating open purchases: %w", err)
	}
	return total, count, nil
}

// rowScanner lets the scan helpers accept both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	var balanceStr, frozenStr string

	err := row.Scan(&account.ID, &account.Name, &account.Email,
		&balanceStr, &frozenStr, &account.Version,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}

	account.Balance, err = parseDecimal(balanceStr, "balance")
	if err != nil {
		return nil, err
	}
	account.FrozenBalance, err = parseDecimal(frozenStr, "frozen_balance")
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func scanPurchase(row rowScanner) (*models.Purchase, error) {
	var purchase models.Purchase
	var kindStr, statusStr, priceStr, frozenStr string
	var service, country *string

	err := row.Scan(&purchase.ID, &kindStr, &purchase.AccountID,
		&priceStr, &frozenStr, &statusStr, &service, &country,
		&purchase.ExpiresAt, &purchase.CreatedAt, &purchase.UpdatedAt)
	if err != nil {
		return nil, err
	}

	purchase.Kind = models.PurchaseKind(kindStr)
	purchase.Status = models.PurchaseStatus(statusStr)
	if service != nil {
		purchase.Service = *service
	}
	if country != nil {
		purchase.Country = *country
	}

	purchase.Price, err = parseDecimal(priceStr, "price")
	if err != nil {
		return nil, err
	}
	purchase.FrozenAmount, err = parseDecimal(frozenStr, "frozen_amount")
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func parseDecimal(value, column string) (decimal.Decimal, error) {
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s %q: %w", column, value, err)
	}
	return parsed, nil
}
