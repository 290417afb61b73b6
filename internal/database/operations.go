package database

import (
	"context"
	"fmt"

	"sms-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

// ListOperations returns an account's operation log, newest first.
func (s *Service) ListOperations(ctx context.Context, accountID string, limit, offset int) ([]models.Operation, error) {
	rows, err := s.db.QueryContext(ctx, queryListOperations, accountID, limit, offset)
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

// ListFrozenAccounts returns, for every account with any freeze activity,
// the stored frozen_balance alongside the recomputed sum of its open
// purchases. The reconciler compares the two.
func (s *Service) ListFrozenAccounts(ctx context.Context) ([]models.AccountDrift, error) {
	rows, err := s.db.QueryContext(ctx, queryListFrozenAccountIds)
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

// sumOpenFrozen recomputes the expected frozen balance from the open
// purchase rows. Decimal strings are summed in Go so no precision is
// lost to SQL casts.
func (s *Service) sumOpenFrozen(ctx context.Context, accountID string) (decimal.Decimal, int, error) {
	rows, err := s.db.QueryContext(ctx, queryOpenFrozenAmounts, accountID)
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

func parseDecimal(value, column string) (decimal.Decimal, error) {
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s %q: %w", column, value, err)
	}
	return parsed, nil
}
