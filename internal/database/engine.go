/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sms-wallet-go/internal/models"
	"sms-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerEngine is the sole authority for mutating account balances and
// purchase frozen amounts. Each primitive runs as one database
// transaction: read the account, apply the mutation under a version CAS,
// append the operation-log entry, commit. Nothing else writes these
// columns (the schema triggers back that up).
type LedgerEngine struct {
	db *sql.DB
}

func NewLedgerEngine(db *sql.DB) *LedgerEngine {
	return &LedgerEngine{db: db}
}

// isOpenStatus reports whether a commit may still win the purchase.
// A purchase claimed by the sweeper (status=timeout, freeze unsettled)
// is no longer committable.
func isOpenStatus(s models.PurchaseStatus) bool {
	return s == models.StatusPending || s == models.StatusWaiting
}

// Freeze earmarks funds against a new purchase: creates the purchase row,
// raises frozen_balance, and logs the operation, all in one transaction.
// A repeated freeze for the same purchase replays the recorded result
// instead of double-freezing.
func (e *LedgerEngine) Freeze(ctx context.Context, params store.FreezeParams) (*store.OperationResult, error) {
	if params.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, store.ErrInvalidAmount
	}
	if err := params.Ref.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPurchaseNotFound, err)
	}

	zap.L().Info("Processing freeze",
		zap.String("account_id", params.AccountID),
		zap.String("purchase", params.Ref.String()),
		zap.String("amount", params.Amount.String()))

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Idempotency guard: a second freeze for the same purchase replays
	// the original result derived from the operation log.
	existing, err := getPurchaseTx(ctx, tx, params.Ref)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check for existing purchase: %w", err)
	}
	if err == nil {
		if existing.AccountID != params.AccountID {
			return nil, store.ErrPurchaseMismatch
		}
		zap.L().Warn("Duplicate freeze detected, replaying recorded result",
			zap.String("purchase", params.Ref.String()))
		return e.replayFreezeTx(ctx, tx, params.Ref)
	}

	account, err := getAccountTx(ctx, tx, params.AccountID)
	if err != nil {
		return nil, err
	}

	if account.Available().LessThan(params.Amount) {
		return nil, store.ErrInsufficientFunds
	}

	newFrozen := account.FrozenBalance.Add(params.Amount)

	_, err = tx.ExecContext(ctx, queryInsertPurchase,
		params.Ref.ID, string(params.Ref.Kind), params.AccountID,
		params.Amount.String(), params.Amount.String(), string(models.StatusPending),
		params.Service, params.Country, params.ExpiresAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}

	if err := updateAccountCASTx(ctx, tx, account, account.Balance, newFrozen); err != nil {
		return nil, err
	}

	if err := appendOperationTx(ctx, tx, operationEntry{
		AccountID:     params.AccountID,
		PurchaseRef:   &params.Ref,
		Type:          models.OpFreeze,
		Amount:        params.Amount,
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance,
		FrozenBefore:  account.FrozenBalance,
		FrozenAfter:   newFrozen,
		Reason:        params.Reason,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Freeze processed successfully",
		zap.String("account_id", params.AccountID),
		zap.String("purchase", params.Ref.String()),
		zap.String("frozen_balance", newFrozen.String()))

	return &store.OperationResult{
		OperationType:      models.OpFreeze,
		Amount:             params.Amount,
		BalanceAfter:       account.Balance,
		FrozenBalanceAfter: newFrozen,
	}, nil
}

// Commit finalizes a successful purchase: charges the balance by the
// purchase's stored frozen amount, releases the freeze, and marks the
// purchase completed. The frozen amount always comes from storage, never
// from the caller.
func (e *LedgerEngine) Commit(ctx context.Context, params store.ResolveParams) (*store.OperationResult, error) {
	return e.resolve(ctx, params, models.OpCommit)
}

// Refund releases the freeze for a failed, expired, or cancelled
// purchase. It never touches balance: freezing never deducted it, so
// refunding must not credit it.
func (e *LedgerEngine) Refund(ctx context.Context, params store.ResolveParams) (*store.OperationResult, error) {
	return e.resolve(ctx, params, models.OpRefund)
}

func (e *LedgerEngine) resolve(ctx context.Context, params store.ResolveParams, opType models.OperationType) (*store.OperationResult, error) {
	if err := params.Ref.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrPurchaseNotFound, err)
	}

	outcome := models.StatusCompleted
	if opType == models.OpRefund {
		outcome = params.Outcome
		if outcome == "" {
			outcome = models.StatusCancelled
		}
		if outcome != models.StatusTimeout && outcome != models.StatusCancelled {
			return nil, fmt.Errorf("invalid refund outcome %q", outcome)
		}
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	purchase, err := getPurchaseTx(ctx, tx, params.Ref)
	if err == sql.ErrNoRows {
		return nil, store.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase: %w", err)
	}
	if purchase.AccountID != params.AccountID {
		return nil, store.ErrPurchaseMismatch
	}

	// Already settled: replay the recorded result if the caller retries
	// the same resolution; a conflicting resolution is a lost race.
	if purchase.Settled() {
		return e.replayResolutionTx(ctx, tx, params.Ref, opType)
	}

	if opType == models.OpCommit && !isOpenStatus(purchase.Status) {
		// Claimed by the sweeper; the late event loses.
		return nil, store.ErrPurchaseNotOpen
	}
	if opType == models.OpRefund && purchase.Status == models.StatusCompleted {
		zap.L().Error("Completed purchase still holds a freeze",
			zap.String("purchase", params.Ref.String()),
			zap.String("frozen_amount", purchase.FrozenAmount.String()))
		return nil, store.ErrIntegrityFault
	}

	account, err := getAccountTx(ctx, tx, params.AccountID)
	if err != nil {
		return nil, err
	}

	amount := purchase.FrozenAmount
	newBalance := account.Balance
	if opType == models.OpCommit {
		newBalance = account.Balance.Sub(amount)
	}
	newFrozen := account.FrozenBalance.Sub(amount)

	if newBalance.IsNegative() || newFrozen.IsNegative() {
		// Data-integrity fault, not a recoverable user error: the freeze
		// this purchase claims to hold is not reflected in the account.
		zap.L().Error("Resolution would drive balance negative, aborting",
			zap.String("account_id", params.AccountID),
			zap.String("purchase", params.Ref.String()),
			zap.String("operation", string(opType)),
			zap.String("balance", account.Balance.String()),
			zap.String("frozen_balance", account.FrozenBalance.String()),
			zap.String("frozen_amount", amount.String()))
		return nil, store.ErrIntegrityFault
	}

	// Keep a sweeper-claimed timeout status rather than overwriting it
	// with the refund's default outcome.
	settleStatus := outcome
	if opType == models.OpRefund && !isOpenStatus(purchase.Status) {
		settleStatus = purchase.Status
	}

	result, err := tx.ExecContext(ctx, querySettlePurchase,
		string(settleStatus), params.Ref.ID, string(params.Ref.Kind))
	if err != nil {
		return nil, fmt.Errorf("failed to settle purchase: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("purchase settle failed - %w", store.ErrConcurrentModification)
	}

	if err := updateAccountCASTx(ctx, tx, account, newBalance, newFrozen); err != nil {
		return nil, err
	}

	if err := appendOperationTx(ctx, tx, operationEntry{
		AccountID:     params.AccountID,
		PurchaseRef:   &params.Ref,
		Type:          opType,
		Amount:        amount,
		BalanceBefore: account.Balance,
		BalanceAfter:  newBalance,
		FrozenBefore:  account.FrozenBalance,
		FrozenAfter:   newFrozen,
		Reason:        params.Reason,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Purchase resolved",
		zap.String("account_id", params.AccountID),
		zap.String("purchase", params.Ref.String()),
		zap.String("operation", string(opType)),
		zap.String("amount", amount.String()),
		zap.String("balance", newBalance.String()),
		zap.String("frozen_balance", newFrozen.String()))

	return &store.OperationResult{
		OperationType:      opType,
		Amount:             amount,
		BalanceAfter:       newBalance,
		FrozenBalanceAfter: newFrozen,
	}, nil
}

// CreditAdmin increases an account's balance outside the
// freeze/commit/refund cycle. It is always logged and always requires a
// human-auditable reason.
func (e *LedgerEngine) CreditAdmin(ctx context.Context, params store.CreditParams) (*store.OperationResult, error) {
	if params.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, store.ErrInvalidAmount
	}
	if strings.TrimSpace(params.Reason) == "" {
		return nil, store.ErrEmptyReason
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	account, err := getAccountTx(ctx, tx, params.AccountID)
	if err != nil {
		return nil, err
	}

	newBalance := account.Balance.Add(params.Amount)

	if err := updateAccountCASTx(ctx, tx, account, newBalance, account.FrozenBalance); err != nil {
		return nil, err
	}

	if err := appendOperationTx(ctx, tx, operationEntry{
		AccountID:     params.AccountID,
		Type:          models.OpCreditAdmin,
		Amount:        params.Amount,
		BalanceBefore: account.Balance,
		BalanceAfter:  newBalance,
		FrozenBefore:  account.FrozenBalance,
		FrozenAfter:   account.FrozenBalance,
		Reason:        params.Reason,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Admin credit processed",
		zap.String("account_id", params.AccountID),
		zap.String("amount", params.Amount.String()),
		zap.String("new_balance", newBalance.String()),
		zap.String("reason", params.Reason))

	return &store.OperationResult{
		OperationType:      models.OpCreditAdmin,
		Amount:             params.Amount,
		BalanceAfter:       newBalance,
		FrozenBalanceAfter: account.FrozenBalance,
	}, nil
}

// CorrectDrift recomputes frozen_balance from the authoritative sum of
// the account's unsettled purchases and writes it back with a logged
// correction entry. This is the only sanctioned repair for drift; it is
// a no-op when the divergence is within epsilon.
func (e *LedgerEngine) CorrectDrift(ctx context.Context, params store.CorrectDriftParams) (*store.OperationResult, error) {
	if strings.TrimSpace(params.Reason) == "" {
		return nil, store.ErrEmptyReason
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	account, err := getAccountTx(ctx, tx, params.AccountID)
	if err != nil {
		return nil, err
	}

	expected, err := sumOpenFrozenTx(ctx, tx, params.AccountID)
	if err != nil {
		return nil, err
	}

	drift := account.FrozenBalance.Sub(expected)
	if drift.Abs().LessThanOrEqual(params.Epsilon) {
		return &store.OperationResult{
			AlreadyProcessed:   true,
			OperationType:      models.OpCorrectDrift,
			Amount:             decimal.Zero,
			BalanceAfter:       account.Balance,
			FrozenBalanceAfter: account.FrozenBalance,
		}, nil
	}

	if expected.GreaterThan(account.Balance) {
		zap.L().Error("Open purchases exceed total balance, refusing drift correction",
			zap.String("account_id", params.AccountID),
			zap.String("balance", account.Balance.String()),
			zap.String("expected_frozen", expected.String()))
		return nil, store.ErrIntegrityFault
	}

	if err := updateAccountCASTx(ctx, tx, account, account.Balance, expected); err != nil {
		return nil, err
	}

	if err := appendOperationTx(ctx, tx, operationEntry{
		AccountID:     params.AccountID,
		Type:          models.OpCorrectDrift,
		Amount:        drift.Abs(),
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance,
		FrozenBefore:  account.FrozenBalance,
		FrozenAfter:   expected,
		Reason:        params.Reason,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Warn("Frozen balance drift corrected",
		zap.String("account_id", params.AccountID),
		zap.String("frozen_before", account.FrozenBalance.String()),
		zap.String("frozen_after", expected.String()),
		zap.String("drift", drift.String()),
		zap.String("reason", params.Reason))

	return &store.OperationResult{
		OperationType:      models.OpCorrectDrift,
		Amount:             drift.Abs(),
		BalanceAfter:       account.Balance,
		FrozenBalanceAfter: expected,
	}, nil
}

// --- transaction-scoped helpers ---

type operationEntry struct {
	AccountID     string
	PurchaseRef   *models.PurchaseRef
	Type          models.OperationType
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	FrozenBefore  decimal.Decimal
	FrozenAfter   decimal.Decimal
	Reason        string
}

func getAccountTx(ctx context.Context, tx *sql.Tx, accountID string) (*models.Account, error) {
	var account models.Account
	var balanceStr, frozenStr string

	err := tx.QueryRowContext(ctx, queryGetAccount, accountID).Scan(
		&account.ID, &account.Name, &account.Email,
		&balanceStr, &frozenStr, &account.Version,
		&account.CreatedAt, &account.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
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

func getPurchaseTx(ctx context.Context, tx *sql.Tx, ref models.PurchaseRef) (*models.Purchase, error) {
	row := tx.QueryRowContext(ctx, queryGetPurchase, ref.ID, string(ref.Kind))
	return scanPurchase(row)
}

func updateAccountCASTx(ctx context.Context, tx *sql.Tx, account *models.Account, newBalance, newFrozen decimal.Decimal) error {
	result, err := tx.ExecContext(ctx, queryUpdateAccountBalances,
		newBalance.String(), newFrozen.String(), account.ID, account.Version)
	if err != nil {
		return fmt.Errorf("failed to update account balances: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account update failed - %w", store.ErrConcurrentModification)
	}
	return nil
}

func appendOperationTx(ctx context.Context, tx *sql.Tx, entry operationEntry) error {
	var purchaseID, purchaseKind interface{}
	if entry.PurchaseRef != nil {
		purchaseID = entry.PurchaseRef.ID
		purchaseKind = string(entry.PurchaseRef.Kind)
	}

	_, err := tx.ExecContext(ctx, queryInsertOperation,
		uuid.New().String(), entry.AccountID, purchaseID, purchaseKind,
		string(entry.Type), entry.Amount.String(),
		entry.BalanceBefore.String(), entry.BalanceAfter.String(),
		entry.FrozenBefore.String(), entry.FrozenAfter.String(),
		entry.Reason)
	if err != nil {
		return fmt.Errorf("failed to append operation log entry: %w", err)
	}
	return nil
}

func sumOpenFrozenTx(ctx context.Context, tx *sql.Tx, accountID string) (decimal.Decimal, error) {
	rows, err := tx.QueryContext(ctx, queryOpenFrozenAmounts, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query open purchases: %w", err)
	}
	defer rows.Close()

	// Summed in Go so decimal strings are never coerced to floats.
	total := decimal.Zero
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan frozen amount: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse frozen amount %q: %w", amountStr, err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating open purchases: %w", err)
	}
	return total, nil
}

func (e *LedgerEngine) replayFreezeTx(ctx context.Context, tx *sql.Tx, ref models.PurchaseRef) (*store.OperationResult, error) {
	var amountStr, balanceAfterStr, frozenAfterStr string
	err := tx.QueryRowContext(ctx, queryGetFreezeOperation, ref.ID, string(ref.Kind)).
		Scan(&amountStr, &balanceAfterStr, &frozenAfterStr)
	if err == sql.ErrNoRows {
		// Purchase row without its freeze entry: should be impossible,
		// both are written in the same transaction.
		return nil, store.ErrPurchaseAlreadyFrozen
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load freeze operation: %w", err)
	}
	return buildReplayResult(models.OpFreeze, amountStr, balanceAfterStr, frozenAfterStr)
}

func (e *LedgerEngine) replayResolutionTx(ctx context.Context, tx *sql.Tx, ref models.PurchaseRef, wantType models.OperationType) (*store.OperationResult, error) {
	var opTypeStr, amountStr, balanceAfterStr, frozenAfterStr string
	err := tx.QueryRowContext(ctx, queryGetResolvingOperation, ref.ID, string(ref.Kind)).
		Scan(&opTypeStr, &amountStr, &balanceAfterStr, &frozenAfterStr)
	if err == sql.ErrNoRows {
		return nil, store.ErrPurchaseNotOpen
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load resolving operation: %w", err)
	}

	if models.OperationType(opTypeStr) != wantType {
		// The purchase was resolved the other way; this retry is a
		// conflict, not an idempotent replay.
		return nil, store.ErrPurchaseNotOpen
	}

	zap.L().Info("Replaying recorded resolution",
		zap.String("purchase", ref.String()),
		zap.String("operation", opTypeStr))

	return buildReplayResult(wantType, amountStr, balanceAfterStr, frozenAfterStr)
}

func buildReplayResult(opType models.OperationType, amountStr, balanceAfterStr, frozenAfterStr string) (*store.OperationResult, error) {
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recorded amount %q: %w", amountStr, err)
	}
	balanceAfter, err := decimal.NewFromString(balanceAfterStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recorded balance_after %q: %w", balanceAfterStr, err)
	}
	frozenAfter, err := decimal.NewFromString(frozenAfterStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recorded frozen_after %q: %w", frozenAfterStr, err)
	}
	return &store.OperationResult{
		AlreadyProcessed:   true,
		OperationType:      opType,
		Amount:             amount,
		BalanceAfter:       balanceAfter,
		FrozenBalanceAfter: frozenAfter,
	}, nil
}
