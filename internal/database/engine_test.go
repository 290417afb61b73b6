package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"sms-wallet-go/internal/models"
	"sms-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Single connection: every handle to :memory: is its own database.
func setupTestService(t *testing.T) (*Service, func()) {
	t.Helper()

	cfg := models.DatabaseConfig{
		Backend:         "sqlite",
		Path:            ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
	}

	service, err := NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}

	return service, func() { service.Close() }
}

// createFundedAccount creates an account and credits it to the given
// balance through the engine, the same path production uses.
func createFundedAccount(t *testing.T, s *Service, balance string) *models.Account {
	t.Helper()
	ctx := context.Background()

	id := uuid.New().String()
	account, err := s.CreateAccount(ctx, id, "Test User", id+"@example.com")
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	amount, err := decimal.NewFromString(balance)
	if err != nil {
		t.Fatalf("invalid balance %q: %v", balance, err)
	}
	if amount.IsPositive() {
		_, err = s.CreditAdmin(ctx, store.CreditParams{
			AccountID: account.ID,
			Amount:    amount,
			Reason:    "test funding",
		})
		if err != nil {
			t.Fatalf("failed to fund account: %v", err)
		}
	}

	funded, err := s.GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("failed to reload account: %v", err)
	}
	return funded
}

func freezeParams(accountID string, amount string) store.FreezeParams {
	return store.FreezeParams{
		AccountID: accountID,
		Ref:       models.ActivationRef(uuid.New().String()),
		Amount:    decimal.RequireFromString(amount),
		ExpiresAt: time.Now().Add(15 * time.Minute),
		Service:   "telegram",
		Country:   "us",
		Reason:    "number purchase",
	}
}

func assertBalances(t *testing.T, s *Service, accountID, wantBalance, wantFrozen string) {
	t.Helper()
	account, err := s.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("failed to load account: %v", err)
	}
	if !account.Balance.Equal(decimal.RequireFromString(wantBalance)) {
		t.Errorf("balance = %s, want %s", account.Balance, wantBalance)
	}
	if !account.FrozenBalance.Equal(decimal.RequireFromString(wantFrozen)) {
		t.Errorf("frozen_balance = %s, want %s", account.FrozenBalance, wantFrozen)
	}
}

func TestFreezeAndCommit(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "100")
	params := freezeParams(account.ID, "20")

	result, err := s.Freeze(ctx, params)
	if err != nil {
		t.Fatalf("freeze failed: %v", err)
	}
	if result.AlreadyProcessed {
		t.Error("fresh freeze reported as already processed")
	}
	assertBalances(t, s, account.ID, "100", "20")

	result, err = s.Commit(ctx, store.ResolveParams{
		AccountID: account.ID,
		Ref:       params.Ref,
		Reason:    "code received",
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if !result.Amount.Equal(decimal.RequireFromString("20")) {
		t.Errorf("commit amount = %s, want 20", result.Amount)
	}
	assertBalances(t, s, account.ID, "80", "0")

	purchase, err := s.GetPurchase(ctx, params.Ref)
	if err != nil {
		t.Fatalf("failed to load purchase: %v", err)
	}
	if purchase.Status != models.StatusCompleted {
		t.Errorf("purchase status = %s, want completed", purchase.Status)
	}
	if !purchase.Settled() {
		t.Error("committed purchase still holds a freeze")
	}

	ops, err := s.ListOperations(ctx, account.ID, 10, 0)
	if err != nil {
		t.Fatalf("failed to list operations: %v", err)
	}
	// credit_admin + freeze + commit
	if len(ops) != 3 {
		t.Fatalf("operation count = %d, want 3", len(ops))
	}
}

func TestFreezeAndRefund(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "100")
	params := freezeParams(account.ID, "20")

	if _, err := s.Freeze(ctx, params); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}

	result, err := s.Refund(ctx, store.ResolveParams{
		AccountID: account.ID,
		Ref:       params.Ref,
		Reason:    "no sms received",
	})
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if result.OperationType != models.OpRefund {
		t.Errorf("operation type = %s, want refund", result.OperationType)
	}

	// Refund releases the freeze but never credits the balance.
	assertBalances(t, s, account.ID, "100", "0")

	purchase, err := s.GetPurchase(ctx, params.Ref)
	if err != nil {
		t.Fatalf("failed to load purchase: %v", err)
	}
	if purchase.Status != models.StatusCancelled {
		t.Errorf("purchase status = %s, want cancelled", purchase.Status)
	}
}

func TestFreezeInsufficientFunds(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "10")
	params := freezeParams(account.ID, "20")

	_, err := s.Freeze(ctx, params)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}

	// Failed freeze must leave no trace.
	assertBalances(t, s, account.ID, "10", "0")
	if _, err := s.GetPurchase(ctx, params.Ref); !errors.Is(err, store.ErrPurchaseNotFound) {
		t.Errorf("purchase lookup error = %v, want ErrPurchaseNotFound", err)
	}
}

func TestFreezeAvailableBalance(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "30")

	if _, err := s.Freeze(ctx, freezeParams(account.ID, "20")); err != nil {
		t.Fatalf("first freeze failed: %v", err)
	}

	// 10 available left, 15 must be rejected.
	_, err := s.Freeze(ctx, freezeParams(account.ID, "15"))
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}

	if _, err := s.Freeze(ctx, freezeParams(account.ID, "10")); err != nil {
		t.Fatalf("freeze of remaining available failed: %v", err)
	}
	assertBalances(t, s, account.ID, "30", "30")
}

func TestDuplicateFreezeReplays(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "100")
	params := freezeParams(account.ID, "20")

	first, err := s.Freeze(ctx, params)
	if err != nil {
		t.Fatalf("freeze failed: %v", err)
	}

	second, err := s.Freeze(ctx, params)
	if err != nil {
		t.Fatalf("duplicate freeze failed: %v", err)
	}
	if !second.AlreadyProcessed {
		t.Error("duplicate freeze not reported as already processed")
	}
	if !second.Amount.Equal(first.Amount) {
		t.Errorf("replayed amount = %s, want %s", second.Amount, first.Amount)
	}
	if !second.FrozenBalanceAfter.Equal(first.FrozenBalanceAfter) {
		t.Errorf("replayed frozen_after = %s, want %s", second.FrozenBalanceAfter, first.FrozenBalanceAfter)
	}

	// No double freeze, no second log entry.
	assertBalances(t, s, account.ID, "100", "20")
	ops, err := s.ListOperations(ctx, account.ID, 10, 0)
	if err != nil {
		t.Fatalf("failed to list operations: %v", err)
	}
	freezes := 0
	for _, op := range ops {
		if op.Type == models.OpFreeze {
			freezes++
		}
	}
	if freezes != 1 {
		t.Errorf("freeze operation count = %d, want 1", freezes)
	}
}

func TestCommitIdempotent(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "100")
	params := freezeParams(account.ID, "20")
	if _, err := s.Freeze(ctx, params); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}

	resolve := store.ResolveParams{AccountID: account.ID, Ref: params.Ref, Reason: "done"}
	first, err := s.Commit(ctx, resolve)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	second, err := s.Commit(ctx, resolve)
	if err != nil {
		t.Fatalf("repeated commit failed: %v", err)
	}
	if !second.AlreadyProcessed {
		t.Error("repeated commit not reported as already processed")
	}
	if !second.BalanceAfter.Equal(first.BalanceAfter) {
		t.Errorf("replayed balance_after = %s, want %s", second.BalanceAfter, first.BalanceAfter)
	}
	if !second.Amount.Equal(first.Amount) {
		t.Errorf("replayed amount = %s, want %s", second.Amount, first.Amount)
	}

	assertBalances(t, s, account.ID, "80", "0")

	// The replay must not have written a second commit entry.
	ops, err := s.ListOperations(ctx, account.ID, 10, 0)
	if err != nil {
		t.Fatalf("failed to list operations: %v", err)
	}
	commits := 0
	for _, op := range ops {
		if op.Type == models.OpCommit {
			commits++
			if !op.Amount.Equal(first.Amount) {
				t.Errorf("logged commit amount = %s, want %s", op.Amount, first.Amount)
			}
		}
	}
	if commits != 1 {
		t.Errorf("commit operation count = %d, want 1", commits)
	}
}

func TestRefundIdempotent(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "100")
	params := freezeParams(account.ID, "20")
	if _, err := s.Freeze(ctx, params); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}

	resolve := store.ResolveParams{AccountID: account.ID, Ref: params.Ref, Reason: "expired"}
	if _, err := s.Refund(ctx, resolve); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	second, err := s.Refund(ctx, resolve)
	if err != nil {
		t.Fatalf("repeated refund failed: %v", err)
	}
	if !second.AlreadyProcessed {
		t.Error("repeated refund not reported as already processed")
	}
	assertBalances(t, s, account.ID, "100", "0")
}

func TestConflictingResolutions(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "100")

	refunded := freezeParams(account.ID, "10")
	if _, err := s.Freeze(ctx, refunded); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}
	if _, err := s.Refund(ctx, store.ResolveParams{AccountID: account.ID, Ref: refunded.Ref}); err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	_, err := s.Commit(ctx, store.ResolveParams{AccountID: account.ID, Ref: refunded.Ref})
	if !errors.Is(err, store.ErrPurchaseNotOpen) {
		t.Errorf("commit after refund: error = %v, want ErrPurchaseNotOpen", err)
	}

	committed := freezeParams(account.ID, "10")
	if _, err := s.Freeze(ctx, committed); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}
	if _, err := s.Commit(ctx, store.ResolveParams{AccountID: account.ID, Ref: committed.Ref}); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	_, err = s.Refund(ctx, store.ResolveParams{AccountID: account.ID, Ref: committed.Ref})
	if !errors.Is(err, store.ErrPurchaseNotOpen) {
		t.Errorf("refund after commit: error = %v, want ErrPurchaseNotOpen", err)
	}
}

func TestResolveValidation(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "100")
	other := createFundedAccount(t, s, "100")

	_, err := s.Commit(ctx, store.ResolveParams{
		AccountID: account.ID,
		Ref:       models.ActivationRef(uuid.New().String()),
	})
	if !errors.Is(err, store.ErrPurchaseNotFound) {
		t.Errorf("unknown purchase: error = %v, want ErrPurchaseNotFound", err)
	}

	params := freezeParams(account.ID, "20")
	if _, err := s.Freeze(ctx, params); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}

	_, err = s.Commit(ctx, store.ResolveParams{AccountID: other.ID, Ref: params.Ref})
	if !errors.Is(err, store.ErrPurchaseMismatch) {
		t.Errorf("wrong account: error = %v, want ErrPurchaseMismatch", err)
	}

	// Same id under a different kind is a different purchase.
	_, err = s.Commit(ctx, store.ResolveParams{
		AccountID: account.ID,
		Ref:       models.RentalRef(params.Ref.ID),
	})
	if !errors.Is(err, store.ErrPurchaseNotFound) {
		t.Errorf("wrong kind: error = %v, want ErrPurchaseNotFound", err)
	}
}

func TestFreezeValidation(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "100")

	params := freezeParams(account.ID, "20")
	params.Amount = decimal.Zero
	if _, err := s.Freeze(ctx, params); !errors.Is(err, store.ErrInvalidAmount) {
		t.Errorf("zero amount: error = %v, want ErrInvalidAmount", err)
	}

	params = freezeParams(account.ID, "20")
	params.Amount = decimal.RequireFromString("-5")
	if _, err := s.Freeze(ctx, params); !errors.Is(err, store.ErrInvalidAmount) {
		t.Errorf("negative amount: error = %v, want ErrInvalidAmount", err)
	}

	params = freezeParams("missing-account", "20")
	if _, err := s.Freeze(ctx, params); !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("missing account: error = %v, want ErrAccountNotFound", err)
	}

	params = freezeParams(account.ID, "20")
	params.Ref.Kind = "subscription"
	if _, err := s.Freeze(ctx, params); !errors.Is(err, store.ErrPurchaseNotFound) {
		t.Errorf("bad kind: error = %v, want ErrPurchaseNotFound", err)
	}
}

func TestCreditAdmin(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "0")

	_, err := s.CreditAdmin(ctx, store.CreditParams{
		AccountID: account.ID,
		Amount:    decimal.RequireFromString("50"),
		Reason:    "promo credit",
	})
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	assertBalances(t, s, account.ID, "50", "0")

	_, err = s.CreditAdmin(ctx, store.CreditParams{
		AccountID: account.ID,
		Amount:    decimal.RequireFromString("-1"),
		Reason:    "bad",
	})
	if !errors.Is(err, store.ErrInvalidAmount) {
		t.Errorf("negative credit: error = %v, want ErrInvalidAmount", err)
	}

	_, err = s.CreditAdmin(ctx, store.CreditParams{
		AccountID: account.ID,
		Amount:    decimal.RequireFromString("5"),
		Reason:    "   ",
	})
	if !errors.Is(err, store.ErrEmptyReason) {
		t.Errorf("blank reason: error = %v, want ErrEmptyReason", err)
	}
}

func TestClaimExpiredAndRefund(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "100")
	params := freezeParams(account.ID, "20")
	params.ExpiresAt = time.Now().Add(-time.Minute)
	if _, err := s.Freeze(ctx, params); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}

	now := time.Now()
	expired, err := s.ListExpiredPurchases(ctx, now, 10)
	if err != nil {
		t.Fatalf("failed to list expired purchases: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expired count = %d, want 1", len(expired))
	}

	claimed, err := s.ClaimExpired(ctx, params.Ref, now)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if !claimed {
		t.Fatal("first claim lost")
	}

	// The claim is exclusive.
	claimed, err = s.ClaimExpired(ctx, params.Ref, now)
	if err != nil {
		t.Fatalf("second claim errored: %v", err)
	}
	if claimed {
		t.Error("second claim unexpectedly won")
	}

	// A claimed purchase can no longer be committed.
	_, err = s.Commit(ctx, store.ResolveParams{AccountID: account.ID, Ref: params.Ref})
	if !errors.Is(err, store.ErrPurchaseNotOpen) {
		t.Errorf("commit after claim: error = %v, want ErrPurchaseNotOpen", err)
	}

	// But its freeze is still refundable, keeping the timeout status.
	_, err = s.Refund(ctx, store.ResolveParams{
		AccountID: account.ID,
		Ref:       params.Ref,
		Outcome:   models.StatusTimeout,
		Reason:    "expired unresolved",
	})
	if err != nil {
		t.Fatalf("refund of claimed purchase failed: %v", err)
	}
	assertBalances(t, s, account.ID, "100", "0")

	purchase, err := s.GetPurchase(ctx, params.Ref)
	if err != nil {
		t.Fatalf("failed to load purchase: %v", err)
	}
	if purchase.Status != models.StatusTimeout {
		t.Errorf("purchase status = %s, want timeout", purchase.Status)
	}
}

func TestExpiredListingOrderAndLimit(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "100")
	base := time.Now().Add(-time.Hour)
	var refs []models.PurchaseRef
	for i := 0; i < 3; i++ {
		params := freezeParams(account.ID, "5")
		params.ExpiresAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := s.Freeze(ctx, params); err != nil {
			t.Fatalf("freeze %d failed: %v", i, err)
		}
		refs = append(refs, params.Ref)
	}

	expired, err := s.ListExpiredPurchases(ctx, time.Now(), 2)
	if err != nil {
		t.Fatalf("failed to list expired purchases: %v", err)
	}
	if len(expired) != 2 {
		t.Fatalf("expired count = %d, want 2", len(expired))
	}
	// Oldest deadline first.
	if expired[0].ID != refs[0].ID || expired[1].ID != refs[1].ID {
		t.Errorf("expired order = [%s %s], want [%s %s]",
			expired[0].ID, expired[1].ID, refs[0].ID, refs[1].ID)
	}
}

func TestCorrectDrift(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "100")
	params := freezeParams(account.ID, "20")
	if _, err := s.Freeze(ctx, params); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}

	// Aligned account: correction is a no-op and logs nothing.
	result, err := s.CorrectDrift(ctx, store.CorrectDriftParams{
		AccountID: account.ID,
		Epsilon:   decimal.Zero,
		Reason:    "scheduled reconciliation",
	})
	if err != nil {
		t.Fatalf("correct drift failed: %v", err)
	}
	if !result.AlreadyProcessed {
		t.Error("aligned account reported as corrected")
	}

	// Inject a phantom freeze behind the engine's back. The schema guard
	// still holds (0 <= 30 <= 100) so only the reconciler can see it.
	_, err = s.db.Exec(`UPDATE accounts SET frozen_balance = '30' WHERE id = ?`, account.ID)
	if err != nil {
		t.Fatalf("failed to inject drift: %v", err)
	}

	result, err = s.CorrectDrift(ctx, store.CorrectDriftParams{
		AccountID: account.ID,
		Epsilon:   decimal.Zero,
		Reason:    "scheduled reconciliation",
	})
	if err != nil {
		t.Fatalf("correct drift failed: %v", err)
	}
	if result.AlreadyProcessed {
		t.Error("drifted account reported as aligned")
	}
	if !result.Amount.Equal(decimal.RequireFromString("10")) {
		t.Errorf("correction amount = %s, want 10", result.Amount)
	}
	assertBalances(t, s, account.ID, "100", "20")

	ops, err := s.ListOperations(ctx, account.ID, 10, 0)
	if err != nil {
		t.Fatalf("failed to list operations: %v", err)
	}
	corrections := 0
	for _, op := range ops {
		if op.Type == models.OpCorrectDrift {
			corrections++
		}
	}
	if corrections != 1 {
		t.Errorf("correct_drift operation count = %d, want 1", corrections)
	}
}

func TestCorrectDriftRequiresReason(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()

	account := createFundedAccount(t, s, "100")
	_, err := s.CorrectDrift(context.Background(), store.CorrectDriftParams{
		AccountID: account.ID,
		Epsilon:   decimal.Zero,
	})
	if !errors.Is(err, store.ErrEmptyReason) {
		t.Errorf("error = %v, want ErrEmptyReason", err)
	}
}

func TestOperationLogSnapshots(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "100")
	params := freezeParams(account.ID, "20")
	if _, err := s.Freeze(ctx, params); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}
	if _, err := s.Commit(ctx, store.ResolveParams{AccountID: account.ID, Ref: params.Ref}); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	ops, err := s.ListOperations(ctx, account.ID, 10, 0)
	if err != nil {
		t.Fatalf("failed to list operations: %v", err)
	}

	// Each entry must snapshot before and after consistently with its type.
	for _, op := range ops {
		switch op.Type {
		case models.OpFreeze:
			if !op.BalanceAfter.Equal(op.BalanceBefore) {
				t.Errorf("freeze changed balance: %s -> %s", op.BalanceBefore, op.BalanceAfter)
			}
			if !op.FrozenAfter.Sub(op.FrozenBefore).Equal(op.Amount) {
				t.Errorf("freeze frozen delta = %s, want %s", op.FrozenAfter.Sub(op.FrozenBefore), op.Amount)
			}
		case models.OpCommit:
			if !op.BalanceBefore.Sub(op.BalanceAfter).Equal(op.Amount) {
				t.Errorf("commit balance delta = %s, want %s", op.BalanceBefore.Sub(op.BalanceAfter), op.Amount)
			}
			if !op.FrozenBefore.Sub(op.FrozenAfter).Equal(op.Amount) {
				t.Errorf("commit frozen delta = %s, want %s", op.FrozenBefore.Sub(op.FrozenAfter), op.Amount)
			}
		}
	}
}

func TestOperationLogIsAppendOnly(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	account := createFundedAccount(t, s, "100")

	if _, err := s.db.Exec(`UPDATE balance_operations SET amount = '999' WHERE account_id = ?`, account.ID); err == nil {
		t.Error("update of balance_operations unexpectedly succeeded")
	}
	if _, err := s.db.Exec(`DELETE FROM balance_operations WHERE account_id = ?`, account.ID); err == nil {
		t.Error("delete from balance_operations unexpectedly succeeded")
	}

	ops, err := s.ListOperations(ctx, account.ID, 10, 0)
	if err != nil {
		t.Fatalf("failed to list operations: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("operation count = %d, want 1", len(ops))
	}
}

func TestDuplicateAccount(t *testing.T) {
	s, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := s.CreateAccount(ctx, "acct-1", "First", "same@example.com"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	_, err := s.CreateAccount(ctx, "acct-2", "Second", "same@example.com")
	if !errors.Is(err, store.ErrDuplicateAccount) {
		t.Errorf("error = %v, want ErrDuplicateAccount", err)
	}
}
