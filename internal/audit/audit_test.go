package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"sms-wallet-go/internal/database"
	"sms-wallet-go/internal/models"
	"sms-wallet-go/internal/store"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// File-backed database: the test needs a second raw connection to plant
// drift the engine would never produce on its own.
func setupTestStore(t *testing.T) (*database.Service, *sql.DB, func()) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "audit_test.db")
	cfg := models.DatabaseConfig{
		Backend:         "sqlite",
		Path:            path,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
	}

	service, err := database.NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		service.Close()
		t.Fatalf("failed to open raw connection: %v", err)
	}

	return service, raw, func() {
		raw.Close()
		service.Close()
	}
}

func setupDriftedAccount(t *testing.T, s *database.Service, raw *sql.DB) string {
	t.Helper()
	ctx := context.Background()

	id := uuid.New().String()
	if _, err := s.CreateAccount(ctx, id, "Audit Test", id+"@example.com"); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	if _, err := s.CreditAdmin(ctx, store.CreditParams{
		AccountID: id,
		Amount:    decimal.RequireFromString("100"),
		Reason:    "test funding",
	}); err != nil {
		t.Fatalf("failed to fund account: %v", err)
	}
	if _, err := s.Freeze(ctx, store.FreezeParams{
		AccountID: id,
		Ref:       models.ActivationRef(uuid.New().String()),
		Amount:    decimal.RequireFromString("20"),
		ExpiresAt: time.Now().Add(time.Hour),
		Reason:    "number purchase",
	}); err != nil {
		t.Fatalf("freeze failed: %v", err)
	}

	// Phantom freeze, injected behind the engine's back.
	if _, err := raw.Exec(`UPDATE accounts SET frozen_balance = '35' WHERE id = ?`, id); err != nil {
		t.Fatalf("failed to inject drift: %v", err)
	}
	return id
}

func TestRunDetectsDrift(t *testing.T) {
	s, raw, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	accountID := setupDriftedAccount(t, s, raw)

	auditor := New(s, decimal.Zero)
	report, err := auditor.Run(ctx)
	if err != nil {
		t.Fatalf("audit run failed: %v", err)
	}

	if len(report.Drifted) != 1 {
		t.Fatalf("drifted count = %d, want 1", len(report.Drifted))
	}
	drifted := report.Drifted[0]
	if drifted.AccountID != accountID {
		t.Errorf("drifted account = %s, want %s", drifted.AccountID, accountID)
	}
	if !drifted.Drift().Equal(decimal.RequireFromString("15")) {
		t.Errorf("drift = %s, want 15", drifted.Drift())
	}
	if report.Repaired != 0 {
		t.Errorf("detection-only run repaired %d accounts", report.Repaired)
	}

	// Run must not have fixed anything.
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("failed to load account: %v", err)
	}
	if !account.FrozenBalance.Equal(decimal.RequireFromString("35")) {
		t.Errorf("frozen_balance = %s, want untouched 35", account.FrozenBalance)
	}
}

func TestRunToleratesDriftWithinEpsilon(t *testing.T) {
	s, raw, cleanup := setupTestStore(t)
	defer cleanup()

	setupDriftedAccount(t, s, raw)

	auditor := New(s, decimal.RequireFromString("20"))
	report, err := auditor.Run(context.Background())
	if err != nil {
		t.Fatalf("audit run failed: %v", err)
	}
	if len(report.Drifted) != 0 {
		t.Errorf("drifted count = %d, want 0 within epsilon", len(report.Drifted))
	}
}

func TestRepairCorrectsDrift(t *testing.T) {
	s, raw, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	accountID := setupDriftedAccount(t, s, raw)

	auditor := New(s, decimal.Zero)
	report, err := auditor.Repair(ctx, "scheduled reconciliation")
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	if report.Repaired != 1 {
		t.Errorf("repaired = %d, want 1", report.Repaired)
	}

	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("failed to load account: %v", err)
	}
	if !account.FrozenBalance.Equal(decimal.RequireFromString("20")) {
		t.Errorf("frozen_balance = %s, want 20", account.FrozenBalance)
	}

	// The repair must appear in the operation log.
	ops, err := s.ListOperations(ctx, accountID, 10, 0)
	if err != nil {
		t.Fatalf("failed to list operations: %v", err)
	}
	found := false
	for _, op := range ops {
		if op.Type == models.OpCorrectDrift {
			found = true
			if !op.Amount.Equal(decimal.RequireFromString("15")) {
				t.Errorf("correction amount = %s, want 15", op.Amount)
			}
		}
	}
	if !found {
		t.Error("correct_drift operation not logged")
	}

	// A second pass finds nothing left to fix.
	report, err = auditor.Repair(ctx, "scheduled reconciliation")
	if err != nil {
		t.Fatalf("second repair failed: %v", err)
	}
	if len(report.Drifted) != 0 || report.Repaired != 0 {
		t.Errorf("second repair drifted=%d repaired=%d, want 0/0", len(report.Drifted), report.Repaired)
	}
}
