package store

import (
	"context"
	"errors"
	"time"

	"sms-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrPurchaseNotFound      = errors.New("purchase not found")
	ErrPurchaseMismatch      = errors.New("purchase does not belong to account")
	ErrPurchaseNotOpen       = errors.New("purchase already resolved")
	ErrPurchaseAlreadyFrozen = errors.New("purchase already frozen")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrEmptyReason           = errors.New("reason cannot be empty")
	ErrIntegrityFault        = errors.New("ledger integrity fault")

	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrDuplicateAccount       = errors.New("account already exists")
)

// FreezeParams contains the parameters for earmarking funds against a
// new purchase. Amount becomes both the purchase price and its frozen
// amount; ExpiresAt is the deadline after which the sweeper refunds it.
type FreezeParams struct {
	AccountID string
	Ref       models.PurchaseRef
	Amount    decimal.Decimal
	ExpiresAt time.Time
	Service   string
	Country   string
	Reason    string
}

// ResolveParams contains the parameters for settling an open purchase,
// either by commit (charge) or refund (release).
type ResolveParams struct {
	AccountID string
	Ref       models.PurchaseRef
	// Outcome is the terminal status a refund assigns: StatusTimeout or
	// StatusCancelled. Ignored by Commit.
	Outcome models.PurchaseStatus
	Reason  string
}

// CreditParams contains the parameters for a manual balance increase.
type CreditParams struct {
	AccountID string
	Amount    decimal.Decimal
	Reason    string
}

// CorrectDriftParams contains the parameters for the audited frozen
// balance repair. Epsilon is the tolerated divergence below which the
// repair is a no-op.
type CorrectDriftParams struct {
	AccountID string
	Epsilon   decimal.Decimal
	Reason    string
}

// OperationResult is what every ledger primitive returns. When a retry
// hits an already-settled purchase the recorded result is replayed with
// AlreadyProcessed set; balances are never mutated twice.
type OperationResult struct {
	AlreadyProcessed   bool
	OperationType      models.OperationType
	Amount             decimal.Decimal
	BalanceAfter       decimal.Decimal
	FrozenBalanceAfter decimal.Decimal
}

// LedgerStore defines the contract that every backend (SQLite, Postgres)
// must satisfy. The five ledger primitives are the only code paths that
// mutate balance, frozen_balance, or frozen_amount; each runs as one
// atomic storage transaction that also appends its operation-log entry.
type LedgerStore interface {
	// --- Accounts ---
	CreateAccount(ctx context.Context, id, name, email string) (*models.Account, error)
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)

	// --- Ledger engine ---
	Freeze(ctx context.Context, params FreezeParams) (*OperationResult, error)
	Commit(ctx context.Context, params ResolveParams) (*OperationResult, error)
	Refund(ctx context.Context, params ResolveParams) (*OperationResult, error)
	CreditAdmin(ctx context.Context, params CreditParams) (*OperationResult, error)
	CorrectDrift(ctx context.Context, params CorrectDriftParams) (*OperationResult, error)

	// --- Purchases ---
	GetPurchase(ctx context.Context, ref models.PurchaseRef) (*models.Purchase, error)
	ListExpiredPurchases(ctx context.Context, now time.Time, limit int) ([]models.Purchase, error)
	ClaimExpired(ctx context.Context, ref models.PurchaseRef, now time.Time) (bool, error)

	// --- Operation log ---
	ListOperations(ctx context.Context, accountID string, limit, offset int) ([]models.Operation, error)

	// --- Reconciliation ---
	ListFrozenAccounts(ctx context.Context) ([]models.AccountDrift, error)

	// --- Lifecycle ---
	Close()
}
