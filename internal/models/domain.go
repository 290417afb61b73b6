package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseKind tags a purchase as an activation or a rental. Callers
// always pass the kind together with the provider id, never as parallel
// nullable id fields.
type PurchaseKind string

const (
	KindActivation PurchaseKind = "activation"
	KindRental     PurchaseKind = "rental"
)

// PurchaseStatus is the lifecycle state of a purchase.
type PurchaseStatus string

const (
	StatusPending   PurchaseStatus = "pending"
	StatusWaiting   PurchaseStatus = "waiting"
	StatusCompleted PurchaseStatus = "completed"
	StatusTimeout   PurchaseStatus = "timeout"
	StatusCancelled PurchaseStatus = "cancelled"
)

// OperationType identifies a balance mutation in the operation log.
type OperationType string

const (
	OpFreeze       OperationType = "freeze"
	OpCommit       OperationType = "commit"
	OpRefund       OperationType = "refund"
	OpCreditAdmin  OperationType = "credit_admin"
	OpCorrectDrift OperationType = "correct_drift"
)

// PurchaseRef identifies a purchase by kind and provider id.
type PurchaseRef struct {
	Kind PurchaseKind `json:"kind"`
	ID   string       `json:"id"`
}

func ActivationRef(id string) PurchaseRef {
	return PurchaseRef{Kind: KindActivation, ID: id}
}

func RentalRef(id string) PurchaseRef {
	return PurchaseRef{Kind: KindRental, ID: id}
}

func (r PurchaseRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// Validate checks that the ref carries a known kind and a non-empty id.
func (r PurchaseRef) Validate() error {
	if r.Kind != KindActivation && r.Kind != KindRental {
		return fmt.Errorf("unknown purchase kind %q", r.Kind)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("purchase id cannot be empty")
	}
	return nil
}

// ParsePurchaseRef parses the "kind:id" form used by the CLIs.
func ParsePurchaseRef(s string) (PurchaseRef, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return PurchaseRef{}, fmt.Errorf("invalid purchase ref %q, expected kind:id", s)
	}
	ref := PurchaseRef{Kind: PurchaseKind(parts[0]), ID: parts[1]}
	if err := ref.Validate(); err != nil {
		return PurchaseRef{}, err
	}
	return ref, nil
}

// Account represents a user's wallet (current state - hot data)
type Account struct {
	ID            string          `db:"id"`
	Name          string          `db:"name"`
	Email         string          `db:"email"`
	Balance       decimal.Decimal `db:"balance"`
	FrozenBalance decimal.Decimal `db:"frozen_balance"`
	Version       int64           `db:"version"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// Available returns the balance not earmarked for open purchases.
func (a Account) Available() decimal.Decimal {
	return a.Balance.Sub(a.FrozenBalance)
}

// Purchase represents a bought number awaiting an outcome.
type Purchase struct {
	ID           string          `db:"id"`
	AccountID    string          `db:"account_id"`
	Kind         PurchaseKind    `db:"kind"`
	Price        decimal.Decimal `db:"price"`
	FrozenAmount decimal.Decimal `db:"frozen_amount"`
	Status       PurchaseStatus  `db:"status"`
	Service      string          `db:"service"`
	Country      string          `db:"country"`
	ExpiresAt    time.Time       `db:"expires_at"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// Settled reports whether the purchase's freeze has been resolved.
// A terminal row always has frozen_amount = 0; a row claimed by the
// sweeper but not yet refunded still holds its freeze.
func (p Purchase) Settled() bool {
	return p.FrozenAmount.IsZero()
}

// Operation represents one immutable row of the balance operation log.
type Operation struct {
	ID            string          `db:"id"`
	AccountID     string          `db:"account_id"`
	PurchaseID    string          `db:"purchase_id"`
	Type          OperationType   `db:"operation_type"`
	Amount        decimal.Decimal `db:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`
	FrozenBefore  decimal.Decimal `db:"frozen_before"`
	FrozenAfter   decimal.Decimal `db:"frozen_after"`
	Reason        string          `db:"reason"`
	CreatedAt     time.Time       `db:"created_at"`
}

// SweepReport summarizes one sweeper pass.
type SweepReport struct {
	Scanned       int
	Claimed       int
	Refunded      int
	RefundedTotal decimal.Decimal
	Skipped       int
	Errors        int
}

// AccountDrift describes one account whose frozen_balance diverges from
// the sum of its open purchases' frozen amounts.
type AccountDrift struct {
	AccountID      string
	FrozenBalance  decimal.Decimal
	ExpectedFrozen decimal.Decimal
	OpenPurchases  int
}

// Drift returns frozen_balance - expected. Positive means a phantom
// freeze (funds locked with no open purchase behind them).
func (d AccountDrift) Drift() decimal.Decimal {
	return d.FrozenBalance.Sub(d.ExpectedFrozen)
}

// DriftReport summarizes one reconciliation pass.
type DriftReport struct {
	AccountsChecked int
	Drifted         []AccountDrift
	Repaired        int
	GeneratedAt     time.Time
}
