package audit

import (
	"context"
	"time"

	"sms-wallet-go/internal/models"
	"sms-wallet-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	auditRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_audit_runs_total",
		Help: "Number of completed reconciliation passes.",
	})
	auditDrifted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wallet_audit_drifted_accounts",
		Help: "Accounts with frozen balance drift found by the last pass.",
	})
	auditRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_audit_repairs_total",
		Help: "Number of drift corrections applied.",
	})
)

// Auditor compares each account's frozen_balance against the sum of its
// unsettled purchases' frozen amounts. It reads through the store and
// repairs only through the store's CorrectDrift primitive, so every fix
// lands in the operation log like any other mutation.
type Auditor struct {
	store   store.LedgerStore
	epsilon decimal.Decimal
}

func New(ledger store.LedgerStore, epsilon decimal.Decimal) *Auditor {
	return &Auditor{store: ledger, epsilon: epsilon}
}

// Run performs one reconciliation pass and reports every account whose
// drift exceeds epsilon. It never mutates anything.
func (a *Auditor) Run(ctx context.Context) (*models.DriftReport, error) {
	candidates, err := a.store.ListFrozenAccounts(ctx)
	if err != nil {
		return nil, err
	}

	report := &models.DriftReport{
		AccountsChecked: len(candidates),
		GeneratedAt:     time.Now().UTC(),
	}

	for _, candidate := range candidates {
		if candidate.Drift().Abs().LessThanOrEqual(a.epsilon) {
			continue
		}
		report.Drifted = append(report.Drifted, candidate)
		zap.L().Warn("Frozen balance drift detected",
			zap.String("account_id", candidate.AccountID),
			zap.String("frozen_balance", candidate.FrozenBalance.String()),
			zap.String("expected_frozen", candidate.ExpectedFrozen.String()),
			zap.String("drift", candidate.Drift().String()),
			zap.Int("open_purchases", candidate.OpenPurchases))
	}

	auditRuns.Inc()
	auditDrifted.Set(float64(len(report.Drifted)))
	return report, nil
}

// Repair runs a pass and corrects every drifted account through the
// ledger's CorrectDrift operation.
func (a *Auditor) Repair(ctx context.Context, reason string) (*models.DriftReport, error) {
	report, err := a.Run(ctx)
	if err != nil {
		return nil, err
	}

	for _, drifted := range report.Drifted {
		result, err := a.store.CorrectDrift(ctx, store.CorrectDriftParams{
			AccountID: drifted.AccountID,
			Epsilon:   a.epsilon,
			Reason:    reason,
		})
		if err != nil {
			zap.L().Error("Failed to correct drift",
				zap.String("account_id", drifted.AccountID),
				zap.Error(err))
			continue
		}
		if !result.AlreadyProcessed {
			report.Repaired++
			auditRepairs.Inc()
		}
	}
	return report, nil
}
