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

package sweeper

import (
	"context"
	"errors"
	"time"

	"sms-wallet-go/internal/models"
	"sms-wallet-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	sweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_sweep_runs_total",
		Help: "Number of completed sweep passes.",
	})
	sweepRefunds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_sweep_refunds_total",
		Help: "Number of expired purchases refunded by the sweeper.",
	})
	sweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_sweep_errors_total",
		Help: "Number of purchases the sweeper failed to settle.",
	})
)

type Config struct {
	// Interval between sweep passes.
	Interval time.Duration
	// BatchSize caps how many expired purchases one query fetches.
	BatchSize int
}

// Sweeper periodically finds purchases whose deadline passed without a
// resolution and refunds their freezes. Each purchase is claimed first,
// then settled, so a crash between the two leaves a claimed row that the
// next pass (or the reconciler) refunds.
type Sweeper struct {
	store    store.LedgerStore
	interval time.Duration
	batch    int
	stopChan chan struct{}
	doneChan chan struct{}
}

func New(ledger store.LedgerStore, cfg Config) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 90 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	return &Sweeper{
		store:    ledger,
		interval: interval,
		batch:    batch,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	zap.L().Info("Starting expiry sweeper",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batch))
	go s.pollLoop(ctx)
}

// Stop gracefully stops the sweeper, waiting for an in-flight pass.
func (s *Sweeper) Stop() {
	zap.L().Info("Stopping expiry sweeper")
	close(s.stopChan)
	<-s.doneChan
	zap.L().Info("Expiry sweeper stopped")
}

func (s *Sweeper) pollLoop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	report, err := s.Sweep(ctx)
	if err != nil {
		zap.L().Error("Sweep pass failed", zap.Error(err))
		return
	}
	if report.Scanned > 0 {
		zap.L().Info("Sweep pass finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("claimed", report.Claimed),
			zap.Int("refunded", report.Refunded),
			zap.String("refunded_total", report.RefundedTotal.String()),
			zap.Int("skipped", report.Skipped),
			zap.Int("errors", report.Errors))
	}
}

// Sweep runs one full pass: batches of expired purchases are claimed and
// refunded, oldest deadlines first, until a batch comes back short. One
// failing purchase never aborts the pass.
func (s *Sweeper) Sweep(ctx context.Context) (*models.SweepReport, error) {
	sweepRuns.Inc()
	report := &models.SweepReport{RefundedTotal: decimal.Zero}

	for {
		now := time.Now().UTC()
		expired, err := s.store.ListExpiredPurchases(ctx, now, s.batch)
		if err != nil {
			return report, err
		}
		report.Scanned += len(expired)

		progressBefore := report.Claimed + report.Refunded + report.Skipped

		for _, purchase := range expired {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			s.sweepOne(ctx, purchase, now, report)
		}

		// A short batch means the backlog is drained.
		if len(expired) < s.batch {
			break
		}
		// A full batch that only produced errors would come back
		// identical on the next fetch; stop instead of spinning on it.
		if report.Claimed+report.Refunded+report.Skipped == progressBefore {
			zap.L().Warn("Sweep pass made no progress on a full batch, stopping",
				zap.Int("batch_size", s.batch),
				zap.Int("errors", report.Errors))
			break
		}
	}

	return report, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, purchase models.Purchase, now time.Time, report *models.SweepReport) {
	ref := models.PurchaseRef{Kind: purchase.Kind, ID: purchase.ID}

	// A row already in timeout was claimed by an earlier pass that died
	// before refunding; go straight to the refund.
	if purchase.Status != models.StatusTimeout {
		claimed, err := s.store.ClaimExpired(ctx, ref, now)
		if err != nil {
			report.Errors++
			sweepErrors.Inc()
			zap.L().Error("Failed to claim expired purchase",
				zap.String("purchase", ref.String()),
				zap.Error(err))
			return
		}
		if !claimed {
			// Resolved or claimed elsewhere between listing and claiming.
			report.Skipped++
			return
		}
		report.Claimed++
	}

	result, err := s.store.Refund(ctx, store.ResolveParams{
		AccountID: purchase.AccountID,
		Ref:       ref,
		Outcome:   models.StatusTimeout,
		Reason:    "expired without resolution",
	})
	if err != nil {
		// A claimed but unrefunded purchase still holds its freeze; the
		// next pass picks it up through the refund of claimed rows.
		if errors.Is(err, store.ErrPurchaseNotOpen) {
			report.Skipped++
			return
		}
		report.Errors++
		sweepErrors.Inc()
		zap.L().Error("Failed to refund expired purchase",
			zap.String("purchase", ref.String()),
			zap.String("account_id", purchase.AccountID),
			zap.Error(err))
		return
	}

	if !result.AlreadyProcessed {
		report.Refunded++
		report.RefundedTotal = report.RefundedTotal.Add(result.Amount)
		sweepRefunds.Inc()
		zap.L().Info("Expired purchase refunded",
			zap.String("purchase", ref.String()),
			zap.String("account_id", purchase.AccountID),
			zap.String("amount", result.Amount.String()))
	}
}
