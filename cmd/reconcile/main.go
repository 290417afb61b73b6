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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"sms-wallet-go/internal/audit"
	"sms-wallet-go/internal/common"
	"sms-wallet-go/internal/config"
	"sms-wallet-go/internal/models"
	"sms-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func printDrift(drift models.AccountDrift, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	fmt.Printf("%s %s: frozen=%s expected=%s drift=%s (open purchases: %d)\n",
		symbol,
		drift.AccountID,
		drift.FrozenBalance.String(),
		drift.ExpectedFrozen.String(),
		drift.Drift().String(),
		drift.OpenPurchases)
}

func main() {
	repair := flag.Bool("repair", false, "Correct drifted accounts through the ledger engine")
	accountID := flag.String("account", "", "Limit the check to a single account id")
	reason := flag.String("reason", "manual reconciliation", "Reason recorded with each correction")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()

	ledger, err := common.InitializeStore(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize ledger store", zap.Error(err))
	}
	defer ledger.Close()

	epsilon, err := decimal.NewFromString(cfg.Audit.Epsilon)
	if err != nil {
		zap.L().Fatal("Invalid audit epsilon", zap.String("epsilon", cfg.Audit.Epsilon), zap.Error(err))
	}

	if *accountID != "" {
		runSingle(ctx, ledger, *accountID, epsilon, *repair, *reason)
		return
	}

	auditor := audit.New(ledger, epsilon)

	common.PrintHeader("FROZEN BALANCE RECONCILIATION", common.DefaultWidth)

	var report *models.DriftReport
	if *repair {
		report, err = auditor.Repair(ctx, *reason)
	} else {
		report, err = auditor.Run(ctx)
	}
	if err != nil {
		zap.L().Fatal("Reconciliation failed", zap.Error(err))
	}

	fmt.Printf("\nAccounts checked: %d\n", report.AccountsChecked)
	if len(report.Drifted) == 0 {
		fmt.Println("No drift detected.")
	} else {
		fmt.Printf("Drifted accounts: %d\n\n", len(report.Drifted))
		for i, drift := range report.Drifted {
			printDrift(drift, i == len(report.Drifted)-1)
		}
	}
	if *repair {
		fmt.Printf("\nRepaired: %d\n", report.Repaired)
	}

	common.PrintFooter("Reconciliation complete", common.DefaultWidth)

	if len(report.Drifted) > 0 && !*repair {
		os.Exit(1)
	}
}

func runSingle(ctx context.Context, ledger store.LedgerStore, accountID string, epsilon decimal.Decimal, repair bool, reason string) {
	account, err := ledger.GetAccount(ctx, accountID)
	if err != nil {
		zap.L().Fatal("Failed to load account", zap.String("account_id", accountID), zap.Error(err))
	}

	fmt.Printf("Account %s: balance=%s frozen=%s\n",
		account.ID, account.Balance.String(), account.FrozenBalance.String())

	if !repair {
		return
	}

	result, err := ledger.CorrectDrift(ctx, store.CorrectDriftParams{
		AccountID: accountID,
		Epsilon:   epsilon,
		Reason:    reason,
	})
	if err != nil {
		zap.L().Fatal("Drift correction failed", zap.Error(err))
	}
	if result.AlreadyProcessed {
		fmt.Println("No drift to correct.")
	} else {
		fmt.Printf("Corrected by %s, frozen balance now %s\n",
			result.Amount.String(), result.FrozenBalanceAfter.String())
	}
}
