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

	"sms-wallet-go/internal/common"
	"sms-wallet-go/internal/config"
	"sms-wallet-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	accountID := flag.String("account", "", "Account id to credit (or use -email)")
	email := flag.String("email", "", "Account email to credit")
	amount := flag.String("amount", "", "Amount to credit")
	reason := flag.String("reason", "", "Reason recorded in the operation log (required)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *accountID == "" && *email == "" {
		zap.L().Fatal("Either -account or -email is required")
	}
	if *amount == "" {
		zap.L().Fatal("-amount is required")
	}
	if *reason == "" {
		zap.L().Fatal("-reason is required, credits are always audited")
	}

	value, err := decimal.NewFromString(*amount)
	if err != nil {
		zap.L().Fatal("Invalid amount", zap.String("amount", *amount), zap.Error(err))
	}

	ctx := context.Background()

	ledger, err := common.InitializeStore(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize ledger store", zap.Error(err))
	}
	defer ledger.Close()

	id := *accountID
	if id == "" {
		account, err := ledger.GetAccountByEmail(ctx, *email)
		if err != nil {
			zap.L().Fatal("Failed to look up account by email", zap.String("email", *email), zap.Error(err))
		}
		id = account.ID
	}

	result, err := ledger.CreditAdmin(ctx, store.CreditParams{
		AccountID: id,
		Amount:    value,
		Reason:    *reason,
	})
	if err != nil {
		zap.L().Fatal("Credit failed", zap.String("account_id", id), zap.Error(err))
	}

	fmt.Printf("Credited %s to account %s, balance now %s\n",
		value.String(), id, result.BalanceAfter.String())
}
