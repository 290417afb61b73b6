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
	"errors"
	"flag"
	"fmt"

	"sms-wallet-go/internal/common"
	"sms-wallet-go/internal/config"
	"sms-wallet-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	seedFile := flag.String("seed", "accounts.yaml", "Path to the account seed file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()

	// Opening the store creates the schema.
	ledger, err := common.InitializeStore(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize ledger store", zap.Error(err))
	}
	defer ledger.Close()

	common.PrintHeader("WALLET SETUP", common.DefaultWidth)

	seeds, err := common.LoadSeedAccounts(*seedFile)
	if err != nil {
		zap.L().Fatal("Failed to load seed accounts", zap.String("file", *seedFile), zap.Error(err))
	}

	created := 0
	for i, seed := range seeds {
		isLast := i == len(seeds)-1

		account, err := ledger.CreateAccount(ctx, uuid.New().String(), seed.Name, seed.Email)
		if errors.Is(err, store.ErrDuplicateAccount) {
			fmt.Printf("%s %s (%s) already exists, skipping\n", common.BoxPrefix(isLast), seed.Name, seed.Email)
			continue
		}
		if err != nil {
			zap.L().Fatal("Failed to create account",
				zap.String("name", seed.Name),
				zap.String("email", seed.Email),
				zap.Error(err))
		}
		created++

		// Initial balances go through the engine so they land in the log.
		if seed.Balance != "" {
			amount, err := decimal.NewFromString(seed.Balance)
			if err != nil {
				zap.L().Fatal("Invalid seed balance",
					zap.String("email", seed.Email),
					zap.String("balance", seed.Balance),
					zap.Error(err))
			}
			if amount.IsPositive() {
				if _, err := ledger.CreditAdmin(ctx, store.CreditParams{
					AccountID: account.ID,
					Amount:    amount,
					Reason:    "initial balance",
				}); err != nil {
					zap.L().Fatal("Failed to credit initial balance",
						zap.String("account_id", account.ID),
						zap.Error(err))
				}
			}
		}

		fmt.Printf("%s %s (%s) created with balance %s\n",
			common.BoxPrefix(isLast), seed.Name, seed.Email, seed.Balance)
	}

	common.PrintFooter(fmt.Sprintf("Setup complete: %d accounts created", created), common.DefaultWidth)
}
