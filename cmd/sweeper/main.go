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
	"os/signal"
	"syscall"

	"sms-wallet-go/internal/common"
	"sms-wallet-go/internal/config"
	"sms-wallet-go/internal/sweeper"

	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "Run a single sweep pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledger, err := common.InitializeStore(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize ledger store", zap.Error(err))
	}
	defer ledger.Close()

	sw := sweeper.New(ledger, sweeper.Config{
		Interval:  cfg.Sweeper.Interval,
		BatchSize: cfg.Sweeper.BatchSize,
	})

	if *once {
		report, err := sw.Sweep(ctx)
		if err != nil {
			zap.L().Fatal("Sweep pass failed", zap.Error(err))
		}
		fmt.Printf("Sweep finished: scanned=%d claimed=%d refunded=%d (total %s) skipped=%d errors=%d\n",
			report.Scanned, report.Claimed, report.Refunded,
			report.RefundedTotal.String(), report.Skipped, report.Errors)
		if report.Errors > 0 {
			os.Exit(1)
		}
		return
	}

	sw.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	zap.L().Info("Received shutdown signal", zap.String("signal", sig.String()))

	sw.Stop()
}
