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
	"os"
	"os/signal"
	"syscall"

	"sms-wallet-go/internal/api"
	"sms-wallet-go/internal/common"
	"sms-wallet-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting wallet API",
		zap.String("backend", cfg.Database.Backend),
		zap.String("port", cfg.Server.Port))

	ledger, err := common.InitializeStore(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize ledger store", zap.Error(err))
	}
	defer ledger.Close()

	server := api.NewServer(ledger, cfg.Server)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		zap.L().Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			zap.L().Fatal("HTTP server failed", zap.Error(err))
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Graceful shutdown failed", zap.Error(err))
	}

	zap.L().Info("Wallet API stopped")
}
