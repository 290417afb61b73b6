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

package postgres

import (
	"context"
	"fmt"

	"sms-wallet-go/internal/models"
	"sms-wallet-go/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	pool   *pgxpool.Pool
	engine *LedgerEngine
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	if cfg.Dsn == "" {
		return nil, fmt.Errorf("database dsn cannot be empty")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	zap.L().Info("Opening Postgres pool", zap.Int32("max_conns", poolConfig.MaxConns))
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{pool: pool, engine: NewLedgerEngine(pool)}
	if err := service.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Ledger database initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	s.pool.Close()
}

func (s *Service) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		balance NUMERIC(20, 8) NOT NULL DEFAULT 0,
		frozen_balance NUMERIC(20, 8) NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT chk_balance_nonnegative CHECK (balance >= 0),
		CONSTRAINT chk_frozen_within_balance CHECK (frozen_balance >= 0 AND frozen_balance <= balance)
	);

	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT NOT NULL,
		kind TEXT NOT NULL,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		price NUMERIC(20, 8) NOT NULL,
		frozen_amount NUMERIC(20, 8) NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		service TEXT,
		country TEXT,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (id, kind)
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_account_id ON purchases(account_id);
	CREATE INDEX IF NOT EXISTS idx_purchases_expiry ON purchases(status, expires_at);

	CREATE TABLE IF NOT EXISTS balance_operations (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		purchase_id TEXT,
		purchase_kind TEXT,
		operation_type TEXT NOT NULL,
		amount NUMERIC(20, 8) NOT NULL,
		balance_before NUMERIC(20, 8) NOT NULL,
		balance_after NUMERIC(20, 8) NOT NULL,
		frozen_before NUMERIC(20, 8) NOT NULL,
		frozen_after NUMERIC(20, 8) NOT NULL,
		reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_operations_account ON balance_operations(account_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_operations_purchase ON balance_operations(purchase_id, purchase_kind, operation_type);
	`

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return err
	}
	return nil
}

// Ledger engine delegation

func (s *Service) Freeze(ctx context.Context, params store.FreezeParams) (*store.OperationResult, error) {
	return s.engine.Freeze(ctx, params)
}

func (s *Service) Commit(ctx context.Context, params store.ResolveParams) (*store.OperationResult, error) {
	return s.engine.Commit(ctx, params)
}

func (s *Service) Refund(ctx context.Context, params store.ResolveParams) (*store.OperationResult, error) {
	return s.engine.Refund(ctx, params)
}

func (s *Service) CreditAdmin(ctx context.Context, params store.CreditParams) (*store.OperationResult, error) {
	return s.engine.CreditAdmin(ctx, params)
}

func (s *Service) CorrectDrift(ctx context.Context, params store.CorrectDriftParams) (*store.OperationResult, error) {
	return s.engine.CorrectDrift(ctx, params)
}
