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

package database

import (
	"context"
	"fmt"

	"sms-wallet-go/internal/models"
	"sms-wallet-go/internal/store"

	"database/sql"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	db     *sql.DB
	engine *LedgerEngine
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	engine := NewLedgerEngine(db)
	service := &Service{db: db, engine: engine}
	if err := service.initSchema(cfg.SeedDemoAccounts); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Ledger database initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema(seedDemoAccounts bool) error {
	schema := `
	-- Account Wallets Table (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		balance TEXT NOT NULL DEFAULT '0',
		frozen_balance TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);

	-- Purchases Table (open freezes and their outcomes)
	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT NOT NULL,
		kind TEXT NOT NULL,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		price TEXT NOT NULL,
		frozen_amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		service TEXT,
		country TEXT,
		expires_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id, kind)
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_account_id ON purchases(account_id);
	CREATE INDEX IF NOT EXISTS idx_purchases_expiry ON purchases(status, expires_at);

	-- Balance Operations Table (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS balance_operations (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		purchase_id TEXT,
		purchase_kind TEXT,
		operation_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		frozen_before TEXT NOT NULL,
		frozen_after TEXT NOT NULL,
		reason TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_operations_account ON balance_operations(account_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_operations_purchase ON balance_operations(purchase_id, purchase_kind, operation_type);

	-- Storage-level guard: the balance columns may never violate
	-- 0 <= frozen_balance <= balance, no matter which code path writes.
	CREATE TRIGGER IF NOT EXISTS trg_accounts_balance_guard
	BEFORE UPDATE OF balance, frozen_balance ON accounts
	WHEN CAST(NEW.balance AS REAL) < 0
	  OR CAST(NEW.frozen_balance AS REAL) < 0
	  OR CAST(NEW.frozen_balance AS REAL) > CAST(NEW.balance AS REAL) + 1e-9
	BEGIN
		SELECT RAISE(ABORT, 'balance invariant violated');
	END;

	-- The operation log is append-only.
	CREATE TRIGGER IF NOT EXISTS trg_operations_no_update
	BEFORE UPDATE ON balance_operations
	BEGIN
		SELECT RAISE(ABORT, 'balance_operations is append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS trg_operations_no_delete
	BEFORE DELETE ON balance_operations
	BEGIN
		SELECT RAISE(ABORT, 'balance_operations is append-only');
	END;
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Insert demo accounts for local testing if configured to do so
	if seedDemoAccounts {
		accounts := []struct {
			id    string
			name  string
			email string
		}{
			{uuid.New().String(), "Alice Johnson", "alice.johnson@example.com"},
			{uuid.New().String(), "Bob Smith", "bob.smith@example.com"},
			{uuid.New().String(), "Carol Williams", "carol.williams@example.com"},
		}

		for _, account := range accounts {
			_, err := s.db.Exec(`INSERT OR IGNORE INTO accounts (id, name, email) VALUES (?, ?, ?)`,
				account.id, account.name, account.email)
			if err != nil {
				zap.L().Error("Failed to insert demo account", zap.String("name", account.name), zap.Error(err))
			} else {
				zap.L().Info("Demo account created", zap.String("id", account.id), zap.String("name", account.name))
			}
		}
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
