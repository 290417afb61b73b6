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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FreezeRequest is the payload for POST /freeze.
type FreezeRequest struct {
	AccountID string          `json:"account_id"`
	Purchase  PurchaseRef     `json:"purchase"`
	Amount    decimal.Decimal `json:"amount"`
	ExpiresAt time.Time       `json:"expires_at"`
	Service   string          `json:"service,omitempty"`
	Country   string          `json:"country,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// ResolveRequest is the payload for POST /commit and POST /refund.
type ResolveRequest struct {
	AccountID string      `json:"account_id"`
	Purchase  PurchaseRef `json:"purchase"`
	// Outcome only applies to refund: "timeout" or "cancelled".
	Outcome string `json:"outcome,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// CreditRequest is the payload for POST /accounts/{id}/credit.
type CreditRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// CreateAccountRequest is the payload for POST /accounts.
type CreateAccountRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OperationResponse is the canonical response for the ledger primitives.
type OperationResponse struct {
	Success            bool            `json:"success"`
	AlreadyProcessed   bool            `json:"already_processed,omitempty"`
	OperationType      OperationType   `json:"operation_type"`
	Amount             decimal.Decimal `json:"amount"`
	BalanceAfter       decimal.Decimal `json:"balance_after"`
	FrozenBalanceAfter decimal.Decimal `json:"frozen_balance_after"`
}

// AccountResponse is the read shape for GET /accounts/{id}.
type AccountResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Balance       decimal.Decimal `json:"balance"`
	FrozenBalance decimal.Decimal `json:"frozen_balance"`
	Available     decimal.Decimal `json:"available"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OperationRecord is one operation-log row as returned by the API.
type OperationRecord struct {
	ID            string          `json:"id"`
	PurchaseID    string          `json:"purchase_id,omitempty"`
	Type          OperationType   `json:"operation_type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	FrozenBefore  decimal.Decimal `json:"frozen_before"`
	FrozenAfter   decimal.Decimal `json:"frozen_after"`
	Reason        string          `json:"reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
