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

const (
	// Account queries
	queryGetAccount = `
		SELECT id, name, email, balance, frozen_balance, version, created_at, updated_at
		FROM accounts
		WHERE id = ?`

	queryGetAccountByEmail = `
		SELECT id, name, email, balance, frozen_balance, version, created_at, updated_at
		FROM accounts
		WHERE email = ?`

	queryListAccounts = `
		SELECT id, name, email, balance, frozen_balance, version, created_at, updated_at
		FROM accounts
		ORDER BY created_at`

	queryInsertAccount = `
		INSERT INTO accounts (id, name, email) VALUES (?, ?, ?)`

	// queryUpdateAccountBalances is the single write path for the balance
	// columns. The version predicate makes the read-modify-write a CAS:
	// zero rows affected means another operation won the race.
	queryUpdateAccountBalances = `
		UPDATE accounts
		SET balance = ?, frozen_balance = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`

	// Purchase queries
	queryGetPurchase = `
		SELECT id, kind, account_id, price, frozen_amount, status, service, country,
		       expires_at, created_at, updated_at
		FROM purchases
		WHERE id = ? AND kind = ?`

	queryInsertPurchase = `
		INSERT INTO purchases (id, kind, account_id, price, frozen_amount, status, service, country, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	querySettlePurchase = `
		UPDATE purchases
		SET frozen_amount = '0', status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND kind = ? AND CAST(frozen_amount AS REAL) > 0 AND status != 'completed'`

	// Includes 'timeout': a claimed row whose refund never landed still
	// holds its freeze and must be picked up by the next pass.
	queryListExpiredPurchases = `
		SELECT id, kind, account_id, price, frozen_amount, status, service, country,
		       expires_at, created_at, updated_at
		FROM purchases
		WHERE status IN ('pending', 'waiting', 'timeout')
		  AND CAST(frozen_amount AS REAL) > 0
		  AND expires_at < ?
		ORDER BY expires_at ASC
		LIMIT ?`

	// queryClaimExpired is the sweeper's first phase: an atomic status
	// transition out of the open states. Losing the claim (zero rows)
	// means another process already resolved or claimed the purchase.
	queryClaimExpired = `
		UPDATE purchases
		SET status = 'timeout', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND kind = ? AND status IN ('pending', 'waiting') AND expires_at < ?`

	queryOpenFrozenAmounts = `
		SELECT frozen_amount
		FROM purchases
		WHERE account_id = ? AND CAST(frozen_amount AS REAL) > 0`

	// Operation log queries
	queryInsertOperation = `
		INSERT INTO balance_operations (
			id, account_id, purchase_id, purchase_kind, operation_type, amount,
			balance_before, balance_after, frozen_before, frozen_after, reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetFreezeOperation = `
		SELECT amount, balance_after, frozen_after
		FROM balance_operations
		WHERE purchase_id = ? AND purchase_kind = ? AND operation_type = 'freeze'
		LIMIT 1`

	queryGetResolvingOperation = `
		SELECT operation_type, amount, balance_after, frozen_after
		FROM balance_operations
		WHERE purchase_id = ? AND purchase_kind = ? AND operation_type IN ('commit', 'refund')
		LIMIT 1`

	queryListOperations = `
		SELECT id, account_id, COALESCE(purchase_id, ''), operation_type, amount,
		       balance_before, balance_after, frozen_before, frozen_after,
		       COALESCE(reason, ''), created_at
		FROM balance_operations
		WHERE account_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	// Reconciliation queries
	queryListFrozenAccountIds = `
		SELECT id FROM accounts
		WHERE CAST(frozen_balance AS REAL) > 0
		UNION
		SELECT account_id FROM purchases
		WHERE CAST(frozen_amount AS REAL) > 0`
)
