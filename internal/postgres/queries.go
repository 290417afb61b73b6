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

// Balance columns are NUMERIC in Postgres; every read casts them to text
// so the decimal parsing stays in Go, same as the SQLite backend.
const (
	// Account queries
	queryGetAccount = `
		SELECT id, name, email, balance::text, frozen_balance::text, version, created_at, updated_at
		FROM accounts
		WHERE id = $1`

	queryGetAccountForUpdate = `
		SELECT id, name, email, balance::text, frozen_balance::text, version, created_at, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE`

	queryGetAccountByEmail = `
		SELECT id, name, email, balance::text, frozen_balance::text, version, created_at, updated_at
		FROM accounts
		WHERE email = $1`

	queryListAccounts = `
		SELECT id, name, email, balance::text, frozen_balance::text, version, created_at, updated_at
		FROM accounts
		ORDER BY created_at`

	queryInsertAccount = `
		INSERT INTO accounts (id, name, email) VALUES ($1, $2, $3)`

	// The row is already locked FOR UPDATE when this runs; the version
	// bump is kept for parity with the SQLite backend's audit trail.
	queryUpdateAccountBalances = `
		UPDATE accounts
		SET balance = $1::numeric, frozen_balance = $2::numeric, version = version + 1, updated_at = NOW()
		WHERE id = $3`

	// Purchase queries
	queryGetPurchase = `
		SELECT id, kind, account_id, price::text, frozen_amount::text, status, service, country,
		       expires_at, created_at, updated_at
		FROM purchases
		WHERE id = $1 AND kind = $2`

	queryGetPurchaseForUpdate = `
		SELECT id, kind, account_id, price::text, frozen_amount::text, status, service, country,
		       expires_at, created_at, updated_at
		FROM purchases
		WHERE id = $1 AND kind = $2
		FOR UPDATE`

	queryInsertPurchase = `
		INSERT INTO purchases (id, kind, account_id, price, frozen_amount, status, service, country, expires_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $9)`

	querySettlePurchase = `
		UPDATE purchases
		SET frozen_amount = 0, status = $1, updated_at = NOW()
		WHERE id = $2 AND kind = $3 AND frozen_amount > 0 AND status != 'completed'`

	// Includes 'timeout': a claimed row whose refund never landed still
	// holds its freeze and must be picked up by the next pass.
	queryListExpiredPurchases = `
		SELECT id, kind, account_id, price::text, frozen_amount::text, status, service, country,
		       expires_at, created_at, updated_at
		FROM purchases
		WHERE status IN ('pending', 'waiting', 'timeout')
		  AND frozen_amount > 0
		  AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2`

	queryClaimExpired = `
		UPDATE purchases
		SET status = 'timeout', updated_at = NOW()
		WHERE id = $1 AND kind = $2 AND status IN ('pending', 'waiting') AND expires_at < $3`

	queryOpenFrozenAmounts = `
		SELECT frozen_amount::text
		FROM purchases
		WHERE account_id = $1 AND frozen_amount > 0`

	// Operation log queries
	queryInsertOperation = `
		INSERT INTO balance_operations (
			id, account_id, purchase_id, purchase_kind, operation_type, amount,
			balance_before, balance_after, frozen_before, frozen_after, reason
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10::numeric, $11)`

	queryGetFreezeOperation = `
		SELECT amount::text, balance_after::text, frozen_after::text
		FROM balance_operations
		WHERE purchase_id = $1 AND purchase_kind = $2 AND operation_type = 'freeze'
		LIMIT 1`

	queryGetResolvingOperation = `
		SELECT operation_type, amount::text, balance_after::text, frozen_after::text
		FROM balance_operations
		WHERE purchase_id = $1 AND purchase_kind = $2 AND operation_type IN ('commit', 'refund')
		LIMIT 1`

	queryListOperations = `
		SELECT id, account_id, COALESCE(purchase_id, ''), operation_type, amount::text,
		       balance_before::text, balance_after::text, frozen_before::text, frozen_after::text,
		       COALESCE(reason, ''), created_at
		FROM balance_operations
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	// Reconciliation queries
	queryListFrozenAccountIds = `
		SELECT id FROM accounts
		WHERE frozen_balance > 0
		UNION
		SELECT account_id FROM purchases
		WHERE frozen_amount > 0`
)
