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
	// User queries
	queryGetUsers = `
		SELECT id, name, email, balance, version, created_at, updated_at
		FROM users
		ORDER BY created_at, id`

	queryInsertUser = `
		INSERT INTO users (id, name, email, balance, version, created_at, updated_at)
		VALUES (?, ?, ?, '0', 1, ?, ?)`

	queryGetUserById = `
		SELECT id, name, email, balance, version, created_at, updated_at
		FROM users
		WHERE id = ?`

	queryGetUserByEmail = `
		SELECT id, name, email, balance, version, created_at, updated_at
		FROM users
		WHERE email = ?`

	// Balance queries
	queryGetAccountBalance = `
		SELECT balance, version
		FROM users
		WHERE id = ?`

	queryUpdateAccountBalance = `
		UPDATE users
		SET balance = ?, last_transaction_id = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryReconcileBalance = `
		SELECT amount
		FROM transactions
		WHERE user_id = ?`

	// Transaction queries
	queryInsertTransaction = `
		INSERT INTO transactions (
			id, user_id, kind, amount, balance_before, balance_after, bet_id, description, sequence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransactionHistory = `
		SELECT id, user_id, kind, amount, balance_before, balance_after, bet_id, description, sequence, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY sequence DESC
		LIMIT ? OFFSET ?`

	queryGetMostRecentTransactionTime = `
		SELECT MAX(created_at)
		FROM transactions`

	// Bet queries
	queryInsertBet = `
		INSERT INTO bets (id, group_id, creator_id, title, description, min_stake, status, deadline, total_pot, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 'OPEN', ?, '0', 1, ?, ?)`

	queryInsertOutcome = `
		INSERT INTO bet_outcomes (id, bet_id, label, position)
		VALUES (?, ?, ?, ?)`

	queryGetBet = `
		SELECT id, group_id, creator_id, title, description, min_stake, status, deadline, total_pot, version, created_at, updated_at
		FROM bets
		WHERE id = ?`

	queryGetOutcomes = `
		SELECT id, bet_id, label, position
		FROM bet_outcomes
		WHERE bet_id = ?
		ORDER BY position`

	queryListBetsByGroup = `
		SELECT id, group_id, creator_id, title, description, min_stake, status, deadline, total_pot, version, created_at, updated_at
		FROM bets
		WHERE group_id = ? AND (CAST(? AS TEXT) = '' OR status = ?)
		ORDER BY created_at DESC, id`

	queryListBets = `
		SELECT id, group_id, creator_id, title, description, min_stake, status, deadline, total_pot, version, created_at, updated_at
		FROM bets
		WHERE (CAST(? AS TEXT) = '' OR status = ?)
		ORDER BY created_at DESC, id`

	queryUpdateBetPot = `
		UPDATE bets
		SET total_pot = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = 'OPEN' AND version = ?`

	// The status predicate makes check-and-transition a single statement
	queryTransitionBet = `
		UPDATE bets
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = 'OPEN'`

	// Participation queries
	queryInsertParticipation = `
		INSERT INTO participations (id, bet_id, user_id, outcome_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryCheckParticipation = `
		SELECT id FROM participations WHERE bet_id = ? AND user_id = ? LIMIT 1`

	queryGetParticipations = `
		SELECT id, bet_id, user_id, outcome_id, amount, created_at
		FROM participations
		WHERE bet_id = ?
		ORDER BY created_at, id`

	queryOutcomeTotals = `
		SELECT o.id, o.label, p.amount
		FROM bet_outcomes o
		LEFT JOIN participations p ON p.outcome_id = o.id
		WHERE o.bet_id = ?
		ORDER BY o.position`

	// Settlement queries
	queryInsertSettlement = `
		INSERT INTO settlements (bet_id, status, winning_outcome_id, pot, fee, net_pot, distributed, absorbed, winner_count, settled_by, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetSettlement = `
		SELECT bet_id, status, winning_outcome_id, pot, fee, net_pot, distributed, absorbed, winner_count, settled_by, settled_at
		FROM settlements
		WHERE bet_id = ?`
)
