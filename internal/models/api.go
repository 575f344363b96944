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

// CreateBetRequest carries the input of a create-bet call
type CreateBetRequest struct {
	GroupId     string          `json:"group_id"`
	CreatorId   string          `json:"creator_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	MinStake    decimal.Decimal `json:"min_stake"`
	Outcomes    []string        `json:"outcomes"`
	Deadline    time.Time       `json:"deadline"`
}

// StakeRequest carries the input of a place-stake call
type StakeRequest struct {
	UserId    string          `json:"user_id"`
	BetId     string          `json:"bet_id"`
	OutcomeId string          `json:"outcome_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// Payout is one credit issued by a settlement
type Payout struct {
	UserId          string          `json:"user_id"`
	ParticipationId string          `json:"participation_id"`
	Stake           decimal.Decimal `json:"stake"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionId   string          `json:"transaction_id"`
}

// SettlementResult is returned by resolve and cancel
type SettlementResult struct {
	Settlement       Settlement `json:"settlement"`
	Payouts          []Payout   `json:"payouts"`
	FeeAccountId     string     `json:"fee_account_id,omitempty"`
	FeeTransactionId string     `json:"fee_transaction_id,omitempty"`
}

// TransactionRecord represents a transaction in the user's history
type TransactionRecord struct {
	Id          string          `json:"id"`
	Kind        TransactionKind `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Balance     decimal.Decimal `json:"balance"`
	BetId       string          `json:"bet_id,omitempty"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}

// LedgerEvent is published after a ledger change commits
type LedgerEvent struct {
	Type        string          `json:"type"` // bet_created, stake_placed, bet_resolved, bet_cancelled, wallet_movement
	BetId       string          `json:"bet_id,omitempty"`
	GroupId     string          `json:"group_id,omitempty"`
	UserId      string          `json:"user_id,omitempty"`
	OutcomeId   string          `json:"outcome_id,omitempty"`
	Kind        TransactionKind `json:"kind,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	TotalPot    decimal.Decimal `json:"total_pot"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description,omitempty"`
	TsUnixMs    int64           `json:"ts_unix_ms"`
}

const (
	EventBetCreated     = "bet_created"
	EventStakePlaced    = "stake_placed"
	EventBetResolved    = "bet_resolved"
	EventBetCancelled   = "bet_cancelled"
	EventWalletMovement = "wallet_movement"
)

type WalletResult struct {
	UserId        string          `json:"user_id"`
	Kind          TransactionKind `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	TransactionId string          `json:"transaction_id"`
}

type StakeResult struct {
	Participation Participation   `json:"participation"`
	TotalPot      decimal.Decimal `json:"total_pot"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	TransactionId string          `json:"transaction_id"`
}

type CreateUserRequest struct {
	Id             string          `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	Email          string          `json:"email" yaml:"email"`
	OpeningBalance decimal.Decimal `json:"opening_balance" yaml:"-"`
}

// LeaderboardEntry is one ranked wallet, richest first
type LeaderboardEntry struct {
	Rank    int             `json:"rank"`
	UserId  string          `json:"user_id"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}
