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

// BetStatus is the lifecycle state of a bet
type BetStatus string

const (
	BetStatusOpen      BetStatus = "OPEN"
	BetStatusResolved  BetStatus = "RESOLVED"
	BetStatusCancelled BetStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is permitted
func (s BetStatus) IsTerminal() bool {
	return s == BetStatusResolved || s == BetStatusCancelled
}

// TransactionKind classifies a wallet movement
type TransactionKind string

const (
	KindDeposit    TransactionKind = "DEPOSIT"
	KindWithdrawal TransactionKind = "WITHDRAWAL"
	KindStake      TransactionKind = "STAKE"
	KindPayout     TransactionKind = "PAYOUT"
	KindFee        TransactionKind = "FEE"
)

// Valid reports whether k is one of the known kinds
func (k TransactionKind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindStake, KindPayout, KindFee:
		return true
	}
	return false
}

// User represents a wallet holder
type User struct {
	Id        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Email     string          `db:"email" json:"email"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Version   int64           `db:"version" json:"-"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Outcome is one discrete result a bet can resolve to. Immutable once the bet exists.
type Outcome struct {
	Id       string `db:"id" json:"id"`
	BetId    string `db:"bet_id" json:"bet_id"`
	Label    string `db:"label" json:"label"`
	Position int    `db:"position" json:"position"`
}

// Bet is a proposition opened inside a group
type Bet struct {
	Id          string          `db:"id" json:"id"`
	GroupId     string          `db:"group_id" json:"group_id"`
	CreatorId   string          `db:"creator_id" json:"creator_id"`
	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	MinStake    decimal.Decimal `db:"min_stake" json:"min_stake"`
	Status      BetStatus       `db:"status" json:"status"`
	Deadline    time.Time       `db:"deadline" json:"deadline"`
	TotalPot    decimal.Decimal `db:"total_pot" json:"total_pot"`
	Outcomes    []Outcome       `json:"outcomes"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// HasOutcome reports whether outcomeId belongs to the bet
func (b *Bet) HasOutcome(outcomeId string) bool {
	for _, o := range b.Outcomes {
		if o.Id == outcomeId {
			return true
		}
	}
	return false
}

// Participation is a single accepted stake. Never mutated or deleted.
type Participation struct {
	Id        string          `db:"id" json:"id"`
	BetId     string          `db:"bet_id" json:"bet_id"`
	UserId    string          `db:"user_id" json:"user_id"`
	OutcomeId string          `db:"outcome_id" json:"outcome_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Transaction represents immutable wallet history
type Transaction struct {
	Id            string          `db:"id" json:"id"`
	UserId        string          `db:"user_id" json:"user_id"`
	Kind          TransactionKind `db:"kind" json:"kind"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balance_after"`
	BetId         string          `db:"bet_id" json:"bet_id"`
	Description   string          `db:"description" json:"description"`
	Sequence      int64           `db:"sequence" json:"sequence"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Settlement is the audit row written when a bet reaches a terminal state
type Settlement struct {
	BetId            string          `db:"bet_id" json:"bet_id"`
	Status           BetStatus       `db:"status" json:"status"`
	WinningOutcomeId string          `db:"winning_outcome_id" json:"winning_outcome_id"`
	Pot              decimal.Decimal `db:"pot" json:"pot"`
	Fee              decimal.Decimal `db:"fee" json:"fee"`
	NetPot           decimal.Decimal `db:"net_pot" json:"net_pot"`
	Distributed      decimal.Decimal `db:"distributed" json:"distributed"`
	Absorbed         decimal.Decimal `db:"absorbed" json:"absorbed"`
	WinnerCount      int             `db:"winner_count" json:"winner_count"`
	SettledBy        string          `db:"settled_by" json:"settled_by"`
	SettledAt        time.Time       `db:"settled_at" json:"settled_at"`
}

// OutcomeTotal is the staked sum on one outcome
type OutcomeTotal struct {
	OutcomeId string          `db:"outcome_id" json:"outcome_id"`
	Label     string          `db:"label" json:"label"`
	Stakers   int             `db:"stakers" json:"stakers"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
}
