package httpapi

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateBetRequest struct {
	GroupId     string          `json:"group_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	MinStake    decimal.Decimal `json:"min_stake"`
	Outcomes    []string        `json:"outcomes"`
	Deadline    time.Time       `json:"deadline"`
}

type PlaceStakeRequest struct {
	OutcomeId string          `json:"outcome_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type ResolveRequest struct {
	WinningOutcomeId string `json:"winning_outcome_id"`
}

type WalletRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type CreateUserRequest struct {
	Id             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type BalanceResponse struct {
	UserId  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
