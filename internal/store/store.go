package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"group-wager-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations. Every error
// surfaced by the ledger wraps exactly one of these.
var (
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrNotFound               = errors.New("not found")
	ErrInvalidState           = errors.New("invalid state")
	ErrConflict               = errors.New("conflict")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInternal               = errors.New("internal error")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// Kind returns the error kind name used for logs, metric labels and HTTP mapping.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	default:
		return "internal"
	}
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MovementParams describes one balance change
type MovementParams struct {
	UserId      string
	Kind        models.TransactionKind
	Amount      decimal.Decimal // always positive; the sign comes from Debit/Credit
	BetId       string
	Description string
}

// WalletLedger owns balances and the append-only transaction log.
type WalletLedger interface {
	Debit(ctx context.Context, q Querier, params MovementParams) (*models.Transaction, error)
	Credit(ctx context.Context, q Querier, params MovementParams) (*models.Transaction, error)
	BalanceOf(ctx context.Context, q Querier, userId string) (decimal.Decimal, error)
}

// StakeLedger owns participations.
type StakeLedger interface {
	RecordParticipation(ctx context.Context, q Querier, p models.Participation) (*models.Participation, error)
	ParticipationsFor(ctx context.Context, q Querier, betId string) ([]models.Participation, error)
}

// BetRegistry owns bets and their lifecycle.
type BetRegistry interface {
	CreateBet(ctx context.Context, q Querier, req models.CreateBetRequest) (*models.Bet, error)
	GetBet(ctx context.Context, q Querier, betId string) (*models.Bet, error)
	RecordStake(ctx context.Context, q Querier, betId string, amount decimal.Decimal) error
	TransitionToResolved(ctx context.Context, q Querier, betId string) error
	TransitionToCancelled(ctx context.Context, q Querier, betId string) error
}

// LedgerStore defines the contract the wager service needs from a backend.
type LedgerStore interface {
	WalletLedger
	StakeLedger
	BetRegistry

	// --- Users ---
	GetUsers(ctx context.Context) ([]models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, userId, name, email string) (*models.User, error)

	// --- Read models ---
	ListBets(ctx context.Context, groupId string, status models.BetStatus) ([]models.Bet, error)
	OutcomeTotals(ctx context.Context, betId string) ([]models.OutcomeTotal, error)
	GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error)
	GetSettlement(ctx context.Context, betId string) (*models.Settlement, error)
	RecordSettlement(ctx context.Context, q Querier, s models.Settlement) error
	ReconcileUserBalance(ctx context.Context, userId string) error
	VerifyPot(ctx context.Context, q Querier, betId string) error
	GetMostRecentTransactionTime(ctx context.Context) (time.Time, error)

	// --- Lifecycle ---
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	Ping(ctx context.Context) error
	Close()
}
