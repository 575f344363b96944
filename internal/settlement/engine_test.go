package settlement

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"group-wager-go/internal/database"
	"group-wager-go/internal/locks"
	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx    context.Context
	db     *database.Service
	engine *Engine
	bet    *models.Bet
}

func newFixture(t *testing.T, feeAccount string) *fixture {
	t.Helper()

	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Driver:       database.DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	users := []string{"creator", "A", "B", "C"}
	if feeAccount != "" {
		users = append(users, feeAccount)
	}
	for _, id := range users {
		_, err := db.CreateUser(ctx, id, id, id+"@example.com")
		require.NoError(t, err)
		if id == feeAccount {
			continue
		}
		_, err = db.Credit(ctx, nil, store.MovementParams{UserId: id, Kind: models.KindDeposit, Amount: decimal.NewFromInt(100)})
		require.NoError(t, err)
	}

	var bet *models.Bet
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		bet, err = db.CreateBet(ctx, tx, models.CreateBetRequest{
			GroupId:   "g1",
			CreatorId: "creator",
			Title:     "Match",
			MinStake:  decimal.NewFromInt(10),
			Outcomes:  []string{"X", "Y"},
			Deadline:  time.Now().Add(time.Hour),
		})
		return err
	})
	require.NoError(t, err)

	cfg := models.SettlementConfig{
		FeeRate:      decimal.RequireFromString("0.03"),
		MoneyScale:   2,
		FeeAccountId: feeAccount,
	}
	return &fixture{ctx: ctx, db: db, engine: NewEngine(db, locks.NewLedgerLocks(), cfg), bet: bet}
}

func (f *fixture) outcome(label string) string {
	for _, o := range f.bet.Outcomes {
		if o.Label == label {
			return o.Id
		}
	}
	return ""
}

func (f *fixture) stake(t *testing.T, user, label string, amount int64) {
	t.Helper()

	a := decimal.NewFromInt(amount)
	err := f.db.WithTx(f.ctx, func(tx *sql.Tx) error {
		if _, err := f.db.Debit(f.ctx, tx, store.MovementParams{UserId: user, Kind: models.KindStake, Amount: a, BetId: f.bet.Id}); err != nil {
			return err
		}
		if _, err := f.db.RecordParticipation(f.ctx, tx, models.Participation{BetId: f.bet.Id, UserId: user, OutcomeId: f.outcome(label), Amount: a}); err != nil {
			return err
		}
		return f.db.RecordStake(f.ctx, tx, f.bet.Id, a)
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, user string) string {
	t.Helper()

	b, err := f.db.BalanceOf(f.ctx, nil, user)
	require.NoError(t, err)
	return b.StringFixed(2)
}

func TestResolve_ProportionalPayout(t *testing.T) {
	f := newFixture(t, "")
	f.stake(t, "A", "X", 20)
	f.stake(t, "B", "Y", 20)
	f.stake(t, "C", "X", 40)

	result, err := f.engine.Resolve(f.ctx, f.bet.Id, f.outcome("X"), "creator")
	require.NoError(t, err)

	assert.Equal(t, "2.40", result.Settlement.Fee.StringFixed(2))
	assert.Equal(t, "77.60", result.Settlement.NetPot.StringFixed(2))
	assert.Equal(t, 2, result.Settlement.WinnerCount)
	require.Len(t, result.Payouts, 2)
	assert.Empty(t, result.FeeTransactionId)

	assert.Equal(t, "105.86", f.balance(t, "A"))
	assert.Equal(t, "80.00", f.balance(t, "B"))
	assert.Equal(t, "111.74", f.balance(t, "C"))

	bet, err := f.db.GetBet(f.ctx, nil, f.bet.Id)
	require.NoError(t, err)
	assert.Equal(t, models.BetStatusResolved, bet.Status)

	settlementRow, err := f.db.GetSettlement(f.ctx, f.bet.Id)
	require.NoError(t, err)
	assert.True(t, settlementRow.Distributed.Equal(decimal.RequireFromString("77.60")))

	for _, user := range []string{"A", "B", "C"} {
		assert.NoError(t, f.db.ReconcileUserBalance(f.ctx, user))
	}
}

func TestResolve_FeeAccountCollectsFee(t *testing.T) {
	f := newFixture(t, "platform")
	f.stake(t, "A", "X", 20)
	f.stake(t, "B", "Y", 20)
	f.stake(t, "C", "X", 40)

	result, err := f.engine.Resolve(f.ctx, f.bet.Id, f.outcome("X"), "creator")
	require.NoError(t, err)
	assert.NotEmpty(t, result.FeeTransactionId)
	assert.Equal(t, "platform", result.FeeAccountId)

	assert.Equal(t, "2.40", f.balance(t, "platform"))

	total := decimal.Zero
	for _, user := range []string{"A", "B", "C", "creator", "platform"} {
		b, err := f.db.BalanceOf(f.ctx, nil, user)
		require.NoError(t, err)
		total = total.Add(b)
	}
	// Every unit deposited is still somewhere
	assert.Equal(t, "400.00", total.StringFixed(2))
}

func TestResolve_NoWinningStakes(t *testing.T) {
	f := newFixture(t, "")
	f.stake(t, "A", "X", 20)
	f.stake(t, "B", "X", 30)

	result, err := f.engine.Resolve(f.ctx, f.bet.Id, f.outcome("Y"), "creator")
	require.NoError(t, err)

	assert.Empty(t, result.Payouts)
	assert.Equal(t, "48.50", result.Settlement.Absorbed.StringFixed(2))
	assert.Equal(t, "80.00", f.balance(t, "A"))
	assert.Equal(t, "70.00", f.balance(t, "B"))

	bet, err := f.db.GetBet(f.ctx, nil, f.bet.Id)
	require.NoError(t, err)
	assert.Equal(t, models.BetStatusResolved, bet.Status)
}

func TestResolve_Preconditions(t *testing.T) {
	f := newFixture(t, "")
	f.stake(t, "A", "X", 20)

	_, err := f.engine.Resolve(f.ctx, "missing", f.outcome("X"), "creator")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.engine.Resolve(f.ctx, f.bet.Id, f.outcome("X"), "A")
	assert.ErrorIs(t, err, store.ErrUnauthorized)

	_, err = f.engine.Resolve(f.ctx, f.bet.Id, "not-an-outcome", "creator")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	// Nothing above changed any ledger
	assert.Equal(t, "80.00", f.balance(t, "A"))
	bet, err := f.db.GetBet(f.ctx, nil, f.bet.Id)
	require.NoError(t, err)
	assert.Equal(t, models.BetStatusOpen, bet.Status)
}

func TestResolve_TwiceNeverDoublePays(t *testing.T) {
	f := newFixture(t, "")
	f.stake(t, "A", "X", 20)
	f.stake(t, "B", "Y", 20)

	_, err := f.engine.Resolve(f.ctx, f.bet.Id, f.outcome("X"), "creator")
	require.NoError(t, err)
	after := f.balance(t, "A")

	_, err = f.engine.Resolve(f.ctx, f.bet.Id, f.outcome("X"), "creator")
	assert.ErrorIs(t, err, store.ErrInvalidState)
	_, err = f.engine.Cancel(f.ctx, f.bet.Id, "creator")
	assert.ErrorIs(t, err, store.ErrInvalidState)
	// A closed bet reports its state before checking who is asking
	_, err = f.engine.Resolve(f.ctx, f.bet.Id, f.outcome("X"), "B")
	assert.ErrorIs(t, err, store.ErrInvalidState)

	assert.Equal(t, after, f.balance(t, "A"))
}

func TestResolve_ConcurrentCallsPayOnce(t *testing.T) {
	f := newFixture(t, "")
	f.stake(t, "A", "X", 20)
	f.stake(t, "B", "Y", 20)

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.engine.Resolve(f.ctx, f.bet.Id, f.outcome("X"), "creator")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, store.ErrInvalidState)
	}
	assert.Equal(t, 1, succeeded)
	// 40 pot, 1.20 fee, A takes the whole 38.80
	assert.Equal(t, "118.80", f.balance(t, "A"))
}

func TestResolve_PotMismatchIsInternal(t *testing.T) {
	f := newFixture(t, "")
	f.stake(t, "A", "X", 20)

	// Inflate the pot without a participation behind it
	err := f.db.WithTx(f.ctx, func(tx *sql.Tx) error {
		return f.db.RecordStake(f.ctx, tx, f.bet.Id, decimal.NewFromInt(5))
	})
	require.NoError(t, err)

	_, err = f.engine.Resolve(f.ctx, f.bet.Id, f.outcome("X"), "creator")
	assert.ErrorIs(t, err, store.ErrInternal)
	assert.Equal(t, "80.00", f.balance(t, "A"))
}

func TestCancel_RefundsEveryStake(t *testing.T) {
	f := newFixture(t, "")
	f.stake(t, "A", "X", 15)
	f.stake(t, "B", "Y", 25)

	_, err := f.engine.Cancel(f.ctx, f.bet.Id, "A")
	assert.ErrorIs(t, err, store.ErrUnauthorized)

	result, err := f.engine.Cancel(f.ctx, f.bet.Id, "creator")
	require.NoError(t, err)
	require.Len(t, result.Payouts, 2)

	assert.Equal(t, "100.00", f.balance(t, "A"))
	assert.Equal(t, "100.00", f.balance(t, "B"))

	bet, err := f.db.GetBet(f.ctx, nil, f.bet.Id)
	require.NoError(t, err)
	assert.Equal(t, models.BetStatusCancelled, bet.Status)
	assert.Equal(t, "40.00", bet.TotalPot.StringFixed(2))

	history, err := f.db.GetTransactionHistory(f.ctx, "B", 1, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.KindWithdrawal, history[0].Kind)
	assert.Equal(t, f.bet.Id, history[0].BetId)
	assert.True(t, history[0].Amount.Equal(decimal.NewFromInt(25)))

	_, err = f.engine.Resolve(f.ctx, f.bet.Id, f.outcome("X"), "creator")
	assert.ErrorIs(t, err, store.ErrInvalidState)
}
