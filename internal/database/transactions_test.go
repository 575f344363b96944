package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/shopspring/decimal"
)

func setupTestDb(t *testing.T) (*Service, func()) {
	t.Helper()

	service, err := NewService(context.Background(), models.DatabaseConfig{
		Driver:       DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		service.Close()
	}

	return service, cleanup
}

func createFundedUser(t *testing.T, service *Service, id string, opening string) {
	t.Helper()

	ctx := context.Background()
	if _, err := service.CreateUser(ctx, id, "User "+id, id+"@example.com"); err != nil {
		t.Fatalf("Failed to create user %s: %v", id, err)
	}
	amount := decimal.RequireFromString(opening)
	if amount.IsZero() {
		return
	}
	_, err := service.Credit(ctx, nil, store.MovementParams{UserId: id, Kind: models.KindDeposit, Amount: amount, Description: "Initial Deposit"})
	if err != nil {
		t.Fatalf("Failed to fund user %s: %v", id, err)
	}
}

func TestCredit_Deposit(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createFundedUser(t, service, "user1", "0")

	amount := decimal.RequireFromString("1.50")
	result, err := service.Credit(ctx, nil, store.MovementParams{UserId: "user1", Kind: models.KindDeposit, Amount: amount})
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	if result.UserId != "user1" {
		t.Errorf("Expected userId user1, got %s", result.UserId)
	}
	if result.Kind != models.KindDeposit {
		t.Errorf("Expected kind DEPOSIT, got %s", result.Kind)
	}
	if !result.Amount.Equal(amount) {
		t.Errorf("Expected amount %s, got %s", amount.String(), result.Amount.String())
	}
	if !result.BalanceBefore.IsZero() {
		t.Errorf("Expected balance before 0, got %s", result.BalanceBefore.String())
	}
	if !result.BalanceAfter.Equal(amount) {
		t.Errorf("Expected balance %s, got %s", amount.String(), result.BalanceAfter.String())
	}
}

func TestDebit_RecordsNegativeAmount(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createFundedUser(t, service, "user1", "2")

	result, err := service.Debit(ctx, nil, store.MovementParams{UserId: "user1", Kind: models.KindWithdrawal, Amount: decimal.RequireFromString("0.5")})
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	if !result.Amount.Equal(decimal.RequireFromString("-0.5")) {
		t.Errorf("Expected amount -0.5, got %s", result.Amount.String())
	}
	expectedBalance := decimal.RequireFromString("1.5")
	if !result.BalanceAfter.Equal(expectedBalance) {
		t.Errorf("Expected balance %s, got %s", expectedBalance.String(), result.BalanceAfter.String())
	}
}

func TestDebit_InsufficientFunds(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createFundedUser(t, service, "user1", "10")

	_, err := service.Debit(ctx, nil, store.MovementParams{UserId: "user1", Kind: models.KindStake, Amount: decimal.RequireFromString("10.01")})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected insufficient funds, got: %v", err)
	}

	balance, err := service.BalanceOf(ctx, nil, "user1")
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected balance unchanged at 10, got %s", balance.String())
	}

	history, err := service.GetTransactionHistory(ctx, "user1", 10, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Expected only the opening deposit in history, got %d rows", len(history))
	}
}

func TestDebit_ExactBalanceReachesZero(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createFundedUser(t, service, "user1", "25")

	result, err := service.Debit(ctx, nil, store.MovementParams{UserId: "user1", Kind: models.KindStake, Amount: decimal.NewFromInt(25), BetId: "bet-1"})
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if !result.BalanceAfter.IsZero() {
		t.Errorf("Expected zero balance, got %s", result.BalanceAfter.String())
	}
}

func TestMovement_Validation(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createFundedUser(t, service, "user1", "5")

	cases := []struct {
		name   string
		params store.MovementParams
		want   error
	}{
		{"zero amount", store.MovementParams{UserId: "user1", Kind: models.KindDeposit, Amount: decimal.Zero}, store.ErrInvalidArgument},
		{"negative amount", store.MovementParams{UserId: "user1", Kind: models.KindDeposit, Amount: decimal.NewFromInt(-1)}, store.ErrInvalidArgument},
		{"missing user", store.MovementParams{Kind: models.KindDeposit, Amount: decimal.NewFromInt(1)}, store.ErrInvalidArgument},
		{"bad kind", store.MovementParams{UserId: "user1", Kind: "BONUS", Amount: decimal.NewFromInt(1)}, store.ErrInvalidArgument},
		{"unknown user", store.MovementParams{UserId: "ghost", Kind: models.KindDeposit, Amount: decimal.NewFromInt(1)}, store.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.Credit(ctx, nil, tc.params); !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestMovement_RollsBackWithTransaction(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createFundedUser(t, service, "user1", "100")

	boom := errors.New("boom")
	err := service.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := service.Debit(ctx, tx, store.MovementParams{UserId: "user1", Kind: models.KindStake, Amount: decimal.NewFromInt(40)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	balance, err := service.BalanceOf(ctx, nil, "user1")
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected rolled back balance 100, got %s", balance.String())
	}
}

func TestJournalFor_BalancedEntries(t *testing.T) {
	cases := []struct {
		name        string
		transaction models.Transaction
		counterType string
	}{
		{"deposit", models.Transaction{UserId: "u", Kind: models.KindDeposit, Amount: decimal.NewFromInt(5)}, "system_liability"},
		{"stake", models.Transaction{UserId: "u", Kind: models.KindStake, Amount: decimal.NewFromInt(-5), BetId: "b"}, "bet_escrow"},
		{"payout", models.Transaction{UserId: "u", Kind: models.KindPayout, Amount: decimal.NewFromInt(5), BetId: "b"}, "bet_escrow"},
		{"refund", models.Transaction{UserId: "u", Kind: models.KindWithdrawal, Amount: decimal.NewFromInt(5), BetId: "b"}, "bet_escrow"},
		{"fee", models.Transaction{UserId: "platform", Kind: models.KindFee, Amount: decimal.NewFromInt(1), BetId: "b"}, "platform_revenue"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries := journalFor(&tc.transaction)
			if len(entries) != 2 {
				t.Fatalf("Expected 2 entries, got %d", len(entries))
			}
			debits := entries[0].debitAmount.Add(entries[1].debitAmount)
			credits := entries[0].creditAmount.Add(entries[1].creditAmount)
			if !debits.Equal(credits) {
				t.Errorf("Unbalanced journal: debits=%s credits=%s", debits, credits)
			}
			if entries[1].accountType != tc.counterType {
				t.Errorf("Expected counter account %s, got %s", tc.counterType, entries[1].accountType)
			}
		})
	}
}

func TestGetMostRecentTransactionTime(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	ts, err := service.GetMostRecentTransactionTime(ctx)
	if err != nil {
		t.Fatalf("GetMostRecentTransactionTime failed: %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("Expected zero time on empty log, got %v", ts)
	}

	createFundedUser(t, service, "user1", "3")

	ts, err = service.GetMostRecentTransactionTime(ctx)
	if err != nil {
		t.Fatalf("GetMostRecentTransactionTime failed: %v", err)
	}
	if ts.IsZero() {
		t.Errorf("Expected a timestamp after a deposit")
	}
}
