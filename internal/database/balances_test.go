package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestBalanceOf_NoTransactions(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createFundedUser(t, service, "user1", "0")

	balance, err := service.BalanceOf(ctx, nil, "user1")
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}

	if !balance.Equal(decimal.Zero) {
		t.Errorf("Expected balance 0, got %s", balance.String())
	}
}

func TestBalanceOf_UnknownUser(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	_, err := service.BalanceOf(context.Background(), nil, "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected not found, got %v", err)
	}
}

func TestBalanceOf_WithTransactions(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createFundedUser(t, service, "user1", "2")

	_, err := service.Debit(ctx, nil, store.MovementParams{UserId: "user1", Kind: models.KindWithdrawal, Amount: decimal.RequireFromString("0.5")})
	if err != nil {
		t.Fatalf("Failed to create withdrawal: %v", err)
	}

	balance, err := service.BalanceOf(ctx, nil, "user1")
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}

	expectedBalance := decimal.RequireFromString("1.5")
	if !balance.Equal(expectedBalance) {
		t.Errorf("Expected balance %s, got %s", expectedBalance.String(), balance.String())
	}
}

func TestReconcileBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createFundedUser(t, service, "user1", "100")

	for _, amount := range []string{"20", "0.35", "7.65"} {
		if _, err := service.Debit(ctx, nil, store.MovementParams{UserId: "user1", Kind: models.KindStake, Amount: decimal.RequireFromString(amount), BetId: "b"}); err != nil {
			t.Fatalf("Debit %s failed: %v", amount, err)
		}
	}
	if _, err := service.Credit(ctx, nil, store.MovementParams{UserId: "user1", Kind: models.KindPayout, Amount: decimal.RequireFromString("51.74"), BetId: "b"}); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	if err := service.ReconcileUserBalance(ctx, "user1"); err != nil {
		t.Fatalf("Expected balances to reconcile, got %v", err)
	}

	// Tamper with the hot balance directly
	if _, err := service.db.ExecContext(ctx, "UPDATE users SET balance = '1' WHERE id = ?", "user1"); err != nil {
		t.Fatalf("Failed to tamper balance: %v", err)
	}
	if err := service.ReconcileUserBalance(ctx, "user1"); !errors.Is(err, store.ErrInternal) {
		t.Errorf("Expected internal error on mismatch, got %v", err)
	}
}

func TestGetTransactionHistory_Pagination(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createFundedUser(t, service, "user1", "10")

	for i := 0; i < 4; i++ {
		if _, err := service.Debit(ctx, nil, store.MovementParams{UserId: "user1", Kind: models.KindWithdrawal, Amount: decimal.NewFromInt(1)}); err != nil {
			t.Fatalf("Debit failed: %v", err)
		}
	}

	page, err := service.GetTransactionHistory(ctx, "user1", 3, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(page))
	}
	if !page[0].BalanceAfter.Equal(decimal.NewFromInt(6)) {
		t.Errorf("Expected newest row first with balance 6, got %s", page[0].BalanceAfter.String())
	}

	rest, err := service.GetTransactionHistory(ctx, "user1", 3, 3)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(rest) != 2 {
		t.Errorf("Expected 2 remaining rows, got %d", len(rest))
	}
}

func TestGetTransactionHistory_SameTimestampKeepsCommitOrder(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createFundedUser(t, service, "user1", "10")

	for _, amount := range []string{"1", "2", "3", "4", "5"} {
		if _, err := service.Credit(ctx, nil, store.MovementParams{UserId: "user1", Kind: models.KindPayout, Amount: decimal.RequireFromString(amount), BetId: "b"}); err != nil {
			t.Fatalf("Credit %s failed: %v", amount, err)
		}
	}

	// Payouts of one resolution share a timestamp
	if _, err := service.db.ExecContext(ctx, "UPDATE transactions SET created_at = ?", time.Now().UTC()); err != nil {
		t.Fatalf("Failed to align timestamps: %v", err)
	}

	history, err := service.GetTransactionHistory(ctx, "user1", 10, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != 6 {
		t.Fatalf("Expected 6 rows, got %d", len(history))
	}
	if !history[0].BalanceAfter.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Expected newest balance 25 first, got %s", history[0].BalanceAfter.String())
	}
	for i := 0; i+1 < len(history); i++ {
		if history[i].Sequence <= history[i+1].Sequence {
			t.Errorf("Row %d sequence %d not after row %d sequence %d", i, history[i].Sequence, i+1, history[i+1].Sequence)
		}
		if !history[i].BalanceBefore.Equal(history[i+1].BalanceAfter) {
			t.Errorf("Row %d starts at %s but row %d ended at %s", i, history[i].BalanceBefore.String(), i+1, history[i+1].BalanceAfter.String())
		}
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.CreateUser(ctx, "u1", "One", "same@example.com"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	_, err := service.CreateUser(ctx, "u2", "Two", "same@example.com")
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("Expected conflict, got %v", err)
	}

	users, err := service.GetUsers(ctx)
	if err != nil {
		t.Fatalf("GetUsers failed: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("Expected 1 user, got %d", len(users))
	}
}

func TestReconcileBalance_DuringDeposits(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createFundedUser(t, service, "user1", "100")

	const deposits = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < deposits; i++ {
			if _, err := service.Credit(ctx, nil, store.MovementParams{UserId: "user1", Kind: models.KindDeposit, Amount: decimal.NewFromInt(1)}); err != nil {
				t.Errorf("Deposit %d failed: %v", i, err)
				return
			}
		}
	}()

	failures := 0
	for i := 0; i < deposits; i++ {
		if err := service.ReconcileUserBalance(ctx, "user1"); err != nil {
			failures++
			t.Logf("Reconciliation %d failed: %v", i, err)
		}
	}
	wg.Wait()

	if failures > 0 {
		t.Errorf("Expected every reconciliation to pass while deposits commit, got %d failures", failures)
	}

	balance, err := service.BalanceOf(ctx, nil, "user1")
	if err != nil {
		t.Fatalf("BalanceOf failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(100 + deposits)) {
		t.Errorf("Expected balance %d, got %s", 100+deposits, balance.String())
	}
}
