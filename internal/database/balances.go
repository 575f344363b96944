package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"group-wager-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BalanceOf returns the current balance for a user (O(1) lookup)
func (s *SubledgerService) BalanceOf(ctx context.Context, q store.Querier, userId string) (decimal.Decimal, error) {
	if q == nil {
		q = s.db
	}

	var balanceStr string
	var version int64
	err := q.QueryRowContext(ctx, s.dialect.rebind(queryGetAccountBalance), userId).Scan(&balanceStr, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: user %s", store.ErrNotFound, userId)
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		zap.L().Error("Failed to parse balance", zap.String("balance_str", balanceStr), zap.Error(err))
		return decimal.Zero, fmt.Errorf("%w: failed to parse balance: %v", store.ErrInternal, err)
	}

	zap.L().Debug("Retrieved balance", zap.String("user_id", userId), zap.String("balance", balance.String()))
	return balance, nil
}

// ReconcileBalance verifies that current balance matches sum of all transactions.
// Both reads share one snapshot so a concurrent movement cannot split them.
func (s *SubledgerService) ReconcileBalance(ctx context.Context, userId string) error {
	zap.L().Debug("Reconciling balance", zap.String("user_id", userId))

	return withReadTx(ctx, s.db, s.dialect, func(tx *sql.Tx) error {
		return s.reconcileBalance(ctx, tx, userId)
	})
}

func (s *SubledgerService) reconcileBalance(ctx context.Context, q store.Querier, userId string) error {
	currentBalance, err := s.BalanceOf(ctx, q, userId)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	// Amounts are stored as decimal text; summing in SQL would go through floats
	rows, err := q.QueryContext(ctx, s.dialect.rebind(queryReconcileBalance), userId)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	calculatedBalance := decimal.Zero
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return fmt.Errorf("failed to scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
		}
		calculatedBalance = calculatedBalance.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating transaction rows: %w", err)
	}

	// Check if balances match (exact decimal comparison)
	if !currentBalance.Equal(calculatedBalance) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.String("current_balance", currentBalance.String()),
			zap.String("calculated_balance", calculatedBalance.String()),
			zap.String("difference", currentBalance.Sub(calculatedBalance).String()))
		return fmt.Errorf("%w: balance mismatch: current=%s, calculated=%s", store.ErrInternal, currentBalance.String(), calculatedBalance.String())
	}

	zap.L().Debug("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.String("balance", currentBalance.String()))
	return nil
}
