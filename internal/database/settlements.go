package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/shopspring/decimal"
)

// RecordSettlement writes the audit row for a bet that just reached a terminal state
func (s *Service) RecordSettlement(ctx context.Context, q store.Querier, st models.Settlement) error {
	if st.SettledAt.IsZero() {
		st.SettledAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, s.dialect.rebind(queryInsertSettlement),
		st.BetId, string(st.Status), st.WinningOutcomeId,
		st.Pot.String(), st.Fee.String(), st.NetPot.String(),
		st.Distributed.String(), st.Absorbed.String(), st.WinnerCount,
		st.SettledBy, st.SettledAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: bet %s already settled", store.ErrInvalidState, st.BetId)
		}
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	return nil
}

// GetSettlement returns the audit row of a terminal bet
func (s *Service) GetSettlement(ctx context.Context, betId string) (*models.Settlement, error) {
	var st models.Settlement
	var status, pot, fee, net, distributed, absorbed string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(queryGetSettlement), betId).Scan(
		&st.BetId, &status, &st.WinningOutcomeId, &pot, &fee, &net,
		&distributed, &absorbed, &st.WinnerCount, &st.SettledBy, &st.SettledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: settlement for bet %s", store.ErrNotFound, betId)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query settlement: %w", err)
	}
	st.Status = models.BetStatus(status)

	fields := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{pot, &st.Pot}, {fee, &st.Fee}, {net, &st.NetPot},
		{distributed, &st.Distributed}, {absorbed, &st.Absorbed},
	}
	for _, f := range fields {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return nil, fmt.Errorf("failed to parse settlement amount '%s': %w", f.raw, err)
		}
	}
	return &st, nil
}

// Wallet delegation

func (s *Service) Debit(ctx context.Context, q store.Querier, params store.MovementParams) (*models.Transaction, error) {
	return s.subledger.Debit(ctx, q, params)
}

func (s *Service) Credit(ctx context.Context, q store.Querier, params store.MovementParams) (*models.Transaction, error) {
	return s.subledger.Credit(ctx, q, params)
}

func (s *Service) BalanceOf(ctx context.Context, q store.Querier, userId string) (decimal.Decimal, error) {
	return s.subledger.BalanceOf(ctx, q, userId)
}

func (s *Service) GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error) {
	return s.subledger.GetTransactionHistory(ctx, userId, limit, offset)
}

func (s *Service) ReconcileUserBalance(ctx context.Context, userId string) error {
	return s.subledger.ReconcileBalance(ctx, userId)
}

func (s *Service) GetMostRecentTransactionTime(ctx context.Context) (time.Time, error) {
	return s.subledger.GetMostRecentTransactionTime(ctx)
}
