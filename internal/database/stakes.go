package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecordParticipation inserts a participation. The (bet_id, user_id) unique
// constraint backs the explicit check so a second stake fails with ErrConflict
// even if two writers race past the lookup.
func (s *Service) RecordParticipation(ctx context.Context, q store.Querier, p models.Participation) (*models.Participation, error) {
	var existingId string
	err := q.QueryRowContext(ctx, s.dialect.rebind(queryCheckParticipation), p.BetId, p.UserId).Scan(&existingId)
	if err == nil {
		return nil, fmt.Errorf("%w: user %s already staked on bet %s", store.ErrConflict, p.UserId, p.BetId)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check for existing participation: %w", err)
	}

	if p.Id == "" {
		p.Id = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err = q.ExecContext(ctx, s.dialect.rebind(queryInsertParticipation),
		p.Id, p.BetId, p.UserId, p.OutcomeId, p.Amount.String(), p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user %s already staked on bet %s", store.ErrConflict, p.UserId, p.BetId)
		}
		return nil, fmt.Errorf("failed to insert participation: %w", err)
	}

	zap.L().Debug("Participation recorded",
		zap.String("participation_id", p.Id),
		zap.String("bet_id", p.BetId),
		zap.String("user_id", p.UserId),
		zap.String("amount", p.Amount.String()))
	return &p, nil
}

// ParticipationsFor returns every participation on a bet in insertion order
func (s *Service) ParticipationsFor(ctx context.Context, q store.Querier, betId string) ([]models.Participation, error) {
	if q == nil {
		q = s.db
	}

	rows, err := q.QueryContext(ctx, s.dialect.rebind(queryGetParticipations), betId)
	if err != nil {
		return nil, fmt.Errorf("unable to query participations: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var participations []models.Participation
	for rows.Next() {
		var p models.Participation
		var amountStr string
		if err := rows.Scan(&p.Id, &p.BetId, &p.UserId, &p.OutcomeId, &amountStr, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan participation row: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
		}
		participations = append(participations, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participation rows: %w", err)
	}
	return participations, nil
}

// VerifyPot checks totalPot against the sum of the bet's participations.
// A nil q reads both from one snapshot.
func (s *Service) VerifyPot(ctx context.Context, q store.Querier, betId string) error {
	if q == nil {
		return withReadTx(ctx, s.db, s.dialect, func(tx *sql.Tx) error {
			return s.VerifyPot(ctx, tx, betId)
		})
	}

	bet, err := s.GetBet(ctx, q, betId)
	if err != nil {
		return err
	}
	participations, err := s.ParticipationsFor(ctx, q, betId)
	if err != nil {
		return err
	}

	sum := decimal.Zero
	for _, p := range participations {
		sum = sum.Add(p.Amount)
	}
	if !sum.Equal(bet.TotalPot) {
		zap.L().Error("Pot verification failed",
			zap.String("bet_id", betId),
			zap.String("total_pot", bet.TotalPot.String()),
			zap.String("participation_sum", sum.String()))
		return fmt.Errorf("%w: pot mismatch on bet %s: total_pot=%s, participations=%s", store.ErrInternal, betId, bet.TotalPot.String(), sum.String())
	}
	return nil
}

// OutcomeTotals returns the staked sum and staker count per outcome, in outcome order
func (s *Service) OutcomeTotals(ctx context.Context, betId string) ([]models.OutcomeTotal, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(queryOutcomeTotals), betId)
	if err != nil {
		return nil, fmt.Errorf("unable to query outcome totals: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var totals []models.OutcomeTotal
	index := map[string]int{}
	for rows.Next() {
		var outcomeId, label string
		var amountStr sql.NullString
		if err := rows.Scan(&outcomeId, &label, &amountStr); err != nil {
			return nil, fmt.Errorf("unable to scan outcome total row: %w", err)
		}
		i, ok := index[outcomeId]
		if !ok {
			totals = append(totals, models.OutcomeTotal{OutcomeId: outcomeId, Label: label, Amount: decimal.Zero})
			i = len(totals) - 1
			index[outcomeId] = i
		}
		if !amountStr.Valid {
			continue
		}
		amount, err := decimal.NewFromString(amountStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr.String, err)
		}
		totals[i].Amount = totals[i].Amount.Add(amount)
		totals[i].Stakers++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcome total rows: %w", err)
	}
	if len(totals) == 0 {
		return nil, fmt.Errorf("%w: bet %s", store.ErrNotFound, betId)
	}
	return totals, nil
}

// isUniqueViolation matches both sqlite3 and postgres unique-constraint errors
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
