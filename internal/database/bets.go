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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ValidateCreateBet checks the create-bet input. Exported so the service layer
// can reject malformed requests before opening a transaction.
func ValidateCreateBet(req models.CreateBetRequest) error {
	if req.GroupId == "" {
		return fmt.Errorf("%w: group id is required", store.ErrInvalidArgument)
	}
	if req.CreatorId == "" {
		return fmt.Errorf("%w: creator id is required", store.ErrInvalidArgument)
	}
	if !req.MinStake.IsPositive() {
		return fmt.Errorf("%w: min stake must be positive, got %s", store.ErrInvalidArgument, req.MinStake.String())
	}
	if len(req.Outcomes) < 2 {
		return fmt.Errorf("%w: a bet needs at least two outcomes, got %d", store.ErrInvalidArgument, len(req.Outcomes))
	}
	for i, label := range req.Outcomes {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("%w: outcome %d has an empty label", store.ErrInvalidArgument, i)
		}
	}
	return nil
}

// CreateBet inserts an OPEN bet with a zero pot and its ordered outcome set
func (s *Service) CreateBet(ctx context.Context, q store.Querier, req models.CreateBetRequest) (*models.Bet, error) {
	if err := ValidateCreateBet(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	bet := &models.Bet{
		Id:          uuid.New().String(),
		GroupId:     req.GroupId,
		CreatorId:   req.CreatorId,
		Title:       req.Title,
		Description: req.Description,
		MinStake:    req.MinStake,
		Status:      models.BetStatusOpen,
		Deadline:    req.Deadline.UTC(),
		TotalPot:    decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := q.ExecContext(ctx, s.dialect.rebind(queryInsertBet),
		bet.Id, bet.GroupId, bet.CreatorId, bet.Title, bet.Description,
		bet.MinStake.String(), bet.Deadline, now, now)
	if err != nil {
		return nil, fmt.Errorf("unable to insert bet: %w", err)
	}

	for i, label := range req.Outcomes {
		outcome := models.Outcome{
			Id:       uuid.New().String(),
			BetId:    bet.Id,
			Label:    strings.TrimSpace(label),
			Position: i,
		}
		if _, err := q.ExecContext(ctx, s.dialect.rebind(queryInsertOutcome), outcome.Id, outcome.BetId, outcome.Label, outcome.Position); err != nil {
			return nil, fmt.Errorf("unable to insert outcome %d: %w", i, err)
		}
		bet.Outcomes = append(bet.Outcomes, outcome)
	}

	zap.L().Info("Bet created",
		zap.String("bet_id", bet.Id),
		zap.String("group_id", bet.GroupId),
		zap.String("creator_id", bet.CreatorId),
		zap.String("min_stake", bet.MinStake.String()),
		zap.Int("outcomes", len(bet.Outcomes)))

	return bet, nil
}

// GetBet loads a bet with its outcomes, failing with ErrNotFound
func (s *Service) GetBet(ctx context.Context, q store.Querier, betId string) (*models.Bet, error) {
	if q == nil {
		q = s.db
	}

	bet, _, err := s.getBetVersion(ctx, q, betId)
	if err != nil {
		return nil, err
	}
	return bet, nil
}

func (s *Service) getBetVersion(ctx context.Context, q store.Querier, betId string) (*models.Bet, int64, error) {
	row := q.QueryRowContext(ctx, s.dialect.rebind(queryGetBet), betId)
	bet, version, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("%w: bet %s", store.ErrNotFound, betId)
	}
	if err != nil {
		zap.L().Error("Failed to query bet", zap.String("bet_id", betId), zap.Error(err))
		return nil, 0, fmt.Errorf("unable to query bet: %w", err)
	}

	outcomes, err := s.getOutcomes(ctx, q, betId)
	if err != nil {
		return nil, 0, err
	}
	bet.Outcomes = outcomes
	return bet, version, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBet(row rowScanner) (*models.Bet, int64, error) {
	var bet models.Bet
	var status, minStakeStr, potStr string
	var version int64
	err := row.Scan(&bet.Id, &bet.GroupId, &bet.CreatorId, &bet.Title, &bet.Description,
		&minStakeStr, &status, &bet.Deadline, &potStr, &version, &bet.CreatedAt, &bet.UpdatedAt)
	if err != nil {
		return nil, 0, err
	}
	bet.Status = models.BetStatus(status)

	if bet.MinStake, err = decimal.NewFromString(minStakeStr); err != nil {
		return nil, 0, fmt.Errorf("failed to parse min stake '%s': %w", minStakeStr, err)
	}
	if bet.TotalPot, err = decimal.NewFromString(potStr); err != nil {
		return nil, 0, fmt.Errorf("failed to parse total pot '%s': %w", potStr, err)
	}
	return &bet, version, nil
}

func (s *Service) getOutcomes(ctx context.Context, q store.Querier, betId string) ([]models.Outcome, error) {
	rows, err := q.QueryContext(ctx, s.dialect.rebind(queryGetOutcomes), betId)
	if err != nil {
		return nil, fmt.Errorf("unable to query outcomes: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var outcomes []models.Outcome
	for rows.Next() {
		var o models.Outcome
		if err := rows.Scan(&o.Id, &o.BetId, &o.Label, &o.Position); err != nil {
			return nil, fmt.Errorf("unable to scan outcome row: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcome rows: %w", err)
	}
	return outcomes, nil
}

// RecordStake increments the pot of an OPEN bet
func (s *Service) RecordStake(ctx context.Context, q store.Querier, betId string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: stake amount must be positive", store.ErrInvalidArgument)
	}

	bet, version, err := s.getBetVersion(ctx, q, betId)
	if err != nil {
		return err
	}
	if bet.Status != models.BetStatusOpen {
		return fmt.Errorf("%w: bet %s is %s", store.ErrInvalidState, betId, bet.Status)
	}

	newPot := bet.TotalPot.Add(amount)
	result, err := q.ExecContext(ctx, s.dialect.rebind(queryUpdateBetPot), newPot.String(), time.Now().UTC(), betId, version)
	if err != nil {
		return fmt.Errorf("failed to update pot: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: pot update failed - %w", store.ErrInternal, store.ErrConcurrentModification)
	}

	zap.L().Debug("Pot updated",
		zap.String("bet_id", betId),
		zap.String("old_pot", bet.TotalPot.String()),
		zap.String("new_pot", newPot.String()))
	return nil
}

// TransitionToResolved moves an OPEN bet to RESOLVED
func (s *Service) TransitionToResolved(ctx context.Context, q store.Querier, betId string) error {
	return s.transition(ctx, q, betId, models.BetStatusResolved)
}

// TransitionToCancelled moves an OPEN bet to CANCELLED
func (s *Service) TransitionToCancelled(ctx context.Context, q store.Querier, betId string) error {
	return s.transition(ctx, q, betId, models.BetStatusCancelled)
}

func (s *Service) transition(ctx context.Context, q store.Querier, betId string, to models.BetStatus) error {
	result, err := q.ExecContext(ctx, s.dialect.rebind(queryTransitionBet), string(to), time.Now().UTC(), betId)
	if err != nil {
		return fmt.Errorf("failed to transition bet: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either unknown or already terminal; tell them apart for the caller
		bet, _, err := s.getBetVersion(ctx, q, betId)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: bet %s is %s", store.ErrInvalidState, betId, bet.Status)
	}

	zap.L().Info("Bet transitioned", zap.String("bet_id", betId), zap.String("status", string(to)))
	return nil
}

// ListBets returns bets newest first, filtered by group and status when given
func (s *Service) ListBets(ctx context.Context, groupId string, status models.BetStatus) ([]models.Bet, error) {
	var rows *sql.Rows
	var err error
	if groupId != "" {
		rows, err = s.db.QueryContext(ctx, s.dialect.rebind(queryListBetsByGroup), groupId, string(status), string(status))
	} else {
		rows, err = s.db.QueryContext(ctx, s.dialect.rebind(queryListBets), string(status), string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query bets: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var bets []models.Bet
	for rows.Next() {
		bet, _, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan bet row: %w", err)
		}
		bets = append(bets, *bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bet rows: %w", err)
	}

	// outcomes are loaded after the cursor is closed; sqlite in-memory runs on one connection
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("unable to close bet rows: %w", err)
	}
	for i := range bets {
		if bets[i].Outcomes, err = s.getOutcomes(ctx, s.db, bets[i].Id); err != nil {
			return nil, err
		}
	}
	return bets, nil
}
