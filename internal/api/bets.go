package api

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"go.uber.org/zap"
)

// CreateBet opens a bet in a group. The creator must be a known user.
func (s *WagerService) CreateBet(ctx context.Context, req models.CreateBetRequest) (*models.Bet, error) {
	started := time.Now()
	bet, err := s.createBet(ctx, req)
	s.metrics.Observe("create_bet", started, err)
	if err != nil {
		zap.L().Warn("Bet creation rejected",
			zap.String("group_id", req.GroupId),
			zap.String("creator_id", req.CreatorId),
			zap.String("kind", store.Kind(err)),
			zap.Error(err))
		return nil, err
	}

	s.publish(ctx, models.LedgerEvent{
		Type:        models.EventBetCreated,
		BetId:       bet.Id,
		GroupId:     bet.GroupId,
		UserId:      bet.CreatorId,
		Amount:      bet.MinStake,
		TotalPot:    bet.TotalPot,
		Description: bet.Title,
	})
	return bet, nil
}

func (s *WagerService) createBet(ctx context.Context, req models.CreateBetRequest) (*models.Bet, error) {
	if req.CreatorId == "" {
		return nil, fmt.Errorf("%w: creator id is required", store.ErrInvalidArgument)
	}
	if err := s.checkAmount("min stake", req.MinStake); err != nil {
		return nil, err
	}
	if _, err := s.store.GetUserById(ctx, req.CreatorId); err != nil {
		return nil, err
	}

	var bet *models.Bet
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		bet, err = s.store.CreateBet(ctx, tx, req)
		return err
	})
	return bet, err
}

func (s *WagerService) GetBet(ctx context.Context, betId string) (*models.Bet, error) {
	if betId == "" {
		return nil, fmt.Errorf("%w: bet id is required", store.ErrInvalidArgument)
	}
	return s.store.GetBet(ctx, nil, betId)
}

// ListBets returns the bets of a group, optionally filtered by status
func (s *WagerService) ListBets(ctx context.Context, groupId string, status models.BetStatus) ([]models.Bet, error) {
	switch status {
	case "", models.BetStatusOpen, models.BetStatusResolved, models.BetStatusCancelled:
	default:
		return nil, fmt.Errorf("%w: unknown bet status %q", store.ErrInvalidArgument, status)
	}
	return s.store.ListBets(ctx, groupId, status)
}

// ParticipationsFor returns every stake on a bet in placement order
func (s *WagerService) ParticipationsFor(ctx context.Context, betId string) ([]models.Participation, error) {
	if _, err := s.GetBet(ctx, betId); err != nil {
		return nil, err
	}
	return s.store.ParticipationsFor(ctx, nil, betId)
}

// OutcomeTotals returns per-outcome staked sums for displaying odds
func (s *WagerService) OutcomeTotals(ctx context.Context, betId string) ([]models.OutcomeTotal, error) {
	if _, err := s.GetBet(ctx, betId); err != nil {
		return nil, err
	}
	return s.store.OutcomeTotals(ctx, betId)
}

// GetSettlement returns the audit row written when a bet was resolved or cancelled
func (s *WagerService) GetSettlement(ctx context.Context, betId string) (*models.Settlement, error) {
	return s.store.GetSettlement(ctx, betId)
}
