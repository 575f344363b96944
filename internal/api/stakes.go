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

// PlaceStake records one stake: the participation row, the wallet debit and
// the pot increment commit together or not at all. The bet lock serializes
// it against other stakes and against settlement of the same bet.
func (s *WagerService) PlaceStake(ctx context.Context, req models.StakeRequest) (*models.StakeResult, error) {
	started := time.Now()

	zap.L().Info("Placing stake",
		zap.String("bet_id", req.BetId),
		zap.String("user_id", req.UserId),
		zap.String("outcome_id", req.OutcomeId),
		zap.String("amount", req.Amount.String()))

	result, bet, transaction, err := s.placeStake(ctx, req)
	s.metrics.Observe("place_stake", started, err)
	if err != nil {
		zap.L().Warn("Stake rejected",
			zap.String("bet_id", req.BetId),
			zap.String("user_id", req.UserId),
			zap.String("kind", store.Kind(err)),
			zap.Error(err))
		return nil, err
	}

	s.metrics.Moved(models.KindStake, req.Amount)
	s.publish(ctx,
		movementEvent(transaction, bet.GroupId),
		models.LedgerEvent{
			Type:      models.EventStakePlaced,
			BetId:     bet.Id,
			GroupId:   bet.GroupId,
			UserId:    req.UserId,
			OutcomeId: req.OutcomeId,
			Amount:    req.Amount,
			TotalPot:  result.TotalPot,
			Reference: result.Participation.Id,
		})

	zap.L().Info("Stake placed",
		zap.String("participation_id", result.Participation.Id),
		zap.String("bet_id", bet.Id),
		zap.String("user_id", req.UserId),
		zap.String("total_pot", result.TotalPot.String()))
	return result, nil
}

func (s *WagerService) placeStake(ctx context.Context, req models.StakeRequest) (*models.StakeResult, *models.Bet, *models.Transaction, error) {
	if req.UserId == "" || req.BetId == "" || req.OutcomeId == "" {
		return nil, nil, nil, fmt.Errorf("%w: user id, bet id and outcome id are required", store.ErrInvalidArgument)
	}
	if _, err := s.store.GetUserById(ctx, req.UserId); err != nil {
		return nil, nil, nil, err
	}

	unlockBet := s.locks.Bet(req.BetId)
	defer unlockBet()
	unlockUser := s.locks.Users(req.UserId)
	defer unlockUser()

	var (
		bet         *models.Bet
		transaction *models.Transaction
		result      *models.StakeResult
	)
	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		bet, err = s.store.GetBet(ctx, tx, req.BetId)
		if err != nil {
			return err
		}
		if bet.Status != models.BetStatusOpen {
			return fmt.Errorf("%w: bet %s is %s", store.ErrInvalidState, bet.Id, bet.Status)
		}
		if !bet.HasOutcome(req.OutcomeId) {
			return fmt.Errorf("%w: outcome %s does not belong to bet %s", store.ErrInvalidArgument, req.OutcomeId, bet.Id)
		}
		if err := s.checkAmount("stake", req.Amount); err != nil {
			return err
		}
		if req.Amount.LessThan(bet.MinStake) {
			return fmt.Errorf("%w: stake %s is below the minimum %s", store.ErrInvalidArgument, req.Amount.String(), bet.MinStake.String())
		}

		participation, err := s.store.RecordParticipation(ctx, tx, models.Participation{
			BetId:     bet.Id,
			UserId:    req.UserId,
			OutcomeId: req.OutcomeId,
			Amount:    req.Amount,
		})
		if err != nil {
			return err
		}

		transaction, err = s.store.Debit(ctx, tx, store.MovementParams{
			UserId:      req.UserId,
			Kind:        models.KindStake,
			Amount:      req.Amount,
			BetId:       bet.Id,
			Description: fmt.Sprintf("Stake: %s", bet.Title),
		})
		if err != nil {
			return err
		}

		if err := s.store.RecordStake(ctx, tx, bet.Id, req.Amount); err != nil {
			return err
		}

		result = &models.StakeResult{
			Participation: *participation,
			TotalPot:      bet.TotalPot.Add(req.Amount),
			NewBalance:    transaction.BalanceAfter,
			TransactionId: transaction.Id,
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return result, bet, transaction, nil
}
