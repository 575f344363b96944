package settlement

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"group-wager-go/internal/locks"
	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine is the only code path that moves a bet into a terminal state.
// Every resolve or cancel runs under the bet lock and the wallet locks of
// everyone it credits, inside one database transaction.
type Engine struct {
	store  store.LedgerStore
	locks  *locks.LedgerLocks
	config models.SettlementConfig
}

func NewEngine(s store.LedgerStore, l *locks.LedgerLocks, cfg models.SettlementConfig) *Engine {
	return &Engine{store: s, locks: l, config: cfg}
}

// Resolve pays out the pot of betId to the stakers on winningOutcomeId
func (e *Engine) Resolve(ctx context.Context, betId, winningOutcomeId, requesterId string) (*models.SettlementResult, error) {
	unlockBet := e.locks.Bet(betId)
	defer unlockBet()

	unlockUsers, err := e.lockParticipants(ctx, betId)
	if err != nil {
		return nil, err
	}
	defer unlockUsers()

	var result *models.SettlementResult
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		bet, err := e.loadForSettlement(ctx, tx, betId, requesterId)
		if err != nil {
			return err
		}
		if !bet.HasOutcome(winningOutcomeId) {
			return fmt.Errorf("%w: outcome %s does not belong to bet %s", store.ErrInvalidArgument, winningOutcomeId, betId)
		}

		participations, err := e.store.ParticipationsFor(ctx, tx, betId)
		if err != nil {
			return err
		}

		d, err := ComputeDistribution(participations, winningOutcomeId, e.config.FeeRate, e.config.MoneyScale)
		if err != nil {
			return err
		}
		if !d.Pot.Equal(bet.TotalPot) {
			zap.L().Error("Pot does not match participations",
				zap.String("bet_id", betId),
				zap.String("total_pot", bet.TotalPot.String()),
				zap.String("participation_sum", d.Pot.String()))
			return fmt.Errorf("%w: pot mismatch on bet %s: total_pot=%s, participations=%s", store.ErrInternal, betId, bet.TotalPot.String(), d.Pot.String())
		}

		result = &models.SettlementResult{
			Settlement: models.Settlement{
				BetId:            betId,
				Status:           models.BetStatusResolved,
				WinningOutcomeId: winningOutcomeId,
				Pot:              d.Pot,
				Fee:              d.Fee,
				NetPot:           d.NetPot,
				Distributed:      d.Distributed,
				Absorbed:         d.Absorbed,
				WinnerCount:      len(d.Shares),
				SettledBy:        requesterId,
				SettledAt:        time.Now().UTC(),
			},
		}

		for _, share := range d.Shares {
			payout := models.Payout{
				UserId:          share.Participation.UserId,
				ParticipationId: share.Participation.Id,
				Stake:           share.Participation.Amount,
				Amount:          share.Amount,
			}
			if share.Amount.IsPositive() {
				transaction, err := e.store.Credit(ctx, tx, store.MovementParams{
					UserId:      share.Participation.UserId,
					Kind:        models.KindPayout,
					Amount:      share.Amount,
					BetId:       betId,
					Description: fmt.Sprintf("Payout: %s", bet.Title),
				})
				if err != nil {
					return fmt.Errorf("failed to credit payout to %s: %w", share.Participation.UserId, err)
				}
				payout.TransactionId = transaction.Id
			}
			result.Payouts = append(result.Payouts, payout)
		}

		if err := e.collectFee(ctx, tx, bet, d.Fee.Add(d.Absorbed), result); err != nil {
			return err
		}

		if err := e.store.TransitionToResolved(ctx, tx, betId); err != nil {
			return err
		}
		return e.store.RecordSettlement(ctx, tx, result.Settlement)
	})
	if err != nil {
		zap.L().Warn("Bet resolution rejected",
			zap.String("bet_id", betId),
			zap.String("requester_id", requesterId),
			zap.String("kind", store.Kind(err)),
			zap.Error(err))
		return nil, err
	}

	zap.L().Info("Bet resolved",
		zap.String("bet_id", betId),
		zap.String("winning_outcome_id", winningOutcomeId),
		zap.String("pot", result.Settlement.Pot.String()),
		zap.String("fee", result.Settlement.Fee.String()),
		zap.String("distributed", result.Settlement.Distributed.String()),
		zap.String("absorbed", result.Settlement.Absorbed.String()),
		zap.Int("winners", result.Settlement.WinnerCount))
	return result, nil
}

// Cancel refunds every stake in full and closes the bet
func (e *Engine) Cancel(ctx context.Context, betId, requesterId string) (*models.SettlementResult, error) {
	unlockBet := e.locks.Bet(betId)
	defer unlockBet()

	unlockUsers, err := e.lockParticipants(ctx, betId)
	if err != nil {
		return nil, err
	}
	defer unlockUsers()

	var result *models.SettlementResult
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		bet, err := e.loadForSettlement(ctx, tx, betId, requesterId)
		if err != nil {
			return err
		}

		participations, err := e.store.ParticipationsFor(ctx, tx, betId)
		if err != nil {
			return err
		}

		refunded := decimal.Zero
		result = &models.SettlementResult{}
		for _, p := range participations {
			transaction, err := e.store.Credit(ctx, tx, store.MovementParams{
				UserId:      p.UserId,
				Kind:        models.KindWithdrawal,
				Amount:      p.Amount,
				BetId:       betId,
				Description: fmt.Sprintf("Refund: %s", bet.Title),
			})
			if err != nil {
				return fmt.Errorf("failed to refund %s: %w", p.UserId, err)
			}
			refunded = refunded.Add(p.Amount)
			result.Payouts = append(result.Payouts, models.Payout{
				UserId:          p.UserId,
				ParticipationId: p.Id,
				Stake:           p.Amount,
				Amount:          p.Amount,
				TransactionId:   transaction.Id,
			})
		}

		if !refunded.Equal(bet.TotalPot) {
			zap.L().Error("Pot does not match participations",
				zap.String("bet_id", betId),
				zap.String("total_pot", bet.TotalPot.String()),
				zap.String("participation_sum", refunded.String()))
			return fmt.Errorf("%w: pot mismatch on bet %s: total_pot=%s, participations=%s", store.ErrInternal, betId, bet.TotalPot.String(), refunded.String())
		}

		result.Settlement = models.Settlement{
			BetId:       betId,
			Status:      models.BetStatusCancelled,
			Pot:         bet.TotalPot,
			Fee:         decimal.Zero,
			NetPot:      bet.TotalPot,
			Distributed: refunded,
			Absorbed:    decimal.Zero,
			WinnerCount: len(participations),
			SettledBy:   requesterId,
			SettledAt:   time.Now().UTC(),
		}

		if err := e.store.TransitionToCancelled(ctx, tx, betId); err != nil {
			return err
		}
		return e.store.RecordSettlement(ctx, tx, result.Settlement)
	})
	if err != nil {
		zap.L().Warn("Bet cancellation rejected",
			zap.String("bet_id", betId),
			zap.String("requester_id", requesterId),
			zap.String("kind", store.Kind(err)),
			zap.Error(err))
		return nil, err
	}

	zap.L().Info("Bet cancelled",
		zap.String("bet_id", betId),
		zap.String("refunded", result.Settlement.Distributed.String()),
		zap.Int("participations", len(result.Payouts)))
	return result, nil
}

// loadForSettlement applies the shared checks: the bet exists, is OPEN, and
// requesterId created it. The order matters: a closed bet reports InvalidState
// to everyone, including non-creators.
func (e *Engine) loadForSettlement(ctx context.Context, tx *sql.Tx, betId, requesterId string) (*models.Bet, error) {
	bet, err := e.store.GetBet(ctx, tx, betId)
	if err != nil {
		return nil, err
	}
	if bet.Status != models.BetStatusOpen {
		return nil, fmt.Errorf("%w: bet %s is %s", store.ErrInvalidState, betId, bet.Status)
	}
	if requesterId == "" || requesterId != bet.CreatorId {
		return nil, fmt.Errorf("%w: only the creator of bet %s may settle it", store.ErrUnauthorized, betId)
	}
	return bet, nil
}

// collectFee routes the retained amount to the fee account when one is
// configured. Without one the amount is only recorded on the settlement row.
func (e *Engine) collectFee(ctx context.Context, tx *sql.Tx, bet *models.Bet, retained decimal.Decimal, result *models.SettlementResult) error {
	if e.config.FeeAccountId == "" || !retained.IsPositive() {
		return nil
	}

	transaction, err := e.store.Credit(ctx, tx, store.MovementParams{
		UserId:      e.config.FeeAccountId,
		Kind:        models.KindFee,
		Amount:      retained,
		BetId:       bet.Id,
		Description: fmt.Sprintf("Platform fee: %s", bet.Title),
	})
	if err != nil {
		return fmt.Errorf("failed to credit platform fee: %w", err)
	}
	result.FeeAccountId = e.config.FeeAccountId
	result.FeeTransactionId = transaction.Id
	return nil
}

// lockParticipants takes the wallet locks of everyone a settlement may
// credit. The caller already holds the bet lock, so the participant set
// cannot grow before the transaction starts.
func (e *Engine) lockParticipants(ctx context.Context, betId string) (func(), error) {
	participations, err := e.store.ParticipationsFor(ctx, nil, betId)
	if err != nil {
		return nil, err
	}

	userIds := make([]string, 0, len(participations)+1)
	for _, p := range participations {
		userIds = append(userIds, p.UserId)
	}
	userIds = append(userIds, e.config.FeeAccountId)

	return e.locks.Users(userIds...), nil
}
