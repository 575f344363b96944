package api

import (
	"context"
	"time"

	"group-wager-go/internal/models"

	"go.uber.org/zap"
)

// Resolve pays the pot of a bet to the stakers on the winning outcome.
// Only the bet creator may resolve.
func (s *WagerService) Resolve(ctx context.Context, betId, winningOutcomeId, requesterId string) (*models.SettlementResult, error) {
	started := time.Now()
	result, err := s.engine.Resolve(ctx, betId, winningOutcomeId, requesterId)
	s.metrics.Observe("resolve", started, err)
	if err != nil {
		return nil, err
	}

	st := result.Settlement
	s.metrics.Moved(models.KindPayout, st.Distributed)
	s.metrics.Retained(st.Fee.Add(st.Absorbed))
	if result.FeeTransactionId != "" {
		s.metrics.Moved(models.KindFee, st.Fee.Add(st.Absorbed))
	}

	s.announceSettlement(ctx, models.EventBetResolved, models.KindPayout, result)
	return result, nil
}

// Cancel refunds every stake on a bet. Only the bet creator may cancel.
func (s *WagerService) Cancel(ctx context.Context, betId, requesterId string) (*models.SettlementResult, error) {
	started := time.Now()
	result, err := s.engine.Cancel(ctx, betId, requesterId)
	s.metrics.Observe("cancel", started, err)
	if err != nil {
		return nil, err
	}

	s.metrics.Moved(models.KindWithdrawal, result.Settlement.Distributed)
	s.announceSettlement(ctx, models.EventBetCancelled, models.KindWithdrawal, result)
	return result, nil
}

func (s *WagerService) announceSettlement(ctx context.Context, eventType string, kind models.TransactionKind, result *models.SettlementResult) {
	st := result.Settlement

	var groupId, title string
	if bet, err := s.store.GetBet(ctx, nil, st.BetId); err == nil {
		groupId, title = bet.GroupId, bet.Title
	} else {
		zap.L().Warn("Failed to reload settled bet for announcement", zap.String("bet_id", st.BetId), zap.Error(err))
	}

	ts := st.SettledAt.UnixMilli()
	evts := make([]models.LedgerEvent, 0, len(result.Payouts)+2)
	for _, p := range result.Payouts {
		if p.TransactionId == "" {
			continue
		}
		evts = append(evts, models.LedgerEvent{
			Type:      models.EventWalletMovement,
			BetId:     st.BetId,
			GroupId:   groupId,
			UserId:    p.UserId,
			Kind:      kind,
			Amount:    p.Amount,
			Reference: p.TransactionId,
			TsUnixMs:  ts,
		})
	}
	if result.FeeTransactionId != "" {
		evts = append(evts, models.LedgerEvent{
			Type:      models.EventWalletMovement,
			BetId:     st.BetId,
			GroupId:   groupId,
			UserId:    result.FeeAccountId,
			Kind:      models.KindFee,
			Amount:    st.Fee.Add(st.Absorbed),
			Reference: result.FeeTransactionId,
			TsUnixMs:  ts,
		})
	}
	evts = append(evts, models.LedgerEvent{
		Type:        eventType,
		BetId:       st.BetId,
		GroupId:     groupId,
		UserId:      st.SettledBy,
		OutcomeId:   st.WinningOutcomeId,
		Amount:      st.Distributed,
		TotalPot:    st.Pot,
		Description: title,
		TsUnixMs:    ts,
	})

	s.publish(ctx, evts...)
}
