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

package api

import (
	"context"
	"fmt"
	"time"

	"group-wager-go/internal/events"
	"group-wager-go/internal/locks"
	"group-wager-go/internal/metrics"
	"group-wager-go/internal/models"
	"group-wager-go/internal/settlement"
	"group-wager-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// WagerService is the entry point for every ledger operation. It owns the
// lock table shared with the settlement engine, so stakes and settlements on
// the same bet or wallet never interleave.
type WagerService struct {
	store     store.LedgerStore
	engine    *settlement.Engine
	locks     *locks.LedgerLocks
	config    models.SettlementConfig
	publisher events.Publisher
	metrics   *metrics.Collectors
}

func NewWagerService(s store.LedgerStore, cfg models.SettlementConfig, publisher events.Publisher, collectors *metrics.Collectors) *WagerService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	l := locks.NewLedgerLocks()
	return &WagerService{
		store:     s,
		engine:    settlement.NewEngine(s, l, cfg),
		locks:     l,
		config:    cfg,
		publisher: publisher,
		metrics:   collectors,
	}
}

func (s *WagerService) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// checkAmount rejects non-positive amounts and amounts finer than the money scale
func (s *WagerService) checkAmount(name string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be positive, got %s", store.ErrInvalidArgument, name, amount.String())
	}
	if !amount.Equal(amount.Truncate(s.config.MoneyScale)) {
		return fmt.Errorf("%w: %s %s has more than %d decimal places", store.ErrInvalidArgument, name, amount.String(), s.config.MoneyScale)
	}
	return nil
}

// publish hands committed events to the configured sinks. The ledger change
// is already durable, so failures are only counted and logged.
func (s *WagerService) publish(ctx context.Context, evts ...models.LedgerEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	now := time.Now().UnixMilli()
	for _, e := range evts {
		if e.TsUnixMs == 0 {
			e.TsUnixMs = now
		}
		if err := s.publisher.Publish(ctx, e); err != nil {
			if s.metrics != nil {
				s.metrics.PublishErrors.Inc()
			}
			zap.L().Warn("Ledger event not delivered",
				zap.String("type", e.Type),
				zap.String("bet_id", e.BetId),
				zap.String("user_id", e.UserId),
				zap.Error(err))
		}
	}
}

// movementEvent describes a committed wallet transaction
func movementEvent(t *models.Transaction, groupId string) models.LedgerEvent {
	return models.LedgerEvent{
		Type:        models.EventWalletMovement,
		BetId:       t.BetId,
		GroupId:     groupId,
		UserId:      t.UserId,
		Kind:        t.Kind,
		Amount:      t.Amount.Abs(),
		Reference:   t.Id,
		Description: t.Description,
		TsUnixMs:    t.CreatedAt.UnixMilli(),
	}
}
