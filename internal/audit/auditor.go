package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"group-wager-go/internal/metrics"
	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"go.uber.org/zap"
)

const (
	CheckBalance = "balance"
	CheckPot     = "pot"
)

type Config struct {
	Store    store.LedgerStore
	Metrics  *metrics.Collectors
	Interval time.Duration
}

// Finding is one invariant violation
type Finding struct {
	Check    string
	EntityId string
	Err      error
}

type Report struct {
	UsersChecked int
	BetsChecked  int
	OpenBets     int
	OverdueBets  []string
	Findings     []Finding
	FinishedAt   time.Time
}

func (r *Report) Healthy() bool {
	return len(r.Findings) == 0
}

// Auditor periodically re-derives every wallet balance from its transaction
// log and every open pot from its participations
type Auditor struct {
	store    store.LedgerStore
	metrics  *metrics.Collectors
	interval time.Duration

	mutex sync.RWMutex
	last  *Report

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewAuditor(cfg Config) *Auditor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Auditor{
		store:    cfg.Store,
		metrics:  cfg.Metrics,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start runs one pass synchronously, then keeps auditing in the background
func (a *Auditor) Start(ctx context.Context) error {
	zap.L().Info("Starting ledger auditor", zap.Duration("interval", a.interval))

	mostRecent, err := a.store.GetMostRecentTransactionTime(ctx)
	if err != nil {
		return fmt.Errorf("failed to get most recent transaction time: %w", err)
	}
	zap.L().Info("Ledger state at startup", zap.Time("most_recent_tx", mostRecent))

	if _, err := a.RunOnce(ctx); err != nil {
		return fmt.Errorf("initial audit failed: %w", err)
	}

	go a.loop(ctx)
	return nil
}

// Stop ends the background loop and waits for the running pass to finish
func (a *Auditor) Stop() {
	zap.L().Info("Stopping ledger auditor")
	close(a.stopChan)
	<-a.doneChan
	zap.L().Info("Ledger auditor stopped")
}

func (a *Auditor) loop(ctx context.Context) {
	defer close(a.doneChan)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := a.RunOnce(ctx); err != nil {
				zap.L().Error("Audit pass failed", zap.Error(err))
			}
		case <-a.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Last returns the most recent completed report, or nil before the first pass
func (a *Auditor) Last() *Report {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.last
}

// RunOnce checks every user balance and every OPEN pot. Violations are
// returned in the report; the error is reserved for failing to run at all.
func (a *Auditor) RunOnce(ctx context.Context) (*Report, error) {
	users, err := a.store.GetUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	bets, err := a.store.ListBets(ctx, "", models.BetStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to list open bets: %w", err)
	}

	report := &Report{UsersChecked: len(users), BetsChecked: len(bets), OpenBets: len(bets)}

	var wg sync.WaitGroup
	var mu sync.Mutex
	record := func(f Finding) {
		mu.Lock()
		report.Findings = append(report.Findings, f)
		mu.Unlock()
	}

	for _, user := range users {
		wg.Add(1)
		go func(userId string) {
			defer wg.Done()
			if err := a.store.ReconcileUserBalance(ctx, userId); err != nil {
				record(Finding{Check: CheckBalance, EntityId: userId, Err: err})
			}
		}(user.Id)
	}

	now := time.Now().UTC()
	for _, bet := range bets {
		if !bet.Deadline.IsZero() && bet.Deadline.Before(now) {
			report.OverdueBets = append(report.OverdueBets, bet.Id)
		}
		wg.Add(1)
		go func(betId string) {
			defer wg.Done()
			if err := a.store.VerifyPot(ctx, nil, betId); err != nil {
				record(Finding{Check: CheckPot, EntityId: betId, Err: err})
			}
		}(bet.Id)
	}
	wg.Wait()

	report.FinishedAt = time.Now().UTC()
	a.observe(report)

	a.mutex.Lock()
	a.last = report
	a.mutex.Unlock()

	return report, nil
}

func (a *Auditor) observe(report *Report) {
	for _, f := range report.Findings {
		zap.L().Error("Ledger invariant violated",
			zap.String("check", f.Check),
			zap.String("entity_id", f.EntityId),
			zap.Error(f.Err))
	}
	if len(report.OverdueBets) > 0 {
		zap.L().Warn("Open bets past their deadline", zap.Strings("bet_ids", report.OverdueBets))
	}

	zap.L().Info("Audit pass complete",
		zap.Int("users", report.UsersChecked),
		zap.Int("open_bets", report.OpenBets),
		zap.Int("findings", len(report.Findings)))

	if a.metrics == nil {
		return
	}
	a.metrics.AuditRuns.Inc()
	a.metrics.OpenBets.Set(float64(report.OpenBets))
	for _, f := range report.Findings {
		a.metrics.AuditFailures.WithLabelValues(f.Check).Inc()
	}
}
