package metrics

import (
	"time"

	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Collectors groups every metric the wager service exports
type Collectors struct {
	Operations    *prometheus.CounterVec
	Duration      *prometheus.HistogramVec
	MoneyMoved    *prometheus.CounterVec
	FeesRetained  prometheus.Counter
	OpenBets      prometheus.Gauge
	AuditFailures *prometheus.CounterVec
	AuditRuns     prometheus.Counter
	PublishErrors prometheus.Counter
}

// New builds the collectors and registers them on reg
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_operations_total",
			Help: "ledger operations by name and result kind",
		}, []string{"operation", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wager_operation_duration_seconds",
			Help:    "ledger operation latency including lock wait",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		MoneyMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_money_moved_total",
			Help: "absolute amount moved through wallets by transaction kind",
		}, []string{"kind"}),
		FeesRetained: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wager_fees_retained_total",
			Help: "platform fee plus unclaimed pots retained on resolution",
		}),
		OpenBets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wager_open_bets",
			Help: "bets currently OPEN, refreshed by the auditor",
		}),
		AuditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_audit_failures_total",
			Help: "invariant violations found by the auditor",
		}, []string{"check"}),
		AuditRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wager_audit_runs_total",
			Help: "completed auditor passes",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wager_event_publish_errors_total",
			Help: "ledger events that at least one sink failed to accept",
		}),
	}

	reg.MustRegister(
		c.Operations,
		c.Duration,
		c.MoneyMoved,
		c.FeesRetained,
		c.OpenBets,
		c.AuditFailures,
		c.AuditRuns,
		c.PublishErrors,
	)
	return c
}

// Observe records one operation outcome. Safe on a nil receiver.
func (c *Collectors) Observe(operation string, started time.Time, err error) {
	if c == nil {
		return
	}
	c.Operations.WithLabelValues(operation, store.Kind(err)).Inc()
	c.Duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// Moved adds a committed wallet movement
func (c *Collectors) Moved(kind models.TransactionKind, amount decimal.Decimal) {
	if c == nil {
		return
	}
	c.MoneyMoved.WithLabelValues(string(kind)).Add(amount.Abs().InexactFloat64())
}

// Retained adds the amount a resolution kept back from winners
func (c *Collectors) Retained(amount decimal.Decimal) {
	if c == nil || !amount.IsPositive() {
		return
	}
	c.FeesRetained.Add(amount.InexactFloat64())
}
