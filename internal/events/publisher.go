package events

import (
	"context"
	"errors"

	"group-wager-go/internal/models"

	"go.uber.org/zap"
)

// Publisher receives ledger events after the change they describe has committed.
// A failed publish never undoes the ledger change.
type Publisher interface {
	Publish(ctx context.Context, event models.LedgerEvent) error
	Close() error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.LedgerEvent) error { return nil }
func (NopPublisher) Close() error                                      { return nil }

// MultiPublisher fans one event out to several sinks. Every sink is tried even
// if an earlier one fails; the errors are joined.
type MultiPublisher struct {
	sinks []namedPublisher
}

type namedPublisher struct {
	name string
	Publisher
}

func NewMultiPublisher() *MultiPublisher {
	return &MultiPublisher{}
}

// Add registers a sink under a name used in logs
func (m *MultiPublisher) Add(name string, p Publisher) {
	m.sinks = append(m.sinks, namedPublisher{name: name, Publisher: p})
}

// Len returns the number of registered sinks
func (m *MultiPublisher) Len() int {
	return len(m.sinks)
}

func (m *MultiPublisher) Publish(ctx context.Context, event models.LedgerEvent) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			zap.L().Warn("Failed to publish ledger event",
				zap.String("sink", sink.name),
				zap.String("type", event.Type),
				zap.String("bet_id", event.BetId),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiPublisher) Close() error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
