package events

import (
	"context"
	"errors"
	"testing"

	"group-wager-go/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []models.LedgerEvent
	err    error
	closed bool
}

func (r *recordingPublisher) Publish(_ context.Context, e models.LedgerEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return nil
}

func TestMultiPublisher_TriesEverySink(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("broker down")}
	healthy := &recordingPublisher{}

	m := NewMultiPublisher()
	m.Add("kafka", failing)
	m.Add("redis", healthy)
	require.Equal(t, 2, m.Len())

	event := models.LedgerEvent{Type: models.EventStakePlaced, BetId: "b1", Amount: decimal.NewFromInt(5)}
	err := m.Publish(context.Background(), event)

	assert.ErrorContains(t, err, "broker down")
	assert.Len(t, failing.events, 1)
	require.Len(t, healthy.events, 1)
	assert.Equal(t, "b1", healthy.events[0].BetId)

	require.NoError(t, m.Close())
	assert.True(t, failing.closed)
	assert.True(t, healthy.closed)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), models.LedgerEvent{}))
	assert.NoError(t, p.Close())
}

func TestRedisPublisher_SkipsEventsWithoutGroup(t *testing.T) {
	// The client is never dialed for a groupless event
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	p := NewRedisPublisher(client, "group:")
	assert.Equal(t, "", p.channel(models.LedgerEvent{UserId: "u1"}))
	assert.Equal(t, "group:g1", p.channel(models.LedgerEvent{GroupId: "g1"}))
	assert.NoError(t, p.Publish(context.Background(), models.LedgerEvent{Type: models.EventWalletMovement, UserId: "u1"}))
	assert.Equal(t, "bet:pot:b1", potKey("b1"))
}

func TestNewKafkaWriter_SplitsBrokers(t *testing.T) {
	w := NewKafkaWriter("a:9092,b:9092", "wager_ledger_events")
	defer w.Close()

	assert.Equal(t, "wager_ledger_events", w.Topic)
	assert.NotNil(t, w.Addr)
}
