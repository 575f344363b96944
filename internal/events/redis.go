package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"group-wager-go/internal/models"

	"github.com/redis/go-redis/v9"
)

const potSnapshotTTL = 24 * time.Hour

// RedisPublisher announces bet activity on the group channel consumed by the
// chat service, and keeps the latest pot of each bet under a short-lived key.
type RedisPublisher struct {
	Client        *redis.Client
	ChannelPrefix string
}

func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

func NewRedisPublisher(c *redis.Client, channelPrefix string) *RedisPublisher {
	return &RedisPublisher{Client: c, ChannelPrefix: channelPrefix}
}

// channel returns the pub/sub channel for an event, or "" if the event has no group
func (r *RedisPublisher) channel(e models.LedgerEvent) string {
	if e.GroupId == "" {
		return ""
	}
	return r.ChannelPrefix + e.GroupId
}

func potKey(betId string) string { return "bet:pot:" + betId }

func (r *RedisPublisher) Publish(ctx context.Context, e models.LedgerEvent) error {
	channel := r.channel(e)
	if channel == "" {
		// wallet movements are private to the user
		return nil
	}

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode ledger event: %w", err)
	}

	pipe := r.Client.TxPipeline()
	pipe.Publish(ctx, channel, b)
	if e.BetId != "" {
		pipe.Set(ctx, potKey(e.BetId), e.TotalPot.String(), potSnapshotTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

func (r *RedisPublisher) Close() error {
	return r.Client.Close()
}
