package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"group-wager-go/internal/models"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes ledger events to one topic, keyed by bet id so every
// event of a bet lands on the same partition in order
type KafkaPublisher struct {
	Writer *kafka.Writer
	Topic  string
}

func NewKafkaWriter(brokers string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

func NewKafkaPublisher(w *kafka.Writer, topic string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e models.LedgerEvent) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode ledger event: %w", err)
	}

	key := e.BetId
	if key == "" {
		key = e.UserId
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: b,
		Time:  time.UnixMilli(e.TsUnixMs),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}
	if err := p.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write to %s: %w", p.Topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.Writer.Close()
}
