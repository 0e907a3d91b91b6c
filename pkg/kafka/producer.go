package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var errNoBrokers = errors.New("kafka brokers are required")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes storefront events to Kafka. Messages with the same key land
// on the same partition.
type Producer struct {
	w   messageWriter
	now func() time.Time
}

func NewProducer(ctx context.Context, cfg config.KafkaConfig, logg *logger.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errNoBrokers
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            5,
		WriteTimeout:           cfg.WriteTimeout,
		BatchTimeout:           20 * time.Millisecond,
		AllowAutoTopicCreation: false,
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "brokers", cfg.Brokers), "kafka producer initialized")
	}
	return &Producer{w: w, now: time.Now}, nil
}

// Publish writes one message synchronously. Kafka assigns no server id, so
// the returned id is always empty.
func (p *Producer) Publish(ctx context.Context, topic string, key string, data []byte, attrs map[string]string) (string, error) {
	if topic == "" {
		return "", errors.New("kafka topic is required")
	}
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   data,
		Time:    p.now(),
		Headers: headers(attrs),
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return "", fmt.Errorf("write kafka message: %w", err)
	}
	return "", nil
}

func (p *Producer) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}

func headers(attrs map[string]string) []kafka.Header {
	if len(attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, kafka.Header{Key: k, Value: []byte(attrs[k])})
	}
	return out
}
