// Package eventbus emits domain events after a transaction has committed.
// Delivery beyond the publisher (fan-out, push notifications) is not handled here.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang-scheduled-task/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const TopicScheduledTaskMaterialized = "scheduled_task.materialized"

type Event struct {
	Topic      string          `json:"topic"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEvent(topic string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return Event{Topic: topic, OccurredAt: time.Now().UTC(), Payload: raw}, nil
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type logPublisher struct {
	log *logger.Logger
}

// NewLogPublisher writes events to the structured log only.
func NewLogPublisher(log *logger.Logger) Publisher {
	return &logPublisher{log: log}
}

func (p *logPublisher) Publish(ctx context.Context, event Event) error {
	p.log.InfoContext(ctx, "Event published",
		logger.StringField("topic", event.Topic),
		logger.StringField("payload", string(event.Payload)),
	)
	return nil
}

func (p *logPublisher) Close() error { return nil }

type redisPublisher struct {
	client  *redis.Client
	channel string
	log     *logger.Logger
}

// NewRedisPublisher publishes events on a redis pub/sub channel.
func NewRedisPublisher(redisURL, channel string, log *logger.Logger) (Publisher, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	if channel == "" {
		channel = TopicScheduledTaskMaterialized
	}
	return &redisPublisher{client: client, channel: channel, log: log}, nil
}

func (p *redisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.log.WarnContext(ctx, "Failed to publish event",
			logger.StringField("topic", event.Topic),
			logger.StringField("channel", p.channel),
			logger.ErrorField(err),
		)
		return err
	}
	return nil
}

func (p *redisPublisher) Close() error {
	return p.client.Close()
}

// New picks the publisher named by driver.
func New(driver, redisURL, channel string, log *logger.Logger) (Publisher, error) {
	switch driver {
	case "", "log":
		return NewLogPublisher(log), nil
	case "redis":
		return NewRedisPublisher(redisURL, channel, log)
	default:
		return nil, fmt.Errorf("unknown event driver %q", driver)
	}
}
