// Package queue hands submitted bilan imports over to the analysis workers
// through Redis. Immediate publications are pushed onto a list; scheduled ones
// are parked in a sorted set scored by their publication time.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultQueue is the Redis list consumed by the FEC analysis workers.
const DefaultQueue = "bilan:imports"

// Message is the envelope written to Redis.
type Message struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	PublishAt  time.Time `json:"publish_at"`
	Scheduled  bool      `json:"scheduled"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Payload    any       `json:"payload"`
}

// Publisher accepts messages for asynchronous processing.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// RedisPublisher writes messages to a Redis list (immediate) or sorted set (scheduled).
type RedisPublisher struct {
	rdb       *redis.Client
	queueName string
	log       *zap.Logger
}

func NewRedisPublisher(rdb *redis.Client, queueName string, log *zap.Logger) *RedisPublisher {
	if queueName == "" {
		queueName = DefaultQueue
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisPublisher{rdb: rdb, queueName: queueName, log: log}
}

// ScheduledKey is the sorted set holding deferred publications.
func (p *RedisPublisher) ScheduledKey() string { return p.queueName + ":scheduled" }

func (p *RedisPublisher) QueueName() string { return p.queueName }

func (p *RedisPublisher) Publish(ctx context.Context, msg Message) error {
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if msg.Scheduled {
		z := redis.Z{Score: float64(msg.PublishAt.Unix()), Member: string(body)}
		if err := p.rdb.ZAdd(ctx, p.ScheduledKey(), z).Err(); err != nil {
			return fmt.Errorf("redis ZADD: %w", err)
		}
	} else if err := p.rdb.LPush(ctx, p.queueName, string(body)).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}
	p.log.Info("published message",
		zap.String("id", msg.ID),
		zap.String("kind", msg.Kind),
		zap.Bool("scheduled", msg.Scheduled),
		zap.Time("publish_at", msg.PublishAt),
		zap.String("queue", p.queueName),
	)
	return nil
}

// Ping checks the Redis connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}

// LogPublisher only logs messages. Used when no Redis is configured.
type LogPublisher struct{ Log *zap.Logger }

func (p LogPublisher) Publish(_ context.Context, msg Message) error {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Warn("no queue configured, message dropped",
		zap.String("id", msg.ID),
		zap.String("kind", msg.Kind),
		zap.Bool("scheduled", msg.Scheduled),
	)
	return nil
}
