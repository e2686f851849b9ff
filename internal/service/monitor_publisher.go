package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Monitor message types.
const (
	MonitorAttemptStarted   = "attempt_started"
	MonitorAttemptSubmitted = "attempt_submitted"
	MonitorAttemptOverdue   = "attempt_overdue"
	MonitorProctorEvent     = "proctor_event"
)

// MonitorMessage is one live-monitor notification for an exam's owner.
type MonitorMessage struct {
	Type      string          `json:"type"`
	ExamID    uuid.UUID       `json:"exam_id"`
	AttemptID uuid.UUID       `json:"attempt_id"`
	UserID    int             `json:"user_id"`
	EventType model.EventType `json:"event_type,omitempty"`
	Score     *int            `json:"score,omitempty"`
	At        time.Time       `json:"at"`
}

// MonitorPublisher fans monitor messages out to live subscribers.
type MonitorPublisher interface {
	Publish(ctx context.Context, msg MonitorMessage) error
}

// RedisMonitor publishes on the exam's Redis Pub/Sub monitor channel.
type RedisMonitor struct {
	rdb *redis.Client
}

// NewRedisMonitor creates a new RedisMonitor.
func NewRedisMonitor(rdb *redis.Client) *RedisMonitor {
	return &RedisMonitor{rdb: rdb}
}

// Publish serializes msg and publishes it. Delivery is best-effort: with no
// subscriber the message is simply dropped by Redis.
func (m *RedisMonitor) Publish(ctx context.Context, msg MonitorMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return m.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(msg.ExamID.String()), payload).Err()
}

// Feed subscribes to the exam's monitor channel and streams raw JSON payloads
// until ctx is done. The returned channel is closed when the subscription ends.
func (m *RedisMonitor) Feed(ctx context.Context, examID uuid.UUID) (<-chan string, error) {
	pubsub := m.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
	// Wait for the subscription confirmation so early publishes are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
