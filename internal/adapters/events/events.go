// Package events publishes scoring lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/okian/assay/internal/domain/model"
	"github.com/okian/assay/pkg/logger"
	"github.com/okian/assay/pkg/metrics"
)

// Type names a lifecycle event.
type Type string

// Scoring lifecycle events.
const (
	ScoringStarted   Type = "ScoringStarted"
	ScoringCompleted Type = "ScoringCompleted"
	ScoringFailed    Type = "ScoringFailed"
)

// Event is one observable step of a scoring run.
type Event struct {
	ID                string             `json:"id"`
	Type              Type               `json:"type"`
	SessionID         string             `json:"session_id"`
	ResultID          string             `json:"result_id,omitempty"`
	Goal              model.Goal         `json:"goal,omitempty"`
	Status            model.ResultStatus `json:"status,omitempty"`
	OverallPercentage *float64           `json:"overall_percentage,omitempty"`
	Reason            string             `json:"reason,omitempty"`
	OccurredAt        time.Time          `json:"occurred_at"`
}

// New stamps an event with a fresh id and the current time.
func New(t Type, sessionID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		SessionID:  sessionID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LogPublisher writes events to the structured log.
type LogPublisher struct {
	log logger.Logger
}

// NewLogPublisher returns a publisher backed by l, or the global logger when nil.
func NewLogPublisher(l logger.Logger) *LogPublisher {
	if l == nil {
		l = logger.Get().Named("events")
	}
	return &LogPublisher{log: l}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	fields := []logger.Field{
		logger.String("eventID", e.ID),
		logger.SessionID(e.SessionID),
	}
	if e.Status != "" {
		fields = append(fields, logger.String("status", string(e.Status)))
	}
	if e.OverallPercentage != nil {
		fields = append(fields, logger.Float64("overallPercentage", *e.OverallPercentage))
	}
	if e.Reason != "" {
		fields = append(fields, logger.String("reason", e.Reason))
	}
	if e.Type == ScoringFailed {
		p.log.Warn(ctx, string(e.Type), fields...)
	} else {
		p.log.Info(ctx, string(e.Type), fields...)
	}
	metrics.RecordEventPublished(string(e.Type))
	return nil
}

// RedisPublisher publishes events as JSON on a pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisPublisher returns a publisher writing to channel.
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		metrics.RecordEventPublishError(string(e.Type))
		return fmt.Errorf("publish %s to %s: %w", e.Type, p.channel, err)
	}
	return nil
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory. Tests use it to assert on
// the lifecycle of a run.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Types returns the recorded event types in publication order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
