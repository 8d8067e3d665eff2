package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/assay/internal/domain/model"
	"github.com/okian/assay/pkg/logger"
)

func TestNewEvent(t *testing.T) {
	e := New(ScoringStarted, "s1")
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, ScoringStarted, e.Type)
	assert.Equal(t, "s1", e.SessionID)
	assert.WithinDuration(t, time.Now(), e.OccurredAt, time.Minute)
	assert.NotEqual(t, e.ID, New(ScoringStarted, "s1").ID)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	l, err := logger.New(&buf, "json")
	require.NoError(t, err)

	p := NewLogPublisher(l)
	e := New(ScoringFailed, "s1")
	e.Reason = "strategy panicked"
	require.NoError(t, p.Publish(context.Background(), e))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ScoringFailed", line["msg"])
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "strategy panicked", line["reason"])
}

func TestRedisPublisher(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, "assay.scoring")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pct := 62.5
	e := New(ScoringCompleted, "s1")
	e.Status = model.StatusCompleted
	e.OverallPercentage = &pct
	require.NoError(t, NewRedisPublisher(client, "assay.scoring").Publish(ctx, e))

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, e.ID, got.ID)
		assert.Equal(t, ScoringCompleted, got.Type)
		assert.Equal(t, 62.5, *got.OverallPercentage)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisPublisherUnavailable(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	srv.Close()

	err := NewRedisPublisher(client, "assay.scoring").Publish(context.Background(), New(ScoringStarted, "s1"))
	assert.Error(t, err)
}

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }

func TestMulti(t *testing.T) {
	rec := &Recorder{}
	boom := errors.New("boom")
	m := Multi{rec, nil, failing{boom}}

	err := m.Publish(context.Background(), New(ScoringStarted, "s1"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []Type{ScoringStarted}, rec.Types())

	assert.NoError(t, Multi{rec}.Publish(context.Background(), New(ScoringCompleted, "s1")))
	assert.Len(t, rec.Events(), 2)
}
