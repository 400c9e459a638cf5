package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/healix-ai/backend/pkg/common/logger"
	"github.com/healix-ai/backend/pkg/common/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	queue     []kafka.Message
	committed []int64
	commitErr error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestPublishEventKeysByRunID(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "dataset-ingested")
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	err := p.PublishEvent(context.Background(), models.EventDatasetIngested, "ingestion", map[string]interface{}{"run_id": "run-1", "committed": 3})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "run-1", string(msg.Key))
	assert.Equal(t, []kafka.Header{
		{Key: "event-type", Value: []byte(models.EventDatasetIngested)},
		{Key: "source", Value: []byte("ingestion")},
	}, msg.Headers)

	var event models.Event
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, models.EventDatasetIngested, event.Type)
	assert.Equal(t, "run-1", event.Data["run_id"])
	assert.Equal(t, 2026, event.Timestamp.Year())
}

func TestPublishEventWithoutRunIDUsesEventID(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "t")
	require.NoError(t, p.PublishEvent(context.Background(), "x", "test", nil))

	var event models.Event
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &event))
	assert.Equal(t, event.ID, string(w.messages[0].Key))
}

func TestPublishEventWrapsWriteError(t *testing.T) {
	down := errors.New("no brokers")
	p := newProducer(&fakeWriter{err: down}, "t")
	err := p.PublishEvent(context.Background(), "x", "test", nil)
	assert.ErrorIs(t, err, down)
}

func eventMessage(t *testing.T, offset int64, eventType string) kafka.Message {
	t.Helper()
	value, err := json.Marshal(models.Event{ID: "e", Type: eventType})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: value}
}

func TestConsumeCommitsHandledAndUndecodable(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		eventMessage(t, 1, models.EventDatasetIngested),
		{Offset: 2, Value: []byte("not json")},
		eventMessage(t, 3, "fail"),
		eventMessage(t, 4, models.EventDatasetIngested),
	}}
	c := &Consumer{reader: r}

	ctx, cancel := context.WithCancel(context.Background())
	var seen []string
	err := c.Consume(ctx, func(_ context.Context, e models.Event) error {
		seen = append(seen, e.Type)
		if e.Type == "fail" {
			return errors.New("handler failed")
		}
		if len(seen) == 3 {
			cancel()
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{models.EventDatasetIngested, "fail", models.EventDatasetIngested}, seen)
	assert.Equal(t, []int64{1, 2, 4}, r.committed)
}

func TestConsumeLogsCommitFailureForUndecodable(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	r := &fakeReader{commitErr: errors.New("rebalance in progress")}
	c := &Consumer{reader: r}
	c.handle(context.Background(), kafka.Message{Offset: 9, Value: []byte("{")}, func(context.Context, models.Event) error {
		t.Fatal("handler must not run for undecodable payloads")
		return nil
	})

	assert.Contains(t, buf.String(), "Failed to commit message")
	assert.Contains(t, buf.String(), "rebalance in progress")
}
