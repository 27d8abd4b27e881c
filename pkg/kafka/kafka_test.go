package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopease/pkg/logger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ===== Fakes =====

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// fakeReader hands out queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	drained   chan struct{}
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{queue: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	if len(r.queue) == 0 {
		select {
		case <-r.drained:
		default:
			close(r.drained)
		}
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func eventMessage(t *testing.T, topic string, e *Event) kafka.Message {
	t.Helper()
	data, err := e.Marshal()
	require.NoError(t, err)
	return kafka.Message{Topic: topic, Key: []byte(e.AggregateID), Value: data}
}

// runConsumer starts c, waits until every queued message is committed and
// stops it.
func runConsumer(t *testing.T, c *Consumer, r *fakeReader) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case <-r.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("messages were not committed in time")
	}
	cancel()
	require.NoError(t, <-done)
	assert.True(t, r.closed)
}

// ===== Event =====

func TestNewEvent(t *testing.T) {
	e, err := NewEvent("cart.updated", "sess-1", "cart", "storefront", map[string]int{"items": 2})
	require.NoError(t, err)

	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, 1, e.Version)
	assert.Equal(t, "sess-1", e.AggregateID)

	var data map[string]int
	require.NoError(t, e.UnmarshalData(&data))
	assert.Equal(t, 2, data["items"])
}

func TestNewEvent_UnmarshalablePayload(t *testing.T) {
	_, err := NewEvent("x", "id", "agg", "src", make(chan int))
	assert.Error(t, err)
}

func TestNewEventFromContext_CarriesCorrelationID(t *testing.T) {
	ctx := logger.WithCorrelationID(context.Background(), "corr-9")
	e, err := NewEventFromContext(ctx, "order.placed", "o1", "order", "storefront", nil)
	require.NoError(t, err)
	assert.Equal(t, "corr-9", e.CorrelationID)
}

func TestEvent_RoundTripKeepsMetadata(t *testing.T) {
	e, err := NewEvent("cart.cleared", "sess-2", "cart", "storefront", struct{}{})
	require.NoError(t, err)
	e.WithMetadata("reason", "checkout")

	raw, err := e.Marshal()
	require.NoError(t, err)
	got, err := UnmarshalEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, e.EventID, got.EventID)
	assert.Equal(t, "checkout", got.Metadata["reason"])
}

func TestUnmarshalEvent_Malformed(t *testing.T) {
	_, err := UnmarshalEvent([]byte("{nope"))
	assert.Error(t, err)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "ecommerce.inventory.stock_updated", Topic("inventory", "stock_updated"))
}

// ===== Producer =====

func TestProducer_PublishSetsKeyAndHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: newTestLogger()}

	e, err := NewEvent("cart.updated", "sess-1", "cart", "storefront", nil)
	require.NoError(t, err)
	e.CorrelationID = "corr-1"

	require.NoError(t, p.Publish(context.Background(), "ecommerce.cart.updated", e))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "ecommerce.cart.updated", msg.Topic)
	assert.Equal(t, []byte("sess-1"), msg.Key)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "cart.updated", headers["event_type"])
	assert.Equal(t, "storefront", headers["source"])
	assert.Equal(t, "corr-1", headers["correlation_id"])
}

func TestProducer_PublishWriteError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("broker gone")}, logger: newTestLogger()}
	e, _ := NewEvent("cart.updated", "sess-1", "cart", "storefront", nil)

	err := p.Publish(context.Background(), "t", e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker gone")
}

func TestPingBrokers_NoneConfigured(t *testing.T) {
	assert.Error(t, PingBrokers(context.Background(), nil))
}

// ===== Consumer =====

func TestConsumer_HandlesAndCommits(t *testing.T) {
	e, _ := NewEvent("inventory.stock_updated", "1", "product", "inventory", nil)
	r := newFakeReader(eventMessage(t, "stock", e))

	var handled []string
	c := newConsumer(r, ConsumerConfig{Topic: "stock", GroupID: "g"}, func(_ context.Context, ev *Event) error {
		handled = append(handled, ev.EventID)
		return nil
	}, newTestLogger())

	runConsumer(t, c, r)
	assert.Equal(t, []string{e.EventID}, handled)
	assert.Len(t, r.committed, 1)
}

func TestConsumer_PoisonMessageGoesToDeadLetter(t *testing.T) {
	e, _ := NewEvent("inventory.stock_updated", "1", "product", "inventory", nil)
	r := newFakeReader(eventMessage(t, "stock", e))

	attempts := 0
	c := newConsumer(r, ConsumerConfig{Topic: "stock"}, func(context.Context, *Event) error {
		attempts++
		return errors.New("always fails")
	}, newTestLogger())
	c.backoff = time.Millisecond

	dlq := &fakeWriter{}
	c.WithDeadLetter(&Producer{writer: dlq, logger: newTestLogger()})

	runConsumer(t, c, r)
	assert.Equal(t, maxHandlerRetries, attempts)
	assert.Len(t, r.committed, 1)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "ecommerce.dlq.stock", dlq.msgs[0].Topic)
}

func TestConsumer_MalformedMessageCommitted(t *testing.T) {
	r := newFakeReader(kafka.Message{Topic: "stock", Value: []byte("not json")})

	called := false
	c := newConsumer(r, ConsumerConfig{Topic: "stock"}, func(context.Context, *Event) error {
		called = true
		return nil
	}, newTestLogger())

	runConsumer(t, c, r)
	assert.False(t, called)
	assert.Len(t, r.committed, 1)
}

// ===== Idempotency =====

func TestIdempotentHandler_SkipsDuplicates(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	calls := 0
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		calls++
		return nil
	}, newTestLogger())

	e := &Event{EventID: "evt-1"}
	require.NoError(t, h(context.Background(), e))
	require.NoError(t, h(context.Background(), e))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, store.Len())
}

func TestIdempotentHandler_FailureNotRecorded(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Hour)
	h := IdempotentHandler(store, func(context.Context, *Event) error {
		return errors.New("boom")
	}, newTestLogger())

	require.Error(t, h(context.Background(), &Event{EventID: "evt-2"}))
	seen, _ := store.Contains(context.Background(), "evt-2")
	assert.False(t, seen)
}

func TestMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewMemoryIdempotencyStore(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Add(context.Background(), "evt"))
	now = now.Add(2 * time.Minute)

	seen, err := store.Contains(context.Background(), "evt")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Equal(t, 0, store.Len())
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisIdempotencyStore(client, "processed", time.Hour)
	ctx := context.Background()

	seen, err := store.Contains(ctx, "evt-3")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Add(ctx, "evt-3"))
	seen, err = store.Contains(ctx, "evt-3")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.True(t, mr.Exists("processed:evt-3"))
}
