package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeStore struct {
	pending []Event
	sent    []int64
	failed  []int64
}

func (s *fakeStore) LockBatch(context.Context, string, int, time.Duration) ([]Event, error) {
	out := s.pending
	s.pending = nil
	return out, nil
}

func (s *fakeStore) MarkSent(_ context.Context, ids []int64) error {
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id int64, _ string) error {
	s.failed = append(s.failed, id)
	return nil
}

type fakeProducer struct {
	messages []kafka.Message
	failKeys map[string]bool
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if p.failKeys[string(m.Key)] {
			return errors.New("write failed")
		}
		p.messages = append(p.messages, m)
	}
	return nil
}

func newTestRelay(store *fakeStore, producer *fakeProducer) *Relay {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRelay(log, store, NewDispatcher(log, producer, "line_allocated"), "relay-test")
}

func TestRelayDispatchesAndMarksSent(t *testing.T) {
	store := &fakeStore{pending: []Event{
		{ID: 1, AggregateID: "RETRO-CLOCK", Type: "Allocated", Payload: []byte(`{}`)},
		{ID: 2, AggregateID: "SMALL-FORK", Type: "OutOfStock", Payload: []byte(`{}`), Traceparent: "00-abc-def-01"},
	}}
	producer := &fakeProducer{}

	if err := newTestRelay(store, producer).drainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if len(producer.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(producer.messages))
	}
	if got := string(producer.messages[0].Key); got != "RETRO-CLOCK" {
		t.Errorf("expected message keyed by sku, got %s", got)
	}
	var haveTrace bool
	for _, h := range producer.messages[1].Headers {
		if h.Key == "traceparent" && string(h.Value) == "00-abc-def-01" {
			haveTrace = true
		}
	}
	if !haveTrace {
		t.Error("expected traceparent header on second message")
	}
	if len(store.sent) != 2 {
		t.Errorf("expected both events marked sent, got %v", store.sent)
	}
}

func TestRelayMarksFailedAndKeepsGoing(t *testing.T) {
	store := &fakeStore{pending: []Event{
		{ID: 1, AggregateID: "BAD-SKU", Type: "Allocated", Payload: []byte(`{}`)},
		{ID: 2, AggregateID: "GOOD-SKU", Type: "Allocated", Payload: []byte(`{}`)},
	}}
	producer := &fakeProducer{failKeys: map[string]bool{"BAD-SKU": true}}

	if err := newTestRelay(store, producer).drainOnce(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}

	if len(store.failed) != 1 || store.failed[0] != 1 {
		t.Errorf("expected event 1 marked failed, got %v", store.failed)
	}
	if len(store.sent) != 1 || store.sent[0] != 2 {
		t.Errorf("expected event 2 marked sent, got %v", store.sent)
	}
}
