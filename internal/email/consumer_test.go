package email

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"taskhub/internal/logger"
)

type memDeduper struct {
	mu        sync.Mutex
	seen      map[string]bool
	checkErr  error
	markErr   error
	markCalls int
}

func newMemDeduper() *memDeduper {
	return &memDeduper{seen: map[string]bool{}}
}

func (d *memDeduper) IsProcessed(ctx context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.checkErr != nil {
		return false, d.checkErr
	}
	return d.seen[id], nil
}

func (d *memDeduper) MarkAsProcessed(ctx context.Context, e EmailEvent) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markCalls++
	if d.markErr != nil {
		return false, d.markErr
	}
	if d.seen[e.MessageID] {
		return false, nil
	}
	d.seen[e.MessageID] = true
	return true, nil
}

// flakySender fails the first failures calls.
type flakySender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []Message
}

func (s *flakySender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("smtp 451")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func rawEvent(t *testing.T, id string) []byte {
	t.Helper()
	b, err := json.Marshal(EmailEvent{
		MessageID: id,
		EventType: EmailTypeReminderDueSoon,
		Timestamp: time.Now().UTC(),
		Recipient: "ana@acme.test",
		Subject:   "due soon",
		Text:      "hi",
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func newTestProcessor(sender Sender, dedup Deduper, maxRetries int, dlq func(EmailEvent, error)) *Processor {
	p := NewProcessor(sender, dedup, maxRetries, dlq, logger.Discard())
	p.backoff = time.Millisecond
	return p
}

func TestProcessorDeliversOnce(t *testing.T) {
	sender := &flakySender{}
	dedup := newMemDeduper()
	p := newTestProcessor(sender, dedup, 3, nil)

	raw := rawEvent(t, "m-1")
	if !p.Process(context.Background(), raw) {
		t.Fatal("first delivery should commit")
	}
	if !p.Process(context.Background(), raw) {
		t.Fatal("duplicate should commit")
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if sender.sent[0].ID != "m-1" || sender.sent[0].To != "ana@acme.test" {
		t.Errorf("sent %+v", sender.sent[0])
	}
}

func TestProcessorRetriesThenSucceeds(t *testing.T) {
	sender := &flakySender{failures: 2}
	p := newTestProcessor(sender, newMemDeduper(), 3, func(EmailEvent, error) {
		t.Error("dead-lettered a message that eventually succeeded")
	})

	if !p.Process(context.Background(), rawEvent(t, "m-2")) {
		t.Fatal("expected commit")
	}
	if sender.calls != 3 || len(sender.sent) != 1 {
		t.Errorf("calls = %d, sent = %d", sender.calls, len(sender.sent))
	}
}

func TestProcessorDeadLettersAfterMaxRetries(t *testing.T) {
	sender := &flakySender{failures: 10}
	dedup := newMemDeduper()
	var dead []string
	p := newTestProcessor(sender, dedup, 2, func(e EmailEvent, err error) {
		dead = append(dead, e.MessageID)
	})

	if !p.Process(context.Background(), rawEvent(t, "m-3")) {
		t.Fatal("dead-lettered message should still commit")
	}
	if sender.calls != 2 {
		t.Errorf("calls = %d, want 2", sender.calls)
	}
	if len(dead) != 1 || dead[0] != "m-3" {
		t.Errorf("dead = %v", dead)
	}
	if dedup.markCalls != 0 {
		t.Error("failed message was marked as processed")
	}
}

func TestProcessorSkipsMalformedEvents(t *testing.T) {
	sender := &flakySender{}
	p := newTestProcessor(sender, newMemDeduper(), 3, nil)

	if !p.Process(context.Background(), []byte("{not json")) {
		t.Error("malformed JSON should commit")
	}
	if !p.Process(context.Background(), []byte(`{"message_id":"x"}`)) {
		t.Error("event without recipient should commit")
	}
	if sender.calls != 0 {
		t.Errorf("sender called %d times", sender.calls)
	}
}

func TestProcessorLeavesOffsetOnRedisFailure(t *testing.T) {
	sender := &flakySender{}
	dedup := newMemDeduper()
	dedup.checkErr = errors.New("redis down")
	p := newTestProcessor(sender, dedup, 3, nil)

	if p.Process(context.Background(), rawEvent(t, "m-4")) {
		t.Error("should not commit when the idempotency check fails")
	}
	if sender.calls != 0 {
		t.Error("sent without an idempotency check")
	}

	dedup.checkErr = nil
	dedup.markErr = errors.New("redis down")
	if p.Process(context.Background(), rawEvent(t, "m-5")) {
		t.Error("should not commit when marking fails")
	}
}

func TestProcessorStopsRetryingOnCancel(t *testing.T) {
	sender := &flakySender{failures: 10}
	p := NewProcessor(sender, newMemDeduper(), 5, nil, logger.Discard())
	p.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		p.Process(ctx, rawEvent(t, "m-6"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Process did not return after cancellation")
	}
	if sender.calls != 1 {
		t.Errorf("calls = %d, want 1", sender.calls)
	}
}
