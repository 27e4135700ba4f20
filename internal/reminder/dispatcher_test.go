package reminder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"taskhub/internal/clock"
	"taskhub/internal/database"
	"taskhub/internal/email"
	"taskhub/internal/logger"
)

type memTodo struct {
	id        string
	tenantID  string
	title     string
	pending   bool
	due       time.Time
	email     string
	remind    bool
	markers   map[Kind]*time.Time
	claimErrs int
}

// memStore mirrors the Postgres claim semantics under a mutex.
type memStore struct {
	mu       sync.Mutex
	todos    map[string]*memTodo
	listErr  error
	// failKind limits listErr to one window; empty fails every window.
	failKind Kind
	releases int
}

func newMemStore(todos ...*memTodo) *memStore {
	s := &memStore{todos: map[string]*memTodo{}}
	for _, td := range todos {
		if td.markers == nil {
			td.markers = map[Kind]*time.Time{}
		}
		s.todos[td.id] = td
	}
	return s
}

func (s *memStore) eligible(td *memTodo, w Window) bool {
	return td.pending && td.remind && w.Contains(td.due) && td.markers[w.Kind] == nil
}

func (s *memStore) ListEligible(ctx context.Context, w Window) ([]Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil && (s.failKind == "" || s.failKind == w.Kind) {
		return nil, s.listErr
	}
	var out []Candidate
	for _, td := range s.todos {
		if s.eligible(td, w) {
			out = append(out, Candidate{TodoID: td.id, TenantID: td.tenantID, Title: td.title, DueDate: td.due, Email: td.email})
		}
	}
	return out, nil
}

func (s *memStore) Claim(ctx context.Context, w Window, todoID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	td := s.todos[todoID]
	if td.claimErrs > 0 {
		td.claimErrs--
		return false, errors.New("connection reset")
	}
	if !s.eligible(td, w) {
		return false, nil
	}
	ts := at
	td.markers[w.Kind] = &ts
	return true, nil
}

func (s *memStore) Release(ctx context.Context, kind Kind, todoID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	td := s.todos[todoID]
	if m := td.markers[kind]; m != nil && m.Equal(at) {
		td.markers[kind] = nil
	}
	return nil
}

func (s *memStore) marker(id string, kind Kind) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.todos[id].markers[kind]
}

// recordingSender fails for recipients listed in failFor.
type recordingSender struct {
	mu      sync.Mutex
	sent    []email.Message
	failFor map[string]bool
}

func (s *recordingSender) Send(ctx context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[msg.To] {
		return errors.New("smtp: 554 rejected")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(store Store, sender email.Sender, clk clock.Clock) *Dispatcher {
	return NewDispatcher(store, sender, nil, Options{
		Concurrency: 3,
		AppURL:      "https://app.taskhub.test",
		Clock:       clk,
		Logger:      logger.Discard(),
	})
}

func TestRunSendsDueSoonOnce(t *testing.T) {
	store := newMemStore(&memTodo{
		id: "todo-1", tenantID: "t1", title: "Ship release", pending: true, remind: true,
		due: t0.Add(30 * time.Hour), email: "ana@acme.test",
	})
	sender := &recordingSender{}
	d := newTestDispatcher(store, sender, clock.Fake(t0))

	first, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.DueSoonSent != 1 || first.OverdueSent != 0 {
		t.Fatalf("first run = %+v", first)
	}

	second, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.DueSoonSent != 0 {
		t.Fatalf("second run = %+v", second)
	}

	if sender.count() != 1 {
		t.Fatalf("sent %d emails", sender.count())
	}
	msg := sender.sent[0]
	if msg.To != "ana@acme.test" || msg.Type != email.EmailTypeReminderDueSoon {
		t.Errorf("message = %+v", msg)
	}
	if !strings.Contains(msg.HTML, "https://app.taskhub.test/todos/todo-1") {
		t.Errorf("missing link: %s", msg.HTML)
	}
	if msg.ID == "" {
		t.Error("message id not set")
	}
	if m := store.marker("todo-1", KindDueSoon); m == nil || !m.Equal(t0) {
		t.Errorf("marker = %v, want %v", m, t0)
	}
}

func TestRunSendsOverdueAfterDueSoon(t *testing.T) {
	store := newMemStore(&memTodo{
		id: "todo-1", pending: true, remind: true, due: t0.Add(30 * time.Hour), email: "ana@acme.test",
	})
	sender := &recordingSender{}
	clk := clock.Fake(t0)
	d := newTestDispatcher(store, sender, clk)

	if res, _ := d.Run(context.Background()); res.DueSoonSent != 1 {
		t.Fatalf("due-soon run = %+v", res)
	}

	clk.Advance(31 * time.Hour)
	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.OverdueSent != 1 || res.DueSoonSent != 0 {
		t.Fatalf("overdue run = %+v", res)
	}
	if sender.count() != 2 {
		t.Fatalf("sent %d emails", sender.count())
	}
}

func TestRunSkipsIneligibleTodos(t *testing.T) {
	store := newMemStore(
		&memTodo{id: "completed", pending: false, remind: true, due: t0.Add(30 * time.Hour), email: "a@x.test"},
		&memTodo{id: "opted-out", pending: true, remind: false, due: t0.Add(30 * time.Hour), email: "b@x.test"},
		&memTodo{id: "far", pending: true, remind: true, due: t0.Add(72 * time.Hour), email: "c@x.test"},
		&memTodo{id: "stale", pending: true, remind: true, due: t0.Add(-48 * time.Hour), email: "d@x.test"},
	)
	sender := &recordingSender{}
	res, err := newTestDispatcher(store, sender, clock.Fake(t0)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{}) || sender.count() != 0 {
		t.Fatalf("res = %+v, sent = %d", res, sender.count())
	}
}

func TestRunFailureDoesNotAbortBatchAndReleasesMarker(t *testing.T) {
	store := newMemStore(
		&memTodo{id: "ok-1", pending: true, remind: true, due: t0.Add(30 * time.Hour), email: "ok1@x.test"},
		&memTodo{id: "bad", pending: true, remind: true, due: t0.Add(31 * time.Hour), email: "bad@x.test"},
		&memTodo{id: "ok-2", pending: true, remind: true, due: t0.Add(-2 * time.Hour), email: "ok2@x.test"},
	)
	sender := &recordingSender{failFor: map[string]bool{"bad@x.test": true}}
	d := newTestDispatcher(store, sender, clock.Fake(t0))

	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := Result{DueSoonSent: 1, DueSoonFailed: 1, OverdueSent: 1}
	if res != want {
		t.Fatalf("res = %+v, want %+v", res, want)
	}
	if store.marker("bad", KindDueSoon) != nil {
		t.Fatal("failed send left its marker set")
	}

	// The next run retries the failed todo only.
	sender.failFor = nil
	res, err = d.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{DueSoonSent: 1}) {
		t.Fatalf("retry run = %+v", res)
	}
}

func TestRunClaimErrorCountsAsFailure(t *testing.T) {
	store := newMemStore(&memTodo{
		id: "todo-1", pending: true, remind: true, due: t0.Add(-time.Hour), email: "a@x.test", claimErrs: 1,
	})
	sender := &recordingSender{}
	res, err := newTestDispatcher(store, sender, clock.Fake(t0)).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{OverdueFailed: 1}) || sender.count() != 0 {
		t.Fatalf("res = %+v, sent = %d", res, sender.count())
	}
}

func TestRunListingFailureIsStorageError(t *testing.T) {
	store := newMemStore()
	store.listErr = errors.New("connection refused")
	_, err := newTestDispatcher(store, &recordingSender{}, clock.Fake(t0)).Run(context.Background())
	if !database.IsStorage(err) {
		t.Fatalf("err = %v, want StorageError", err)
	}
}

func TestRunListingFailureKeepsEarlierCounts(t *testing.T) {
	store := newMemStore(&memTodo{
		id: "todo-1", pending: true, remind: true, due: t0.Add(30 * time.Hour), email: "ana@acme.test",
	})
	store.listErr = errors.New("connection refused")
	store.failKind = KindOverdue
	sender := &recordingSender{}

	res, err := newTestDispatcher(store, sender, clock.Fake(t0)).Run(context.Background())
	if !database.IsStorage(err) {
		t.Fatalf("err = %v, want StorageError", err)
	}
	if res.DueSoonSent != 1 || sender.count() != 1 {
		t.Errorf("res = %+v, sent = %d", res, sender.count())
	}
}

func TestConcurrentRunsSendOnce(t *testing.T) {
	var todos []*memTodo
	for i := 0; i < 20; i++ {
		todos = append(todos, &memTodo{
			id: string(rune('a' + i)), pending: true, remind: true,
			due: t0.Add(30 * time.Hour), email: "a@x.test",
		})
	}
	store := newMemStore(todos...)
	sender := &recordingSender{}
	clk := clock.Fake(t0)

	// Separate local locks let the runs overlap; only the claim keeps them apart.
	var wg sync.WaitGroup
	results := make([]Result, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := newTestDispatcher(store, sender, clk).Run(context.Background())
			if err != nil {
				t.Error(err)
			}
			results[i] = res
		}()
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		total += r.DueSoonSent
	}
	if total != 20 || sender.count() != 20 {
		t.Fatalf("sent total = %d, emails = %d; want 20", total, sender.count())
	}
}

func TestRunRespectsLock(t *testing.T) {
	lock := NewLocalLock()
	unlock, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	d := NewDispatcher(newMemStore(), &recordingSender{}, lock, Options{Clock: clock.Fake(t0), Logger: logger.Discard()})
	if _, err := d.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("err = %v, want ErrRunInProgress", err)
	}

	unlock()
	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("after unlock: %v", err)
	}
}

func TestMessageIDIsStablePerClaim(t *testing.T) {
	a := messageID(KindDueSoon, "todo-1", t0)
	if a != messageID(KindDueSoon, "todo-1", t0) {
		t.Error("same claim produced different ids")
	}
	if a == messageID(KindOverdue, "todo-1", t0) || a == messageID(KindDueSoon, "todo-1", t0.Add(time.Hour)) {
		t.Error("distinct claims share an id")
	}
}

func TestDispatchErrorUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := error(&DispatchError{Kind: KindOverdue, TodoID: "x", Err: inner})
	if !errors.Is(err, inner) {
		t.Error("DispatchError does not unwrap")
	}
}
