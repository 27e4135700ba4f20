package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"taskhub/internal/clock"
	"taskhub/internal/database"
	"taskhub/internal/email"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DispatchError reports a reminder that could not be sent. It is logged and
// counted; it never stops the run.
type DispatchError struct {
	Kind   Kind
	TodoID string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s reminder for todo %s: %v", e.Kind, e.TodoID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Result counts the outcome of one run. *Sent counts successful sends only.
type Result struct {
	DueSoonSent   int `json:"dueSoonSent"`
	OverdueSent   int `json:"overdueSent"`
	DueSoonFailed int `json:"dueSoonFailed"`
	OverdueFailed int `json:"overdueFailed"`
	// Skipped counts candidates claimed by someone else between listing and claiming.
	Skipped int `json:"skipped"`
}

// Options configures a Dispatcher.
type Options struct {
	Concurrency int
	AppURL      string
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Dispatcher runs the reminder job.
type Dispatcher struct {
	store       Store
	sender      email.Sender
	lock        Lock
	concurrency int
	appURL      string
	clock       clock.Clock
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil lock falls back to a LocalLock.
func NewDispatcher(store Store, sender email.Sender, lock Lock, opts Options) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		sender:      sender,
		lock:        lock,
		concurrency: opts.Concurrency,
		appURL:      opts.AppURL,
		clock:       opts.Clock,
		logger:      opts.Logger,
	}
	if d.lock == nil {
		d.lock = NewLocalLock()
	}
	if d.concurrency <= 0 {
		d.concurrency = 4
	}
	if d.clock == nil {
		d.clock = clock.Real()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

type outcome int

const (
	sent outcome = iota
	failed
	skipped
)

// Run performs one reminder pass. It returns ErrRunInProgress when another
// run holds the lock and a StorageError when a window cannot be listed. On a
// StorageError the Result still counts what earlier windows sent.
func (d *Dispatcher) Run(ctx context.Context) (Result, error) {
	unlock, err := d.lock.Acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	// Postgres keeps microseconds; Release compares against the stored value.
	now := d.clock.Now().UTC().Truncate(time.Microsecond)
	start := time.Now()

	var res Result
	for _, w := range Windows(now) {
		candidates, err := d.store.ListEligible(ctx, w)
		if err != nil {
			d.logger.Error("Reminder run aborted",
				"kind", w.Kind,
				"error", err,
				"due_soon_sent", res.DueSoonSent,
				"overdue_sent", res.OverdueSent)
			return res, database.StorageErr("list reminder candidates", err)
		}

		var mu sync.Mutex
		g := new(errgroup.Group)
		g.SetLimit(d.concurrency)

		for _, c := range candidates {
			g.Go(func() error {
				o := d.dispatch(ctx, w, c, now)
				mu.Lock()
				res.add(w.Kind, o)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	d.logger.Info("Reminder run finished",
		"due_soon_sent", res.DueSoonSent,
		"overdue_sent", res.OverdueSent,
		"due_soon_failed", res.DueSoonFailed,
		"overdue_failed", res.OverdueFailed,
		"skipped", res.Skipped,
		"duration_ms", time.Since(start).Milliseconds())

	return res, nil
}

func (r *Result) add(kind Kind, o outcome) {
	switch {
	case o == skipped:
		r.Skipped++
	case kind == KindDueSoon && o == sent:
		r.DueSoonSent++
	case kind == KindDueSoon:
		r.DueSoonFailed++
	case o == sent:
		r.OverdueSent++
	default:
		r.OverdueFailed++
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, w Window, c Candidate, now time.Time) outcome {
	claimed, err := d.store.Claim(ctx, w, c.TodoID, now)
	if err != nil {
		d.logFailure(&DispatchError{Kind: w.Kind, TodoID: c.TodoID, Err: err})
		return failed
	}
	if !claimed {
		d.logger.Debug("Reminder already claimed", "kind", w.Kind, "todo_id", c.TodoID)
		return skipped
	}

	msg, err := email.RenderReminder(w.Kind.EmailType(), email.ReminderData{
		To:          c.Email,
		UserName:    c.UserName,
		TodoID:      c.TodoID,
		TodoTitle:   c.Title,
		Description: c.Description,
		Priority:    c.Priority,
		DueDate:     c.DueDate,
		AppURL:      d.appURL,
	})
	if err == nil {
		msg.ID = messageID(w.Kind, c.TodoID, now)
		err = d.sender.Send(ctx, msg)
	}
	if err != nil {
		d.release(ctx, w.Kind, c.TodoID, now)
		d.logFailure(&DispatchError{Kind: w.Kind, TodoID: c.TodoID, Err: err})
		return failed
	}

	d.logger.Info("Reminder sent",
		"kind", w.Kind,
		"todo_id", c.TodoID,
		"tenant_id", c.TenantID,
		"user_id", c.UserID)
	return sent
}

// release runs even when ctx is already cancelled so a failed send stays eligible.
func (d *Dispatcher) release(ctx context.Context, kind Kind, todoID string, at time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.store.Release(ctx, kind, todoID, at); err != nil {
		d.logger.Error("Failed to release reminder claim; reminder will not be retried",
			"kind", kind,
			"todo_id", todoID,
			"error", err)
	}
}

func (d *Dispatcher) logFailure(err *DispatchError) {
	level := slog.LevelWarn
	if database.IsStorage(err) || errors.Is(err, context.DeadlineExceeded) {
		level = slog.LevelError
	}
	d.logger.Log(context.Background(), level, "Reminder not sent",
		"kind", err.Kind,
		"todo_id", err.TodoID,
		"error", err.Err)
}

var messageNamespace = uuid.MustParse("2f4c7d0e-8a51-4b8e-9a57-3c0c0a6f1d42")

// messageID is stable for one claim so a retried delivery downstream is
// recognised as the same email.
func messageID(kind Kind, todoID string, claimedAt time.Time) string {
	return uuid.NewSHA1(messageNamespace, []byte(string(kind)+"/"+todoID+"/"+claimedAt.Format(time.RFC3339Nano))).String()
}
