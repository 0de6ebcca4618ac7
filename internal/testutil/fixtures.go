package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/HerbHall/larkwatch/internal/notify"
)

// NewEvent returns an Event with sensible defaults, suitable for test fixtures.
// Override individual fields with options.
func NewEvent(opts ...func(*notify.Event)) notify.Event {
	ev := notify.Event{
		Event:       "New User",
		EventTime:   time.Date(2023, 2, 16, 11, 5, 10, 0, time.UTC),
		User:        "alice",
		Description: "test",
	}
	for _, opt := range opts {
		opt(&ev)
	}
	return ev
}

// WithEventName sets the event name.
func WithEventName(name string) func(*notify.Event) {
	return func(ev *notify.Event) { ev.Event = name }
}

// WithUser sets the event user.
func WithUser(user string) func(*notify.Event) {
	return func(ev *notify.Event) { ev.User = user }
}

// WithDescription sets the event description.
func WithDescription(desc string) func(*notify.Event) {
	return func(ev *notify.Event) { ev.Description = desc }
}

// WithEventTime sets the event timestamp.
func WithEventTime(t time.Time) func(*notify.Event) {
	return func(ev *notify.Event) { ev.EventTime = t }
}

// RecordingBot is a notify.Bot that records every event it is asked to send
// and answers with Result.
type RecordingBot struct {
	// Result is returned from every Send.
	Result notify.Result

	mu      sync.Mutex
	events  []notify.Event
	ctxErrs []error
}

var _ notify.Bot = (*RecordingBot)(nil)

// Send records ev and the state of ctx at call time.
func (b *RecordingBot) Send(ctx context.Context, ev notify.Event) notify.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	b.ctxErrs = append(b.ctxErrs, ctx.Err())
	return b.Result
}

// Type returns "recording".
func (b *RecordingBot) Type() string { return "recording" }

// Events returns a copy of the recorded events in send order.
func (b *RecordingBot) Events() []notify.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]notify.Event(nil), b.events...)
}

// CtxErrs returns ctx.Err() as observed by each Send, in send order.
func (b *RecordingBot) CtxErrs() []error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]error(nil), b.ctxErrs...)
}
