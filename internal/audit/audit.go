// Package audit keeps an append-only trail of verification actions. Events
// are emitted from the transport layer, buffered through a channel, and
// persisted by a background worker so request handling never blocks on the
// trail.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event is one recorded verification action. Transport-agnostic so stores
// and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
	UserGUID  string    `json:"userGuid,omitempty"`
	AgentCode string    `json:"agentCode,omitempty"`
	Action    string    `json:"action"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	Device    string    `json:"device,omitempty"`
}

// Store persists events.
type Store interface {
	Append(ctx context.Context, ev Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Recorder accepts events without blocking. When the buffer is full the
// event is dropped and counted, never stalling the caller.
type Recorder struct {
	inbox   chan Event
	logger  *slog.Logger
	dropped func()
	now     func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

// WithDropCounter is called once per dropped event.
func WithDropCounter(fn func()) RecorderOption {
	return func(r *Recorder) { r.dropped = fn }
}

func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

func NewRecorder(buffer int, opts ...RecorderOption) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	r := &Recorder{
		inbox: make(chan Event, buffer),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record enqueues an event, stamping it if needed.
func (r *Recorder) Record(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.now()
	}
	select {
	case r.inbox <- ev:
	default:
		if r.dropped != nil {
			r.dropped()
		}
		if r.logger != nil {
			r.logger.Warn("audit event dropped", "action", ev.Action)
		}
	}
}

// Inbox exposes the event channel for the worker.
func (r *Recorder) Inbox() <-chan Event {
	return r.inbox
}

// Worker consumes recorded events and persists them. Store failures are
// logged and skipped; the trail is best-effort, the sessions are not.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-w.inbox:
			if err := w.store.Append(ctx, ev); err != nil && w.logger != nil {
				w.logger.ErrorContext(ctx, "audit append failed",
					"action", ev.Action,
					"error", err.Error(),
				)
			}
		}
	}
}
