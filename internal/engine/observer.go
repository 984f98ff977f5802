package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/roach88/ctorder/internal/ir"
)

// Observer receives every trace event, in Seq order, synchronously.
//
// Observers must not call back into the engine for the same object.
type Observer interface {
	OnEvent(ctx context.Context, ev ir.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev ir.Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(ctx context.Context, ev ir.Event) { f(ctx, ev) }

// MultiObserver fans an event out to several observers in order.
type MultiObserver []Observer

// OnEvent implements Observer.
func (m MultiObserver) OnEvent(ctx context.Context, ev ir.Event) {
	for _, o := range m {
		o.OnEvent(ctx, ev)
	}
}

// Recorder keeps the trace in memory.
type Recorder struct {
	mu     sync.Mutex
	events []ir.Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// OnEvent implements Observer.
func (r *Recorder) OnEvent(_ context.Context, ev ir.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded trace.
func (r *Recorder) Events() []ir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Filter returns the recorded events of the given kind.
func (r *Recorder) Filter(kind ir.EventKind) []ir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ir.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Output concatenates the text of every output event.
func (r *Recorder) Output() string {
	var b strings.Builder
	for _, ev := range r.Filter(ir.EventOutput) {
		b.WriteString(ev.Detail)
	}
	return b.String()
}

// Reset drops the recorded trace.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// LogObserver writes events to a zerolog logger: failures and unwinds at
// warn level, everything else at debug level.
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver creates a LogObserver.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger.With().Str("component", "lifecycle").Logger()}
}

// OnEvent implements Observer.
func (l *LogObserver) OnEvent(_ context.Context, ev ir.Event) {
	e := l.logger.Debug()
	if ev.Kind == ir.EventFailure || ev.Kind == ir.EventUnwind {
		e = l.logger.Warn()
	}
	e = e.Int64("seq", ev.Seq).
		Str("run_id", ev.RunID).
		Str("object", ev.Object).
		Str("path", ev.Path).
		Str("class", ev.Class)
	if ev.Step != "" {
		e = e.Str("step", string(ev.Step))
	}
	if ev.Detail != "" {
		e = e.Str("detail", ev.Detail)
	}
	e.Msg(string(ev.Kind))
}
