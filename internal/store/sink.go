package store

import (
	"context"
	"sync"

	"github.com/roach88/ctorder/internal/ir"
)

// Sink streams lifecycle events into the store. It satisfies the engine's
// Observer interface.
//
// Observers cannot fail, so the first write error is kept and every later
// event is dropped. Check Err once the run is over.
type Sink struct {
	store *Store

	mu  sync.Mutex
	err error
	n   int
}

// NewSink returns a sink writing to s.
func NewSink(s *Store) *Sink {
	return &Sink{store: s}
}

// OnEvent writes ev.
func (k *Sink) OnEvent(ctx context.Context, ev ir.Event) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.err != nil {
		return
	}
	// The engine may be unwinding because ctx was cancelled; the trace
	// of that unwind is still recorded.
	if err := k.store.WriteEvent(context.WithoutCancel(ctx), ev); err != nil {
		k.err = err
		return
	}
	k.n++
}

// Err returns the first write error, if any.
func (k *Sink) Err() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.err
}

// Written returns how many events were stored.
func (k *Sink) Written() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.n
}
