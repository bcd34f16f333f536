package notify

import (
	"context"
	"errors"
	"sync"
)

// Emitter delivers an event to subscribers.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// Fanout emits to every sink and joins their errors.
type Fanout []Emitter

func (f Fanout) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, e := range f {
		if err := e.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, Event) error { return nil }

// Recorder keeps emitted events in memory. Used in tests in place of a broker.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Emit(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

// Events returns a copy of what was emitted so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Named returns the emitted events with the given name.
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}
