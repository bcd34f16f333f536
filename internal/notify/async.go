package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrDropped = errors.New("notification buffer full")
	ErrClosed  = errors.New("notifier closed")
)

// Async hands events to a background goroutine so that Emit never waits on the broker.
// When the buffer is full the event is dropped and logged.
type Async struct {
	next    Emitter
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	inbox  chan Event
	done   chan struct{}
}

// NewAsync starts the delivery goroutine. Close must be called to flush and stop it.
func NewAsync(next Emitter, buf int, timeout time.Duration, logger *slog.Logger) *Async {
	if buf <= 0 {
		buf = 1
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{
		next:    next,
		log:     logger,
		timeout: timeout,
		inbox:   make(chan Event, buf),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Emit(_ context.Context, ev Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.inbox <- ev:
		return nil
	default:
		a.log.Warn("notification dropped", "event", ev.Name, "order_id", ev.Data.OrderID)
		return ErrDropped
	}
}

// Close stops accepting events, delivers what is buffered and waits for the goroutine.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.inbox)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Emit(ctx, ev); err != nil {
			a.log.Error("notification delivery failed", "event", ev.Name, "order_id", ev.Data.OrderID, "err", err)
		}
		cancel()
	}
}
