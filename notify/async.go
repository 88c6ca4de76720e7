package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/selfauth"
)

// ErrQueueFull is returned when a message is dropped because the queue is
// at capacity.
var ErrQueueFull = errors.New("notification queue full")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("notifier closed")

type job struct {
	kind string
	send func(ctx context.Context) error
}

// Async delivers through next from a single background goroutine. Send
// methods return once the message is queued; delivery failures are logged.
type Async struct {
	next    selfauth.Notifier
	logger  *slog.Logger
	timeout time.Duration

	ch      chan job
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64

	// mu orders sends before Close: once closed is set under the write
	// lock, every accepted job is already in ch for the final drain.
	mu     sync.RWMutex
	closed bool
}

var _ selfauth.Notifier = (*Async)(nil)

// NewAsync starts the worker. Each delivery gets its own timeout.
func NewAsync(next selfauth.Notifier, size int, timeout time.Duration, logger *slog.Logger) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	a := &Async{
		next:    next,
		logger:  logger,
		timeout: timeout,
		ch:      make(chan job, max(size, 1)),
		done:    make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for {
		select {
		case j := <-a.ch:
			a.deliver(j)
		case <-a.done:
			for {
				select {
				case j := <-a.ch:
					a.deliver(j)
				default:
					return
				}
			}
		}
	}
}

func (a *Async) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := j.send(ctx); err != nil {
		a.logger.Warn("notification delivery failed", "kind", j.kind, "error", err)
	}
}

func (a *Async) enqueue(j job) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.ch <- j:
		return nil
	default:
		a.dropped.Add(1)
		return ErrQueueFull
	}
}

func (a *Async) SendWelcome(_ context.Context, email, name string) error {
	return a.enqueue(job{kind: "welcome", send: func(ctx context.Context) error {
		return a.next.SendWelcome(ctx, email, name)
	}})
}

func (a *Async) SendPasswordReset(_ context.Context, email, token, name string) error {
	return a.enqueue(job{kind: "password_reset", send: func(ctx context.Context) error {
		return a.next.SendPasswordReset(ctx, email, token, name)
	}})
}

func (a *Async) SendMagicLink(_ context.Context, email, token, name string) error {
	return a.enqueue(job{kind: "magic_link", send: func(ctx context.Context) error {
		return a.next.SendMagicLink(ctx, email, token, name)
	}})
}

// Dropped reports messages discarded because the queue was full.
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Close stops accepting messages and delivers what is queued. It is safe
// to call more than once.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.done)
	}
	a.mu.Unlock()
	a.wg.Wait()
}
