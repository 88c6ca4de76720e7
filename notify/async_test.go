package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type blockingNotifier struct {
	mu      sync.Mutex
	sent    []string
	started chan struct{}
	release chan struct{}
	err     error
}

func (n *blockingNotifier) record(kind string) error {
	if n.started != nil {
		n.started <- struct{}{}
		<-n.release
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, kind)
	return n.err
}

func (n *blockingNotifier) SendWelcome(context.Context, string, string) error {
	return n.record("welcome")
}

func (n *blockingNotifier) SendPasswordReset(context.Context, string, string, string) error {
	return n.record("reset")
}

func (n *blockingNotifier) SendMagicLink(context.Context, string, string, string) error {
	return n.record("magic")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAsyncDeliversOnClose(t *testing.T) {
	next := &blockingNotifier{err: errors.New("smtp down")}
	a := NewAsync(next, 8, time.Second, quietLogger())
	ctx := context.Background()

	if err := a.SendWelcome(ctx, "a@example.com", "A"); err != nil {
		t.Fatalf("SendWelcome: %v", err)
	}
	if err := a.SendPasswordReset(ctx, "a@example.com", "t", "A"); err != nil {
		t.Fatalf("SendPasswordReset: %v", err)
	}
	if err := a.SendMagicLink(ctx, "a@example.com", "t", "A"); err != nil {
		t.Fatalf("SendMagicLink: %v", err)
	}
	a.Close()

	if len(next.sent) != 3 {
		t.Fatalf("expected 3 deliveries, got %v", next.sent)
	}
	if err := a.SendWelcome(ctx, "a@example.com", "A"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestAsyncDropsWhenFull(t *testing.T) {
	next := &blockingNotifier{started: make(chan struct{}), release: make(chan struct{})}
	a := NewAsync(next, 1, time.Second, quietLogger())
	ctx := context.Background()

	if err := a.SendWelcome(ctx, "a@example.com", "A"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	<-next.started // worker holds the first message

	if err := a.SendWelcome(ctx, "b@example.com", "B"); err != nil {
		t.Fatalf("second send should fill the buffer: %v", err)
	}
	if err := a.SendWelcome(ctx, "c@example.com", "C"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if a.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", a.Dropped())
	}

	go func() {
		for range next.started {
		}
	}()
	close(next.release)
	a.Close()
	close(next.started)

	if len(next.sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %v", next.sent)
	}
}

func TestAsyncAcceptedMessagesSurviveConcurrentClose(t *testing.T) {
	next := &blockingNotifier{}
	a := NewAsync(next, 4096, time.Second, quietLogger())
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		accepted atomic.Int64
		start    = make(chan struct{})
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for range 50 {
				err := a.SendWelcome(ctx, "a@example.com", "A")
				switch {
				case err == nil:
					accepted.Add(1)
				case !errors.Is(err, ErrClosed):
					t.Errorf("unexpected error %v", err)
				}
			}
		}()
	}
	close(start)
	a.Close()
	wg.Wait()
	a.Close()

	next.mu.Lock()
	delivered := len(next.sent)
	next.mu.Unlock()
	if int64(delivered) != accepted.Load() {
		t.Fatalf("accepted %d messages but delivered %d", accepted.Load(), delivered)
	}
}
