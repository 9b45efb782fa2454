package broker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakePublisher struct {
	mu     sync.Mutex
	emitFn func(ctx context.Context, topic string, msg Message) error
	topics []string
	msgs   []Message
}

func (f *fakePublisher) Emit(ctx context.Context, topic string, msg Message) error {
	f.mu.Lock()
	f.topics = append(f.topics, topic)
	f.msgs = append(f.msgs, msg)
	fn := f.emitFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, topic, msg)
	}
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAccountMessage(t *testing.T) {
	msg := AccountMessage(12, "USER", false)

	if msg.Key != "12" {
		t.Fatalf("got key %q, want 12", msg.Key)
	}

	ev, ok := msg.Value.(AccountEvent)
	if !ok {
		t.Fatalf("expected AccountEvent, got %T", msg.Value)
	}
	if ev.ID != 12 || ev.Role != "USER" || ev.IsActive {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestAsyncPublisher_DeliversQueuedMessagesOnClose(t *testing.T) {
	inner := &fakePublisher{}
	p := NewAsyncPublisher(inner, 2, 16, discardLogger(), nil)

	for i := int64(1); i <= 5; i++ {
		if err := p.Emit(context.Background(), TopicUserCreated, AccountMessage(i, "USER", true)); err != nil {
			t.Fatalf("Emit error: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	if got := inner.count(); got != 5 {
		t.Fatalf("got %d delivered messages, want 5", got)
	}

	if err := p.Emit(context.Background(), TopicUserCreated, AccountMessage(6, "USER", true)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}

func TestAsyncPublisher_DetachesFromRequestCancellation(t *testing.T) {
	delivered := make(chan error, 1)
	inner := &fakePublisher{emitFn: func(ctx context.Context, topic string, msg Message) error {
		delivered <- ctx.Err()
		return nil
	}}

	p := NewAsyncPublisher(inner, 1, 1, discardLogger(), nil)
	defer p.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Emit(ctx, TopicUserDeleted, AccountMessage(1, "USER", false)); err != nil {
		t.Fatalf("Emit error: %v", err)
	}
	cancel()

	select {
	case err := <-delivered:
		if err != nil {
			t.Fatalf("expected detached context, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("message was not delivered")
	}
}

func TestAsyncPublisher_FullBufferDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	inner := &fakePublisher{emitFn: func(ctx context.Context, topic string, msg Message) error {
		<-release
		return nil
	}}

	p := NewAsyncPublisher(inner, 1, 1, discardLogger(), nil)

	var sawFull bool
	for i := int64(0); i < 10; i++ {
		if err := p.Emit(context.Background(), TopicUserCreated, AccountMessage(i, "USER", true)); errors.Is(err, ErrBufferFull) {
			sawFull = true
			break
		}
	}

	close(release)
	_ = p.Close(context.Background())

	if !sawFull {
		t.Fatalf("expected ErrBufferFull once the worker and buffer were saturated")
	}
}

func TestProtectedPublisher_OpensAfterThresholdAndRecovers(t *testing.T) {
	failing := true
	inner := &fakePublisher{emitFn: func(ctx context.Context, topic string, msg Message) error {
		if failing {
			return errors.New("broker down")
		}
		return nil
	}}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewProtectedPublisher(inner, ProtectedConfig{FailureThreshold: 2, Cooldown: time.Minute})
	p.now = func() time.Time { return now }

	msg := AccountMessage(1, "USER", true)

	for i := 0; i < 2; i++ {
		if err := p.Emit(context.Background(), TopicUserCreated, msg); err == nil {
			t.Fatalf("expected inner failure")
		}
	}

	if err := p.Emit(context.Background(), TopicUserCreated, msg); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if inner.count() != 2 {
		t.Fatalf("open circuit must not call the broker, got %d calls", inner.count())
	}

	now = now.Add(2 * time.Minute)
	failing = false

	if err := p.Emit(context.Background(), TopicUserCreated, msg); err != nil {
		t.Fatalf("half-open trial should pass through, got %v", err)
	}
	if err := p.Emit(context.Background(), TopicUserCreated, msg); err != nil {
		t.Fatalf("circuit should be closed again, got %v", err)
	}
}

func TestProtectedPublisher_AppliesTimeout(t *testing.T) {
	inner := &fakePublisher{emitFn: func(ctx context.Context, topic string, msg Message) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	p := NewProtectedPublisher(inner, ProtectedConfig{Timeout: 20 * time.Millisecond})

	err := p.Emit(context.Background(), TopicUserCreated, AccountMessage(1, "USER", true))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
