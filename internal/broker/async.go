package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/geocoder89/accounts/internal/observability"
)

var ErrBufferFull = errors.New("publisher buffer full")

const (
	defaultWorkers = 2
	defaultBuffer  = 256
)

type envelope struct {
	ctx   context.Context
	topic string
	msg   Message
}

// AsyncPublisher makes Emit non-blocking: messages are queued on a buffered
// channel and delivered by a fixed set of workers. Delivery failures are
// logged and counted, never retried.
type AsyncPublisher struct {
	inner Publisher
	log   *slog.Logger
	prom  *observability.Prom

	queue chan envelope
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewAsyncPublisher(inner Publisher, workers, buffer int, log *slog.Logger, prom *observability.Prom) *AsyncPublisher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	p := &AsyncPublisher{
		inner: inner,
		log:   log,
		prom:  prom,
		queue: make(chan envelope, buffer),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run(i)
	}

	return p
}

// Emit enqueues the message. The request context's values (trace, request
// id) travel with it but its cancellation does not.
func (p *AsyncPublisher) Emit(ctx context.Context, topic string, msg Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- envelope{ctx: context.WithoutCancel(ctx), topic: topic, msg: msg}:
		return nil
	default:
		p.observe(topic, "dropped")
		return ErrBufferFull
	}
}

// Close stops accepting messages and waits for queued ones to be delivered
// or for ctx to expire.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AsyncPublisher) run(id int) {
	defer p.wg.Done()

	for env := range p.queue {
		err := p.inner.Emit(env.ctx, env.topic, env.msg)

		if err != nil {
			p.observe(env.topic, "error")
			p.log.ErrorContext(env.ctx, "event publish failed",
				"topic", env.topic,
				"key", env.msg.Key,
				"worker_id", id,
				"err", err,
			)
			continue
		}

		p.observe(env.topic, "ok")
	}
}

func (p *AsyncPublisher) observe(topic, result string) {
	if p.prom != nil {
		p.prom.EventsPublished.WithLabelValues(topic, result).Inc()
	}
}
