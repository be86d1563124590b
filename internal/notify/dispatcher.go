// Package notify delivers notification intents off the request path.
//
// Dispatch never blocks and never reports failure to the caller: an intent is
// either queued for a worker or dropped with a log line. Workers hand intents to
// a Sender and log whatever goes wrong. Nothing is retried here; retrying, if
// any, belongs to the sink behind the Sender.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Intent is a fully formed notification request.
type Intent struct {
	Recipient string         `json:"recipient"`
	Subject   string         `json:"subject"`
	Template  string         `json:"template"`
	Variables map[string]any `json:"variables,omitempty"`
}

type Sender interface {
	Send(ctx context.Context, in Intent) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, in Intent) error

func (f SenderFunc) Send(ctx context.Context, in Intent) error {
	return f(ctx, in)
}

type Options struct {
	QueueSize     int
	Workers       int
	RatePerSecond float64
	SendTimeout   time.Duration
}

func DefaultOptions() Options {
	return Options{
		QueueSize:     256,
		Workers:       2,
		RatePerSecond: 10,
		SendTimeout:   10 * time.Second,
	}
}

var ErrClosed = errors.New("dispatcher closed")

// closeGrace bounds how long Close waits for workers after its deadline has
// passed and in-flight sends were cancelled.
var closeGrace = 200 * time.Millisecond

type Dispatcher struct {
	sender  Sender
	log     *slog.Logger
	limiter *rate.Limiter
	timeout time.Duration
	workers int

	queue  chan Intent
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, opts Options, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	def := DefaultOptions()
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = def.SendTimeout
	}

	limit := rate.Inf
	burst := 1
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
		burst = opts.Workers
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sender:  sender,
		log:     log.With(slog.String("component", "notify.dispatcher")),
		limiter: rate.NewLimiter(limit, burst),
		timeout: opts.SendTimeout,
		workers: opts.Workers,
		queue:   make(chan Intent, opts.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
	d.log.Info("dispatcher started", slog.Int("workers", d.workers), slog.Int("queue_size", cap(d.queue)))
}

// Dispatch queues in for delivery and returns immediately.
func (d *Dispatcher) Dispatch(in Intent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn("notification dropped", slog.String("reason", "closed"), slog.String("template", in.Template))
		return
	}

	select {
	case d.queue <- in:
	default:
		d.log.Warn(
			"notification dropped",
			slog.String("reason", "queue_full"),
			slog.String("template", in.Template),
			slog.String("recipient", in.Recipient),
		)
	}
}

// Close stops intake and waits for queued intents to be delivered. If ctx
// expires first, in-flight sends are cancelled and the rest of the queue is
// discarded.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		d.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.log.Info("dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		select {
		case <-done:
		case <-time.After(closeGrace):
			d.log.Warn("dispatcher workers still sending after shutdown")
		}
		d.log.Warn("dispatcher drain interrupted", slog.Any("err", ctx.Err()))
		return ctx.Err()
	}
}

func (d *Dispatcher) work(n int) {
	defer d.wg.Done()
	for in := range d.queue {
		if d.ctx.Err() != nil {
			d.log.Warn("notification dropped", slog.String("reason", "shutdown"), slog.String("template", in.Template))
			continue
		}
		d.deliver(n, in)
	}
}

func (d *Dispatcher) deliver(worker int, in Intent) {
	log := d.log.With(
		slog.Int("worker", worker),
		slog.String("template", in.Template),
		slog.String("recipient", in.Recipient),
	)

	if err := d.limiter.Wait(d.ctx); err != nil {
		log.Warn("notification dropped", slog.String("reason", "rate_wait"), slog.Any("err", err))
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	if err := d.send(ctx, in); err != nil {
		log.Error("notification delivery failed", slog.Any("err", err))
		return
	}
	log.Debug("notification delivered")
}

func (d *Dispatcher) send(ctx context.Context, in Intent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	return d.sender.Send(ctx, in)
}
