package actuator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ColonelBlimp/handmorse/internal/logging"
	"github.com/ColonelBlimp/handmorse/internal/metrics"
	"github.com/ColonelBlimp/handmorse/internal/morse"
	"github.com/ColonelBlimp/handmorse/internal/recovery"
)

// ErrInvalidQueueSize indicates the notification queue size is not positive
var ErrInvalidQueueSize = errors.New("notify queue size must be positive")

// Sender delivers one impulse to the actuator.
type Sender interface {
	Send(ctx context.Context, imp morse.Impulse) error
}

// Notifier is the decode loop's view of the actuator: Notify never blocks
// and never fails.
type Notifier interface {
	Notify(imp morse.Impulse)
	Close() error
}

// Config holds actuator settings.
type Config struct {
	URL       string        // empty disables the actuator
	Timeout   time.Duration // per-request bound
	QueueSize int           // pending notifications before dropping
}

// DefaultConfig returns the standard actuator settings.
func DefaultConfig() Config {
	return Config{
		URL:       DefaultURL,
		Timeout:   DefaultTimeout,
		QueueSize: DefaultQueueSize,
	}
}

// New builds the notifier for cfg. An empty URL yields Disabled.
func New(cfg Config, m *metrics.Metrics) (Notifier, error) {
	if cfg.URL == "" {
		logger := logging.WithComponent("actuator")
		logger.Info().Msg("actuator disabled")
		return Disabled{}, nil
	}
	if cfg.QueueSize <= 0 {
		return nil, ErrInvalidQueueSize
	}
	client, err := NewClient(cfg.URL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return NewDispatcher(client, cfg.QueueSize, m), nil
}

// Disabled is a Notifier that does nothing.
type Disabled struct{}

// Notify discards the impulse.
func (Disabled) Notify(morse.Impulse) {}

// Close does nothing.
func (Disabled) Close() error { return nil }

// Dispatcher hands impulses to a single worker goroutine through a bounded
// queue. Deliveries happen in order, one attempt each. When the queue is full
// the notification is dropped so the caller is never blocked.
type Dispatcher struct {
	sender  Sender
	queue   chan morse.Impulse
	done    chan struct{}
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the worker. A nil m records to metrics.Default.
func NewDispatcher(sender Sender, queueSize int, m *metrics.Metrics) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if m == nil {
		m = metrics.Default
	}
	d := &Dispatcher{
		sender:  sender,
		queue:   make(chan morse.Impulse, queueSize),
		done:    make(chan struct{}),
		metrics: m,
		log:     logging.WithComponent("actuator"),
	}
	go d.run()
	return d
}

// Notify enqueues an impulse without blocking.
func (d *Dispatcher) Notify(imp morse.Impulse) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}

	// Non-blocking send; a slow actuator must not stall frame processing
	select {
	case d.queue <- imp:
	default:
		d.metrics.ActuatorDropped.Inc()
		d.log.Warn().Str("impulse", imp.String()).Msg("actuator queue full, notification dropped")
	}
}

// Close stops accepting impulses and waits for queued deliveries to finish
// or time out.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
	return nil
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for imp := range d.queue {
		recovery.Guard("actuator", func() { d.deliver(imp) })
	}
}

func (d *Dispatcher) deliver(imp morse.Impulse) {
	start := time.Now()
	err := d.sender.Send(context.Background(), imp)
	latency := time.Since(start)

	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, ErrStatus):
		outcome = metrics.OutcomeHTTPError
	default:
		outcome = metrics.OutcomeError
	}
	d.metrics.RecordActuator(outcome, latency.Seconds())

	if err != nil {
		d.log.Warn().Err(err).Str("impulse", imp.String()).Dur("latency", latency).Msg("actuator notification failed")
		return
	}
	d.log.Debug().Str("impulse", imp.String()).Dur("latency", latency).Msg("actuator notified")
}
