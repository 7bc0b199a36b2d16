package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultQueueSize       = 256
	defaultDeliveryTimeout = 5 * time.Second
)

// Sink receives events after the triggering operation has committed.
type Sink interface {
	HandleEvent(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event Event) error

// HandleEvent calls f(ctx, event).
func (f SinkFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Stats reports dispatcher counters.
type Stats struct {
	Published int64 `json:"published"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Sinks     int   `json:"sinks"`
}

// Dispatcher hands events to sinks from a single background worker. Publish
// never blocks the caller: when the queue is full the event is dropped.
type Dispatcher struct {
	queue   chan Event
	done    chan struct{}
	logger  *slog.Logger
	timeout time.Duration
	clock   func() time.Time

	mu     sync.RWMutex
	sinks  []Sink
	closed bool

	published atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize sets the buffered queue capacity.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Event, n)
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDeliveryTimeout bounds how long a single sink call may take.
func WithDeliveryTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithSink registers a sink at construction time.
func WithSink(sink Sink) DispatcherOption {
	return func(d *Dispatcher) {
		if sink != nil {
			d.sinks = append(d.sinks, sink)
		}
	}
}

// NewDispatcher creates a dispatcher and starts its worker.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		queue:   make(chan Event, defaultQueueSize),
		done:    make(chan struct{}),
		logger:  slog.Default(),
		timeout: defaultDeliveryTimeout,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	go d.run()
	return d
}

// AddSink registers an additional sink.
func (d *Dispatcher) AddSink(sink Sink) {
	if d == nil || sink == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, sink)
}

// Publish queues an event for delivery and reports whether it was accepted.
// It is a no-op on a nil or closed dispatcher.
func (d *Dispatcher) Publish(event Event) bool {
	if d == nil {
		return false
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.clock().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.queue <- event:
		d.published.Add(1)
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("events: queue full, dropping event",
			"event_type", event.Type, "session_id", event.SessionID)
		return false
	}
}

// Close stops accepting events and waits until queued events are delivered.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	d.mu.RLock()
	sinks := len(d.sinks)
	d.mu.RUnlock()

	return Stats{
		Published: d.published.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
		Sinks:     sinks,
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	d.mu.RLock()
	sinks := make([]Sink, len(d.sinks))
	copy(sinks, d.sinks)
	d.mu.RUnlock()

	for _, sink := range sinks {
		if err := d.call(sink, event); err != nil {
			d.failed.Add(1)
			d.logger.Error("events: sink failed",
				"event_type", event.Type, "session_id", event.SessionID, "error", err)
			continue
		}
		d.delivered.Add(1)
	}
}

// call isolates a single sink invocation, turning panics into errors.
func (d *Dispatcher) call(sink Sink, event Event) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()

	return sink.HandleEvent(ctx, event)
}
