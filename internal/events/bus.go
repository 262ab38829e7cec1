package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-mdm/internal/command"
)

const defaultBufferSize = 256

// Sink receives published events. Implementations must be safe for
// concurrent use; they are called from the bus goroutine only.
type Sink interface {
	Publish(ctx context.Context, e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event)

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, e Event) { f(ctx, e) }

// Logger defines the logging interface used by the Bus.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Bus fans events out to sinks from a single background goroutine.
//
// Publish never blocks: when the buffer is full the event is dropped and
// counted. Protocol handlers publish after their transaction commits and
// are never slowed by a sink.
type Bus struct {
	sinks  []Sink
	ch     chan Event
	logger Logger
	now    func() time.Time

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64

	wg sync.WaitGroup
}

// NewBus creates a bus with room for bufferSize undelivered events.
// Zero or negative selects a default.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Bus{
		ch:     make(chan Event, bufferSize),
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the bus.
func (b *Bus) SetLogger(logger Logger) {
	b.logger = logger
}

// Add registers a sink. Call before Start.
func (b *Bus) Add(s Sink) {
	b.sinks = append(b.sinks, s)
}

// Start begins delivering events until Close.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for e := range b.ch {
			b.deliver(ctx, e)
		}
	}()
}

// Close stops accepting events, delivers what is buffered and waits.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.ch)
	b.mu.Unlock()

	b.wg.Wait()
}

// Publish queues e for delivery. A zero Timestamp is set to now.
func (b *Bus) Publish(_ context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = b.now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	select {
	case b.ch <- e:
	default:
		b.dropped.Add(1)
		b.logger.Warn("event dropped, bus full", "type", e.Type, "udid", e.DeviceUDID)
	}
}

// CommandChanged publishes the event for a command transition.
func (b *Bus) CommandChanged(ctx context.Context, cmd command.Command) {
	b.Publish(ctx, CommandEvent(cmd))
}

// Dropped returns the number of events discarded because the buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus) deliver(ctx context.Context, e Event) {
	for _, s := range b.sinks {
		b.deliverOne(ctx, s, e)
	}
}

func (b *Bus) deliverOne(ctx context.Context, s Sink, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event sink panic recovered", "type", e.Type, "panic", r)
		}
	}()
	s.Publish(ctx, e)
}
