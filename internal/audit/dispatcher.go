package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events when the buffer is full instead of blocking
	// the request that produced them.
	DropIfFull bool
	// SinkTimeout bounds each call into the sink. Zero leaves it unbounded.
	SinkTimeout time.Duration
}

// Dispatcher moves audit events off the request path. A single goroutine
// feeds the sink, so sinks see events in emission order and need no locking.
type Dispatcher struct {
	cfg   Config
	sink  Sink
	queue chan Event

	stop     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once

	dropped atomic.Uint64
}

// NewDispatcher returns nil when cfg is disabled; a nil Dispatcher accepts
// and discards every call.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		queue:  make(chan Event, cfg.BufferSize),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.exited)
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// deliver hands one event to the sink. A panicking sink loses that event
// only.
func (d *Dispatcher) deliver(ev Event) {
	ctx := context.Background()
	if d.cfg.SinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SinkTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			d.dropped.Add(1)
		}
	}()
	d.sink.Emit(ctx, ev)
}

// Emit queues event. In blocking mode it waits for buffer space until ctx
// is done; an event abandoned that way counts as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	select {
	case <-d.stop:
		return
	default:
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close stops intake, delivers what is already queued and waits for the
// sink to return. Safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.exited
}

// Dropped counts events that never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
