package audit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Redacted replaces metadata values whose key names secret material.
const Redacted = "[redacted]"

// secretKeyParts are matched case-insensitively against metadata keys.
var secretKeyParts = []string{"password", "token", "code", "stamp", "secret", "key"}

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events when the buffer is full instead of waiting.
	// Events for which Critical reports true always wait.
	DropIfFull bool
	Critical   func(eventType string) bool
	// Now stamps events that carry no timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Dispatcher relays credential audit events to a sink on one goroutine, so a
// user's events reach the sink in emission order. A nil *Dispatcher is valid
// and drops everything.
type Dispatcher struct {
	cfg  Config
	sink Sink

	queue   chan Event
	stop    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewDispatcher starts delivery. It returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
		stop:  make(chan struct{}),
	}
	d.stopped.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.stopped.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			for len(d.queue) > 0 {
				d.deliver(<-d.queue)
			}
			return
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	d.sink.Emit(context.Background(), ev)
	d.delivered.Add(1)
}

// Emit assigns an ID and timestamp when missing, redacts secret-looking
// metadata and queues the event.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.cfg.Now().UTC()
	}
	ev.Metadata = redact(ev.Metadata)

	if d.cfg.DropIfFull && !d.critical(ev.EventType) {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

func (d *Dispatcher) critical(eventType string) bool {
	return d.cfg.Critical != nil && d.cfg.Critical(eventType)
}

// redact returns meta, or a copy with secret-looking values replaced.
func redact(meta map[string]string) map[string]string {
	var out map[string]string
	for k := range meta {
		if !secretKey(k) {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(meta))
			for k2, v2 := range meta {
				out[k2] = v2
			}
		}
		out[k] = Redacted
	}
	if out == nil {
		return meta
	}
	return out
}

func secretKey(key string) bool {
	key = strings.ToLower(key)
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

// Close delivers what is queued and stops the goroutine. Later Emits are
// ignored.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.stopped.Wait()
	})
}

// Dropped returns how many events were discarded.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered returns how many events reached the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
