// Package bus is the in-process fan-out for investigation progress
// events. One producer goroutine per investigation publishes an ordered
// stream; any number of subscribers (SSE handlers, tests) read it.
//
// The bus never backpressures the producer: events for a slow consumer
// are dropped by disconnecting that consumer, and the per-investigation
// retained buffer is bounded.
package bus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ovokpus/investigator/pkg/investigation"
)

const (
	// DefaultBufferSize bounds retained events per investigation for
	// late subscribers.
	DefaultBufferSize = 256

	// DefaultQueueSize bounds a single subscriber's delivery queue.
	DefaultQueueSize = 64
)

type stream struct {
	buffer   []investigation.ProgressEvent
	lastSeq  uint64
	dropped  bool // oldest events were evicted from the buffer
	terminal bool
	subs     map[int]chan investigation.ProgressEvent
	nextSub  int
}

// Bus fans out per-investigation event streams.
type Bus struct {
	mu         sync.Mutex
	streams    map[string]*stream
	bufferSize int
	queueSize  int
	strict     bool
	logger     *slog.Logger
}

type Option func(*Bus)

// WithStrict panics on ordering violations instead of dropping the
// event. Meant for tests and debug builds.
func WithStrict(strict bool) Option {
	return func(b *Bus) { b.strict = strict }
}

func WithBufferSize(n int) Option {
	return func(b *Bus) { b.bufferSize = n }
}

func WithQueueSize(n int) Option {
	return func(b *Bus) { b.queueSize = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

func New(opts ...Option) *Bus {
	b := &Bus{
		streams:    make(map[string]*stream),
		bufferSize: DefaultBufferSize,
		queueSize:  DefaultQueueSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish accepts an event iff its sequence is exactly last+1 for its
// investigation and no terminal event has been delivered. Violations
// are programming errors: panic in strict mode, log-and-drop otherwise.
func (b *Bus) Publish(ev investigation.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.streams[ev.InvestigationID]
	if !ok {
		st = &stream{subs: make(map[int]chan investigation.ProgressEvent)}
		b.streams[ev.InvestigationID] = st
	}

	if st.terminal {
		b.violation(fmt.Sprintf("publish after terminal event: investigation=%s seq=%d", ev.InvestigationID, ev.Sequence))
		return
	}
	if ev.Sequence != st.lastSeq+1 {
		b.violation(fmt.Sprintf("out-of-order publish: investigation=%s seq=%d last=%d", ev.InvestigationID, ev.Sequence, st.lastSeq))
		return
	}
	st.lastSeq = ev.Sequence

	st.buffer = append(st.buffer, ev)
	for len(st.buffer) > b.bufferSize {
		// evict the oldest non-terminal event; terminal events are
		// always the newest so index 0 is safe
		st.buffer = st.buffer[1:]
		st.dropped = true
	}

	for id, ch := range st.subs {
		select {
		case ch <- ev:
		default:
			// slow consumer: disconnect rather than block the producer
			b.logger.Warn("disconnecting slow subscriber",
				"investigation_id", ev.InvestigationID, "subscriber", id)
			delete(st.subs, id)
			close(ch)
		}
	}

	if ev.Kind.Terminal() {
		st.terminal = true
		for id, ch := range st.subs {
			delete(st.subs, id)
			close(ch)
		}
	}
}

func (b *Bus) violation(msg string) {
	if b.strict {
		panic("bus: " + msg)
	}
	b.logger.Error("dropping event", "reason", msg)
}

// Subscribe returns a channel replaying the investigation's buffered
// events from the start, then live events until the terminal event,
// after which the channel closes. The returned cancel func detaches the
// subscriber; it is safe to call after the channel closed.
func (b *Bus) Subscribe(investigationID string) (<-chan investigation.ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.streams[investigationID]
	if !ok {
		st = &stream{subs: make(map[int]chan investigation.ProgressEvent)}
		b.streams[investigationID] = st
	}

	replay := make([]investigation.ProgressEvent, 0, len(st.buffer)+1)
	if st.dropped {
		first := uint64(1)
		if len(st.buffer) > 0 {
			first = st.buffer[0].Sequence
		}
		replay = append(replay, investigation.ProgressEvent{
			InvestigationID: investigationID,
			Sequence:        first - 1,
			Kind:            investigation.EventBufferOverflow,
			Message:         "earlier events were dropped from the buffer",
		})
	}
	replay = append(replay, st.buffer...)

	ch := make(chan investigation.ProgressEvent, len(replay)+b.queueSize)
	for _, ev := range replay {
		ch <- ev
	}

	if st.terminal {
		close(ch)
		return ch, func() {}
	}

	id := st.nextSub
	st.nextSub++
	st.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if cur, ok := st.subs[id]; ok && cur == ch {
			delete(st.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// LastSequence returns the producer's last published sequence, zero
// when nothing was published.
func (b *Bus) LastSequence(investigationID string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.streams[investigationID]; ok {
		return st.lastSeq
	}
	return 0
}

// Drop releases all state for an investigation. Attached subscribers
// are closed.
func (b *Bus) Drop(investigationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.streams[investigationID]; ok {
		for id, ch := range st.subs {
			delete(st.subs, id)
			close(ch)
		}
		delete(b.streams, investigationID)
	}
}
