package transport

import (
	"context"
	"sync"
	"time"

	"groundstation/pkg/protocol"
)

type EventKind uint8

const (
	EventConnected EventKind = iota + 1
	EventDisconnected
	EventPacketReceived
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventPacketReceived:
		return "packet"
	default:
		return "unknown"
	}
}

// Event is emitted by the supervisor. Within one session the order is
// always Connected, PacketReceived*, Disconnected.
type Event struct {
	Kind    EventKind
	Session string
	Port    string
	// Packet and Size are set for EventPacketReceived; Size is the frame
	// length on the wire.
	Packet protocol.PacketDown
	Size   int
	At     time.Time
}

// Queue is an unbounded multi-producer, single-consumer event channel.
// Push never blocks.
type Queue struct {
	mu     sync.Mutex
	items  []Event
	ready  chan struct{}
	closed bool
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push appends ev. Events pushed after Close are dropped.
func (q *Queue) Push(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()
	q.signal()
}

// Close wakes any waiting consumer. Buffered events can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// TryPop returns the oldest event without blocking.
func (q *Queue) TryPop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Event{}, false
	}
	ev := q.items[0]
	q.items[0] = Event{}
	q.items = q.items[1:]
	return ev, true
}

// Drain returns every buffered event in order.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

// Pop blocks until an event is available. It returns false once the queue
// is closed and empty, or when ctx is done.
func (q *Queue) Pop(ctx context.Context) (Event, bool) {
	for {
		if ev, ok := q.TryPop(); ok {
			return ev, true
		}
		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Event{}, false
		}
		select {
		case <-ctx.Done():
			return Event{}, false
		case <-q.ready:
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether the producer side has shut down.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
