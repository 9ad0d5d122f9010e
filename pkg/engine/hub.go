package engine

import (
	"context"
)

// Hub fans records out to subscribers. Slow subscribers miss records
// instead of stalling the station.
type Hub struct {
	broadcast  chan Record
	register   chan chan Record
	unregister chan chan Record
	clients    map[chan Record]struct{}
	clientBuf  int
}

type Option func(*Hub)

func WithBroadcastBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.broadcast = make(chan Record, size)
		}
	}
}

func WithClientBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.clientBuf = size
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		broadcast:  make(chan Record, 256),
		register:   make(chan chan Record),
		unregister: make(chan chan Record),
		clients:    make(map[chan Record]struct{}),
		clientBuf:  100,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for ch := range h.clients {
				close(ch)
			}
			return
		case ch := <-h.register:
			h.clients[ch] = struct{}{}
		case ch := <-h.unregister:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		case rec := <-h.broadcast:
			for ch := range h.clients {
				select {
				case ch <- rec:
				default:
				}
			}
		}
	}
}

func (h *Hub) Subscribe() chan Record {
	return h.SubscribeWithBuffer(h.clientBuf)
}

func (h *Hub) SubscribeWithBuffer(size int) chan Record {
	if size <= 0 {
		size = h.clientBuf
	}
	ch := make(chan Record, size)
	h.register <- ch
	return ch
}

func (h *Hub) Unsubscribe(ch chan Record) {
	h.unregister <- ch
}

func (h *Hub) Publish(rec Record) {
	h.broadcast <- rec
}

// TryPublish drops rec when the broadcast buffer is full.
func (h *Hub) TryPublish(rec Record) bool {
	select {
	case h.broadcast <- rec:
		return true
	default:
		return false
	}
}
