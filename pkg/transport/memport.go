package transport

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

var _ Port = (*MemPort)(nil)

var errWriteTimeout = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string { return "write timeout" }
func (timeoutError) Timeout() bool { return true }

// MemPort is an in-memory Port used by the simulated vehicle and tests.
// Reads wait at most ReadTimeout for data and then return (0, nil).
type MemPort struct {
	ReadTimeout time.Duration

	mu        sync.Mutex
	rx        bytes.Buffer
	tx        bytes.Buffer
	dtr       bool
	unplugged bool
	closed    bool
	failWrite bool
	notify    chan struct{}
	onWrite   func([]byte)
}

func NewMemPort() *MemPort {
	return &MemPort{
		ReadTimeout: 5 * time.Millisecond,
		notify:      make(chan struct{}, 1),
	}
}

// Feed makes b available to Read.
func (p *MemPort) Feed(b []byte) {
	p.mu.Lock()
	p.rx.Write(b)
	p.mu.Unlock()
	p.wake()
}

// Unplug simulates the cable being pulled: pending bytes are still
// delivered, then Read fails with io.EOF.
func (p *MemPort) Unplug() {
	p.mu.Lock()
	p.unplugged = true
	p.mu.Unlock()
	p.wake()
}

// FailWrites makes every following Write time out.
func (p *MemPort) FailWrites(fail bool) {
	p.mu.Lock()
	p.failWrite = fail
	p.mu.Unlock()
}

// OnWrite registers a callback receiving a copy of each written chunk.
func (p *MemPort) OnWrite(fn func([]byte)) {
	p.mu.Lock()
	p.onWrite = fn
	p.mu.Unlock()
}

// TakeWritten returns and clears what the station wrote.
func (p *MemPort) TakeWritten() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := bytes.Clone(p.tx.Bytes())
	p.tx.Reset()
	return out
}

func (p *MemPort) DTR() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dtr
}

func (p *MemPort) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *MemPort) Read(b []byte) (int, error) {
	deadline := time.NewTimer(p.ReadTimeout)
	defer deadline.Stop()
	for {
		p.mu.Lock()
		switch {
		case p.closed:
			p.mu.Unlock()
			return 0, io.ErrClosedPipe
		case p.rx.Len() > 0:
			n, _ := p.rx.Read(b)
			p.mu.Unlock()
			return n, nil
		case p.unplugged:
			p.mu.Unlock()
			return 0, io.EOF
		}
		p.mu.Unlock()

		select {
		case <-p.notify:
		case <-deadline.C:
			return 0, nil
		}
	}
}

func (p *MemPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return 0, io.ErrClosedPipe
	case p.unplugged:
		p.mu.Unlock()
		return 0, io.EOF
	case p.failWrite:
		p.mu.Unlock()
		return 0, errWriteTimeout
	}
	p.tx.Write(b)
	fn := p.onWrite
	p.mu.Unlock()
	if fn != nil {
		fn(bytes.Clone(b))
	}
	return len(b), nil
}

func (p *MemPort) SetDTR(v bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("port closed")
	}
	p.dtr = v
	return nil
}

func (p *MemPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wake()
	return nil
}

func (p *MemPort) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}
