package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"groundstation/pkg/observability"
	"groundstation/pkg/protocol"
)

// Supervisor keeps looking for the vehicle, runs one Session at a time and
// reports lifecycle events on its Queue. Session failures never stop it;
// only ctx does.
type Supervisor struct {
	events        *Queue
	locator       *Locator
	open          OpenFunc
	pollInterval  time.Duration
	readChunk     int
	probeInterval time.Duration
	newID         func() string
	now           func() time.Time
	logger        *slog.Logger
	metrics       *observability.LinkMetrics
}

type Option func(*Supervisor)

// WithPollInterval sets the pause between scans and after every session.
func WithPollInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

func WithLocator(l *Locator) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.locator = l
		}
	}
}

func WithOpener(open OpenFunc) Option {
	return func(s *Supervisor) {
		if open != nil {
			s.open = open
		}
	}
}

func WithBufferSize(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.readChunk = n
		}
	}
}

// WithProbeInterval enables the idle presence check of open sessions.
func WithProbeInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.probeInterval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger.With("component", "link")
		}
	}
}

func WithMetrics(m *observability.LinkMetrics) Option {
	return func(s *Supervisor) {
		if m != nil {
			s.metrics = m
		}
	}
}

func NewSupervisor(events *Queue, opts ...Option) *Supervisor {
	s := &Supervisor{
		events:       events,
		locator:      NewLocator(ListSerialPorts),
		pollInterval: 1 * time.Second,
		newID:        uuid.NewString,
		now:          time.Now,
		logger:       observability.Discard(),
		metrics:      observability.NewLinkMetrics(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.open == nil {
		s.open = SerialOpener(protocol.DefaultBaudRate, 10*time.Millisecond)
	}
	return s
}

// StartSupervisor runs the supervisor on its own goroutine.
func StartSupervisor(ctx context.Context, events *Queue, opts ...Option) *Supervisor {
	s := NewSupervisor(events, opts...)
	go s.Run(ctx)
	return s
}

// Run loops until ctx is done, then closes the queue.
func (s *Supervisor) Run(ctx context.Context) {
	defer s.events.Close()
	s.logger.Debug("serial supervisor started")

	firstRetry := true
	for {
		if ctx.Err() != nil {
			return
		}

		if firstRetry {
			s.logger.Debug("searching for vehicle")
		}
		s.metrics.Scans.Inc()
		name, ok := s.locator.Find()
		if ok {
			s.runSession(ctx, name)
			firstRetry = true
		} else {
			if firstRetry {
				s.logger.Warn("no vehicle connected")
			}
			firstRetry = false
		}

		s.sleep(ctx)
	}
}

func (s *Supervisor) runSession(ctx context.Context, name string) {
	s.logger.Debug("connecting to vehicle", "port", name)
	port, err := s.open(name)
	if err != nil {
		s.metrics.OpenErrors.Inc()
		s.logger.Error("unable to open serial port", "port", name, "err", err)
		return
	}

	id := s.newID()
	logger := s.logger.With("session", id, "port", name)
	opts := []SessionOption{
		WithSessionLogger(logger),
		WithSessionMetrics(s.metrics),
		WithReadChunk(s.readChunk),
	}
	if s.probeInterval > 0 {
		opts = append(opts, WithPresenceProbe(func() bool { return s.locator.Present(name) }, s.probeInterval))
	}
	session := NewSession(id, name, port, opts...)

	s.metrics.Sessions.Inc()
	s.metrics.Connected.Set(1)
	logger.Info("connected to vehicle")
	s.emit(Event{Kind: EventConnected, Session: id, Port: name})

	err = session.Handshake()
	if err == nil {
		err = session.Run(ctx, func(pkt protocol.PacketDown, size int) {
			s.emit(Event{Kind: EventPacketReceived, Session: id, Port: name, Packet: pkt, Size: size})
		})
	}

	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	case errors.Is(err, ErrPeerNotListening):
		logger.Warn("serial port not connected", "err", err)
	case errors.Is(err, protocol.ErrCorruptFrame):
		logger.Error("failed to deserialize data", "err", err)
	case errors.Is(err, ErrDeviceGone):
		logger.Warn("vehicle disappeared", "err", err)
	default:
		logger.Error("failed to communicate over serial port", "err", err)
	}

	session.Close()
	s.metrics.Connected.Set(0)
	s.emit(Event{Kind: EventDisconnected, Session: id, Port: name})
	logger.Debug("closed serial connection")
}

func (s *Supervisor) emit(ev Event) {
	ev.At = s.now()
	s.events.Push(ev)
}

func (s *Supervisor) sleep(ctx context.Context) {
	timer := time.NewTimer(s.pollInterval)
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	timer.Stop()
}
