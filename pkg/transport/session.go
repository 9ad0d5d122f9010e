package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"groundstation/pkg/observability"
	"groundstation/pkg/protocol"
)

var (
	// ErrPeerNotListening is returned when the Welcome frame times out.
	ErrPeerNotListening = errors.New("vehicle is not listening")

	// ErrDeviceGone is returned when the presence probe no longer sees the
	// port while reads have been idle.
	ErrDeviceGone = errors.New("serial device disappeared")

	ErrRead = errors.New("serial read failed")
)

// Session owns one open port from handshake to close. It never reopens
// the port itself.
type Session struct {
	id       string
	portName string
	port     Port

	bufSize       int
	probe         func() bool
	probeInterval time.Duration
	now           func() time.Time

	logger  *slog.Logger
	metrics *observability.LinkMetrics
}

type SessionOption func(*Session)

func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSessionMetrics(m *observability.LinkMetrics) SessionOption {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithReadChunk sets how many bytes a single read may return.
func WithReadChunk(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.bufSize = n
		}
	}
}

// WithPresenceProbe makes an idle session check, at most once per
// interval, that the device is still attached.
func WithPresenceProbe(probe func() bool, interval time.Duration) SessionOption {
	return func(s *Session) {
		if probe != nil && interval > 0 {
			s.probe = probe
			s.probeInterval = interval
		}
	}
}

func NewSession(id string, portName string, port Port, opts ...SessionOption) *Session {
	s := &Session{
		id:       id,
		portName: portName,
		port:     port,
		bufSize:  protocol.BufferSize,
		now:      time.Now,
		logger:   observability.Discard(),
		metrics:  observability.NewLinkMetrics(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Port() string { return s.portName }

// Handshake raises DTR and greets the vehicle.
func (s *Session) Handshake() error {
	if err := s.port.SetDTR(true); err != nil {
		return fmt.Errorf("assert DTR: %w", err)
	}
	frame, err := protocol.EncodeUp(protocol.Welcome)
	if err != nil {
		return err
	}
	if _, err := s.port.Write(frame); err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %w", ErrPeerNotListening, err)
		}
		return fmt.Errorf("write welcome: %w", err)
	}
	return nil
}

// Run reads until the port fails, a frame is corrupt, the device vanishes
// or ctx is done. Every decoded packet is passed to emit in order.
func (s *Session) Run(ctx context.Context, emit func(pkt protocol.PacketDown, size int)) error {
	pending := make([]byte, 0, s.bufSize)
	chunk := make([]byte, s.bufSize)
	lastActivity := s.now()
	lastProbe := lastActivity

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := s.port.Read(chunk)
		if n > 0 {
			lastActivity = s.now()
			s.metrics.BytesRead.Add(float64(n))
			pending = append(pending, chunk[:n]...)
			if len(pending) > protocol.BufferSize {
				s.logger.Debug("frame buffer above nominal size",
					"pending", len(pending), "excess", len(pending)-protocol.BufferSize)
			}

			off, derr := s.drain(pending, emit)
			// Evict exactly what the codec consumed, sentinels included.
			pending = append(pending[:0], pending[off:]...)
			if derr != nil {
				return derr
			}
		}
		if err != nil && !isTimeout(err) {
			return fmt.Errorf("%w: %w", ErrRead, err)
		}
		if n == 0 && s.probe != nil {
			now := s.now()
			if now.Sub(lastActivity) >= s.probeInterval && now.Sub(lastProbe) >= s.probeInterval {
				lastProbe = now
				if !s.probe() {
					return ErrDeviceGone
				}
			}
		}
	}
}

func (s *Session) drain(buf []byte, emit func(pkt protocol.PacketDown, size int)) (int, error) {
	off := 0
	for off < len(buf) {
		pkt, consumed, err := protocol.DecodeDown(buf[off:])
		switch {
		case errors.Is(err, protocol.ErrNeedMoreData):
			return off, nil
		case errors.Is(err, protocol.ErrTruncatedFrame):
			// Reading started mid-frame; drop the fragment and resync on
			// the next sentinel.
			s.metrics.FrameErrors.WithLabelValues(observability.ReasonTruncated).Inc()
			s.logger.Debug("dropped partial frame", "bytes", consumed, "err", err)
			off += consumed
			continue
		case err != nil:
			s.metrics.FrameErrors.WithLabelValues(observability.ReasonCorrupt).Inc()
			return off + consumed, err
		}
		off += consumed
		s.metrics.FramesDecoded.Inc()
		emit(pkt, consumed)
	}
	return off, nil
}

// Close lowers DTR and releases the port. Failures are ignored.
func (s *Session) Close() {
	_ = s.port.SetDTR(false)
	_ = s.port.Close()
}
