package station

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"groundstation/pkg/engine"
	"groundstation/pkg/observability"
	"groundstation/pkg/protocol"
	"groundstation/pkg/timebase"
	"groundstation/pkg/transport"
)

// Publisher receives every record the station produces. It must not block.
type Publisher interface {
	TryPublish(rec engine.Record) bool
}

// Link describes the current connection to the vehicle.
type Link struct {
	Interlink   protocol.Interlink
	Session     string
	Port        string
	ConnectedAt time.Time
}

// Reading is the latest value of one payload kind.
type Reading struct {
	Payload protocol.Payload
	Stamp   timebase.Stamp
}

// Station is the application side of the link. It owns the time manager
// and must only be used from one goroutine.
type Station struct {
	time      *timebase.Manager
	publisher Publisher
	logger    *slog.Logger

	basis    timebase.Basis
	link     Link
	ident    *protocol.Identification
	latest   map[protocol.PayloadKind]Reading
	packets  uint64
	bytes    uint64
	sessions uint64
	dropped  uint64
}

type Option func(*Station)

func WithTimeManager(m *timebase.Manager) Option {
	return func(s *Station) {
		if m != nil {
			s.time = m
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Station) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Station) {
		if logger != nil {
			s.logger = logger.With("component", "station")
		}
	}
}

// WithBasis sets the basis shown first.
func WithBasis(b timebase.Basis) Option {
	return func(s *Station) {
		s.basis = b
	}
}

func New(opts ...Option) *Station {
	s := &Station{
		logger: observability.Discard(),
		latest: make(map[protocol.PayloadKind]Reading),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.time == nil {
		s.time = timebase.NewManager(timebase.WithLogger(s.logger))
	}
	return s
}

func (s *Station) Time() *timebase.Manager { return s.time }

// Apply folds one link event into the station state.
func (s *Station) Apply(ev transport.Event) {
	rec := engine.Record{
		Kind:     ev.Kind,
		Session:  ev.Session,
		Port:     ev.Port,
		Received: ev.At,
	}

	switch ev.Kind {
	case transport.EventConnected:
		s.sessions++
		s.link = Link{
			Interlink:   protocol.InterlinkSerial,
			Session:     ev.Session,
			Port:        ev.Port,
			ConnectedAt: ev.At,
		}
		s.ident = nil
		s.logger.Info("vehicle link up", "session", ev.Session, "port", ev.Port)

	case transport.EventDisconnected:
		if s.link.Session != "" && s.link.Session != ev.Session {
			s.logger.Warn("disconnect for unknown session", "session", ev.Session, "current", s.link.Session)
		}
		s.link = Link{}
		s.ident = nil
		s.logger.Info("vehicle link down", "session", ev.Session, "port", ev.Port)

	case transport.EventPacketReceived:
		stamp := s.time.PacketReceived(ev.Packet.Time)
		s.packets++
		s.bytes += uint64(ev.Size)
		if id, ok := ev.Packet.Data.(protocol.Identification); ok {
			s.ident = &id
			s.logger.Info("vehicle identified", "name", id.Name, "version", id.Version)
		}
		if ev.Packet.Data != nil {
			s.latest[ev.Packet.Data.Kind()] = Reading{Payload: ev.Packet.Data, Stamp: stamp}
		}

		rec.Received = stamp.Received
		rec.Packet = ev.Packet
		rec.Size = ev.Size
		rec.GroundControl = s.time.Rebase(stamp, timebase.GroundControl)
		rec.Vehicle = s.time.Rebase(stamp, timebase.Vehicle)
		rec.Mission = s.time.Rebase(stamp, timebase.Mission)
		_, rec.InMission = s.time.MissionStart()

	default:
		s.logger.Warn("ignoring unknown link event", "kind", ev.Kind)
		return
	}

	s.publish(rec)
}

func (s *Station) publish(rec engine.Record) {
	if s.publisher == nil {
		return
	}
	if !s.publisher.TryPublish(rec) {
		s.dropped++
	}
}

// Tick refreshes the station's notion of now.
func (s *Station) Tick() {
	s.time.UpdateNow()
}

// Drain applies every queued event and returns how many there were.
func (s *Station) Drain(q *transport.Queue) int {
	events := q.Drain()
	for _, ev := range events {
		s.Apply(ev)
	}
	return len(events)
}

// Run drains q and ticks every interval until ctx is done or the queue is
// closed and empty.
func (s *Station) Run(ctx context.Context, q *transport.Queue, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.Drain(q)
		s.Tick()
		if q.Closed() && q.Len() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			s.Drain(q)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Station) Basis() timebase.Basis { return s.basis }

func (s *Station) SetBasis(b timebase.Basis) { s.basis = b }

// CycleBasis switches to the next basis and returns it.
func (s *Station) CycleBasis() timebase.Basis {
	s.basis = s.basis.Next()
	return s.basis
}

func (s *Station) StartMission() time.Time {
	t := s.time.StartMission()
	s.logger.Info("mission started", "at", t)
	return t
}

func (s *Station) ClearMission() {
	s.time.ClearMission()
	s.logger.Info("mission cleared")
}

// Snapshot is a copy of the state the status views need.
type Snapshot struct {
	Now        time.Time
	ClockLabel string
	Basis      timebase.Basis
	Elapsed    map[timebase.Basis]time.Duration

	Link           Link
	Identification *protocol.Identification
	Latest         map[protocol.PayloadKind]Reading

	SinceLastPacket time.Duration
	HasPacket       bool
	Severity        timebase.Severity
	Staleness       float64

	MissionStart time.Time
	InMission    bool

	Packets  uint64
	Bytes    uint64
	Sessions uint64
	Dropped  uint64
}

func (s *Station) Snapshot() Snapshot {
	snap := Snapshot{
		Now:        s.time.Now(),
		ClockLabel: s.time.ClockLabel(),
		Basis:      s.basis,
		Elapsed:    make(map[timebase.Basis]time.Duration, len(timebase.All)),
		Link:       s.link,
		Latest:     maps.Clone(s.latest),
		Severity:   s.time.LinkSeverity(),
		Packets:    s.packets,
		Bytes:      s.bytes,
		Sessions:   s.sessions,
		Dropped:    s.dropped,
	}
	for _, b := range timebase.All {
		snap.Elapsed[b] = s.time.Elapsed(b)
	}
	if s.ident != nil {
		id := *s.ident
		snap.Identification = &id
	}
	snap.SinceLastPacket, snap.HasPacket = s.time.SinceLastPacket()
	if snap.HasPacket {
		snap.Staleness = timebase.Staleness(snap.SinceLastPacket)
	} else {
		snap.Staleness = 1
	}
	snap.MissionStart, snap.InMission = s.time.MissionStart()
	return snap
}

// Connected reports whether a serial session is open.
func (s Snapshot) Connected() bool {
	return s.Link.Interlink != protocol.InterlinkNone
}
