package timebase

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"groundstation/pkg/observability"
	"groundstation/pkg/protocol"
)

// Stamp pairs a vehicle timestamp with the local time it arrived.
type Stamp struct {
	Vehicle  protocol.VehicleTime
	Received time.Time
}

// ZoneFunc resolves the station's local time zone.
type ZoneFunc func() (*time.Location, error)

// Manager reconciles station, vehicle and mission clocks. It is not safe
// for concurrent use; the application loop owns it.
type Manager struct {
	clock  func() time.Time
	zone   ZoneFunc
	logger *slog.Logger

	zoneOnce sync.Once
	loc      *time.Location
	utc      bool

	now             time.Time
	groundControlOn time.Time

	lastPacket    time.Time
	hasLastPacket bool

	vehicle    Stamp
	hasVehicle bool

	missionStart    time.Time
	hasMissionStart bool
}

type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithZone replaces LocalZone.
func WithZone(zone ZoneFunc) Option {
	return func(m *Manager) {
		if zone != nil {
			m.zone = zone
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger.With("component", "timebase")
		}
	}
}

// NewManager anchors ground-control time at the current local time,
// truncated to the whole second so once-per-second displays flip together.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		clock:  time.Now,
		zone:   LocalZone,
		logger: observability.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.now = m.currentTime()
	m.groundControlOn = quantize(m.now)
	return m
}

// LocalZone honours $TZ and otherwise uses the system zone. An
// unresolvable $TZ is an error.
func LocalZone() (*time.Location, error) {
	if name, ok := os.LookupEnv("TZ"); ok && name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("resolve local time zone %q: %w", name, err)
		}
		return loc, nil
	}
	if time.Local == nil {
		return nil, errors.New("system time zone unavailable")
	}
	return time.Local, nil
}

func (m *Manager) location() *time.Location {
	m.zoneOnce.Do(func() {
		loc, err := m.zone()
		if err != nil || loc == nil {
			m.logger.Error("local time zone unavailable", "err", err)
			m.logger.Warn("using UTC for local time")
			loc = time.UTC
			m.utc = true
		}
		m.loc = loc
	})
	return m.loc
}

func (m *Manager) currentTime() time.Time {
	return m.clock().In(m.location())
}

func quantize(t time.Time) time.Time {
	return t.Truncate(time.Second)
}

// UpdateNow refreshes the cached local time. Call once per tick.
func (m *Manager) UpdateNow() {
	m.now = m.currentTime()
}

func (m *Manager) Now() time.Time { return m.now }

// IsUTC reports whether the local zone could not be resolved.
func (m *Manager) IsUTC() bool {
	m.location()
	return m.utc
}

// ClockLabel is "UTC" on fallback and "SLT" (station local time) otherwise.
func (m *Manager) ClockLabel() string {
	if m.IsUTC() {
		return "UTC"
	}
	return "SLT"
}

func (m *Manager) GroundControlOn() time.Time { return m.groundControlOn }

// Elapsed is the time passed under b as of the last UpdateNow. Vehicle and
// Mission are zero until a packet arrives or a mission starts.
func (m *Manager) Elapsed(b Basis) time.Duration {
	switch b {
	case GroundControl:
		return m.now.Sub(m.groundControlOn)
	case Vehicle:
		if !m.hasVehicle {
			return 0
		}
		return m.vehicle.Vehicle.Duration()
	case Mission:
		if !m.hasMissionStart {
			return 0
		}
		return m.now.Sub(m.missionStart)
	default:
		return 0
	}
}

// Rebase places a recorded reading on b. Readings received before the
// mission started rebase to negative durations.
func (m *Manager) Rebase(s Stamp, b Basis) time.Duration {
	switch b {
	case GroundControl:
		return s.Received.Sub(m.groundControlOn)
	case Vehicle:
		return s.Vehicle.Duration()
	case Mission:
		if !m.hasMissionStart {
			return 0
		}
		return s.Received.Sub(m.missionStart)
	default:
		return 0
	}
}

// PacketReceived records vt as the latest vehicle time, stamped with the
// current local time. The last call wins even if vt is older.
func (m *Manager) PacketReceived(vt protocol.VehicleTime) Stamp {
	received := m.currentTime()
	m.lastPacket = received
	m.hasLastPacket = true
	m.vehicle = Stamp{Vehicle: vt, Received: received}
	m.hasVehicle = true
	return m.vehicle
}

// VehicleTime returns the latest vehicle stamp, if any.
func (m *Manager) VehicleTime() (Stamp, bool) {
	return m.vehicle, m.hasVehicle
}

// SinceLastPacket is now minus the last receipt time. It is false until the
// first packet. Clock steps backwards are clamped to zero.
func (m *Manager) SinceLastPacket() (time.Duration, bool) {
	if !m.hasLastPacket {
		return 0, false
	}
	d := m.now.Sub(m.lastPacket)
	if d < 0 {
		d = 0
	}
	return d, true
}

func (m *Manager) SetMissionStart(t time.Time) {
	m.missionStart = t
	m.hasMissionStart = true
}

// StartMission marks the current local time as mission start.
func (m *Manager) StartMission() time.Time {
	t := m.currentTime()
	m.SetMissionStart(t)
	return t
}

func (m *Manager) ClearMission() {
	m.missionStart = time.Time{}
	m.hasMissionStart = false
}

func (m *Manager) MissionStart() (time.Time, bool) {
	return m.missionStart, m.hasMissionStart
}
