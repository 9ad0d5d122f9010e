package timebase

import "time"

// Thresholds for the link freshness indicator.
const (
	NominalWithin = 100 * time.Millisecond
	WarningWithin = 1000 * time.Millisecond
)

type Severity uint8

const (
	Nominal Severity = iota
	Warning
	Stale
)

func (s Severity) String() string {
	switch s {
	case Nominal:
		return "nominal"
	case Warning:
		return "warning"
	default:
		return "stale"
	}
}

// Freshness classifies the time since the last packet.
func Freshness(sinceLast time.Duration) Severity {
	switch {
	case sinceLast <= NominalWithin:
		return Nominal
	case sinceLast <= WarningWithin:
		return Warning
	default:
		return Stale
	}
}

// Staleness maps the time since the last packet onto [0, 1]: 0 up to
// NominalWithin, 1 from WarningWithin, linear in between.
func Staleness(sinceLast time.Duration) float64 {
	switch {
	case sinceLast <= NominalWithin:
		return 0
	case sinceLast >= WarningWithin:
		return 1
	}
	return float64(sinceLast-NominalWithin) / float64(WarningWithin-NominalWithin)
}

// LinkSeverity is the freshness of the manager's last packet; a station
// that never received one is stale.
func (m *Manager) LinkSeverity() Severity {
	d, ok := m.SinceLastPacket()
	if !ok {
		return Stale
	}
	return Freshness(d)
}
