package transport

import (
	"log/slog"

	"groundstation/pkg/observability"
	"groundstation/pkg/protocol"
)

// Locator finds the vehicle among the attached serial devices.
type Locator struct {
	VID       uint16
	PID       uint16
	Enumerate EnumerateFunc
	Logger    *slog.Logger
}

// NewLocator matches the vehicle's compiled-in USB ids.
func NewLocator(enumerate EnumerateFunc) *Locator {
	return &Locator{
		VID:       protocol.VID,
		PID:       protocol.PID,
		Enumerate: enumerate,
	}
}

// Find returns the first USB port matching VID/PID. Enumeration failures
// count as "not found" so the caller simply retries later.
func (l *Locator) Find() (string, bool) {
	if l.Enumerate == nil {
		return "", false
	}
	ports, err := l.Enumerate()
	if err != nil {
		l.logger().Debug("serial enumeration failed", "err", err)
		return "", false
	}
	for _, p := range ports {
		if l.Matches(p) {
			return p.Name, true
		}
	}
	return "", false
}

func (l *Locator) Matches(p PortInfo) bool {
	return p.IsUSB && p.VID == l.VID && p.PID == l.PID
}

// Present reports whether name is still attached.
func (l *Locator) Present(name string) bool {
	found, ok := l.Find()
	return ok && found == name
}

func (l *Locator) logger() *slog.Logger {
	if l.Logger == nil {
		return observability.Discard()
	}
	return l.Logger
}
