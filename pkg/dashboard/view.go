package dashboard

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"groundstation/pkg/protocol"
	"groundstation/pkg/station"
	"groundstation/pkg/timebase"
)

const staleBarWidth = 10

// Render draws the status view for one snapshot.
func Render(snap station.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", snap.ClockLabel, timebase.FormatClock(snap.Now))
	for _, basis := range timebase.All {
		marker := " "
		if basis == snap.Basis {
			marker = ">"
		}
		value := timebase.FormatDuration(snap.Elapsed[basis])
		if basis == timebase.Mission && !snap.InMission {
			value = "--:--:--.-"
		}
		fmt.Fprintf(&b, "%s %s %s  %s\n", marker, basis.Label(), value, basis)
	}
	b.WriteString("\n")

	b.WriteString(renderLink(snap))
	b.WriteString("\n")

	for _, kind := range protocol.Kinds() {
		if kind == protocol.KindIdentification {
			continue
		}
		reading, ok := snap.Latest[kind]
		if !ok {
			fmt.Fprintf(&b, "%-14s --\n", kind)
			continue
		}
		fmt.Fprintf(&b, "%-14s %s  @ %s\n", kind, formatReading(reading.Payload), reading.Stamp.Vehicle)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s packets  %s  %d sessions",
		humanize.Comma(int64(snap.Packets)), humanize.Bytes(snap.Bytes), snap.Sessions)
	if snap.Dropped > 0 {
		fmt.Fprintf(&b, "  %s dropped", humanize.Comma(int64(snap.Dropped)))
	}
	b.WriteString("\n\n")
	b.WriteString("t: time base  m: start mission  c: clear mission  q: quit\n")
	return b.String()
}

func renderLink(snap station.Snapshot) string {
	var b strings.Builder
	if snap.Connected() {
		fmt.Fprintf(&b, "Link     %s %s\n", snap.Link.Interlink, snap.Link.Port)
	} else {
		b.WriteString("Link     no vehicle connected\n")
	}
	if id := snap.Identification; id != nil {
		fmt.Fprintf(&b, "Vehicle  %s %s\n", id.Name, id.Version)
	} else {
		b.WriteString("Vehicle  unidentified\n")
	}

	last := "never"
	if snap.HasPacket {
		last = timebase.FormatDuration(snap.SinceLastPacket)
	}
	fmt.Fprintf(&b, "Last rx  %s [%s] %s\n", last, staleBar(snap.Staleness), snap.Severity)
	return b.String()
}

func staleBar(staleness float64) string {
	filled := int(math.Round(staleness * staleBarWidth))
	filled = max(0, min(staleBarWidth, filled))
	return strings.Repeat("#", filled) + strings.Repeat(".", staleBarWidth-filled)
}

func formatReading(p protocol.Payload) string {
	switch v := p.(type) {
	case protocol.Magnetometer:
		return formatVector(v.Vector3, 1e-9, "T")
	case protocol.Accelerometer:
		return formatVector(v.Vector3, 1e-3, "g")
	case protocol.Temperature:
		return fmt.Sprintf("%.2f °C", v.Celsius())
	case protocol.Identification:
		return v.Name + " " + v.Version
	default:
		return fmt.Sprintf("%v", p)
	}
}

func formatVector(v protocol.Vector3[int32], scale float64, unit string) string {
	parts := make([]string, 0, 3)
	for _, c := range []int32{v.X, v.Y, v.Z} {
		value, prefix := humanize.ComputeSI(float64(c) * scale)
		parts = append(parts, fmt.Sprintf("%7.2f %s%s", value, prefix, unit))
	}
	return strings.Join(parts, " ")
}
