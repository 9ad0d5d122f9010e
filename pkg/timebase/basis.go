package timebase

import (
	"fmt"
	"strings"
)

// Basis is the epoch elapsed time is measured against.
type Basis uint8

const (
	// GroundControl counts from the station's own start.
	GroundControl Basis = iota
	// Vehicle counts from the vehicle's power-on.
	Vehicle
	// Mission counts from an operator-set mission start.
	Mission
)

// All lists every basis in display order.
var All = []Basis{GroundControl, Vehicle, Mission}

func (b Basis) String() string {
	switch b {
	case GroundControl:
		return "Ground Control Time"
	case Vehicle:
		return "Vehicle On Time"
	case Mission:
		return "Mission Time"
	default:
		return fmt.Sprintf("basis(%d)", uint8(b))
	}
}

// Label is the three letter abbreviation shown next to a clock.
func (b Basis) Label() string {
	switch b {
	case GroundControl:
		return "GCT"
	case Vehicle:
		return "VOT"
	case Mission:
		return "MIT"
	default:
		return "???"
	}
}

// Next cycles through All.
func (b Basis) Next() Basis {
	return All[(int(b)+1)%len(All)]
}

// ParseBasis accepts the short label or a config name such as
// "ground_control", "vehicle" or "mission".
func ParseBasis(s string) (Basis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gct", "ground_control", "ground-control", "groundcontrol":
		return GroundControl, nil
	case "vot", "vehicle":
		return Vehicle, nil
	case "mit", "mission":
		return Mission, nil
	default:
		return GroundControl, fmt.Errorf("unknown time base %q", s)
	}
}
