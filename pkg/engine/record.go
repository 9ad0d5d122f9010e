package engine

import (
	"time"

	"groundstation/pkg/protocol"
	"groundstation/pkg/transport"
)

// Record is what the station publishes for every link event. Packet
// records carry the reading rebased onto each time basis.
type Record struct {
	Kind     transport.EventKind
	Session  string
	Port     string
	Received time.Time

	Packet protocol.PacketDown
	Size   int

	GroundControl time.Duration
	Vehicle       time.Duration
	Mission       time.Duration
	InMission     bool
}

func (r Record) IsPacket() bool {
	return r.Kind == transport.EventPacketReceived && r.Packet.Data != nil
}
