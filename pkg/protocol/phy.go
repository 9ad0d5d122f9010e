package protocol

// Interlink identifies the physical method used to reach the vehicle.
type Interlink uint8

const (
	InterlinkNone Interlink = iota
	InterlinkSerial
)

func (i Interlink) String() string {
	switch i {
	case InterlinkSerial:
		return "Serial"
	default:
		return "None"
	}
}

// USB identification of the vehicle's serial bridge (http://voti.nl/pids/).
const (
	VID uint16 = 0x16C0
	PID uint16 = 0x03E8
)

const (
	// BufferSize is the nominal size of a single serial read. Frames may
	// span several reads.
	BufferSize = 2048

	// Sentinel terminates every COBS frame and appears nowhere else in it.
	Sentinel byte = 0x00

	// DefaultBaudRate is ignored by USB CDC devices but required to open
	// the port on most platforms.
	DefaultBaudRate = 115200
)
