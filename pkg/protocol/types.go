package protocol

import (
	"fmt"
	"time"
)

// VehicleTime is a moment relative to the vehicle's own epoch (power-on).
type VehicleTime struct {
	Seconds      uint32 `json:"seconds"`
	SubsecMicros uint32 `json:"subsec_micros"`
}

// NewVehicleTime normalizes micros overflow into the seconds field.
func NewVehicleTime(seconds uint32, micros uint32) VehicleTime {
	return VehicleTime{
		Seconds:      seconds + micros/1_000_000,
		SubsecMicros: micros % 1_000_000,
	}
}

// VehicleTimeFromDuration truncates d to whole microseconds.
func VehicleTimeFromDuration(d time.Duration) VehicleTime {
	if d < 0 {
		d = 0
	}
	us := d.Microseconds()
	return VehicleTime{
		Seconds:      uint32(us / 1_000_000),
		SubsecMicros: uint32(us % 1_000_000),
	}
}

func (t VehicleTime) Duration() time.Duration {
	return time.Duration(t.Seconds)*time.Second + time.Duration(t.SubsecMicros)*time.Microsecond
}

func (t VehicleTime) Millis() uint64 {
	return uint64(t.Seconds)*1_000 + uint64(t.SubsecMicros)/1_000
}

func (t VehicleTime) Micros() uint64 {
	return uint64(t.Seconds)*1_000_000 + uint64(t.SubsecMicros)
}

// SecondsFloat includes the fractional part.
func (t VehicleTime) SecondsFloat() float64 {
	return float64(t.Seconds) + float64(t.SubsecMicros)/1_000_000
}

// Compare orders two vehicle times; the order only holds while the vehicle
// has not reset.
func (t VehicleTime) Compare(o VehicleTime) int {
	switch a, b := t.Micros(), o.Micros(); {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (t VehicleTime) String() string {
	return fmt.Sprintf("%d.%06d", t.Seconds, t.SubsecMicros)
}

// PacketUp is sent from the station to the vehicle.
type PacketUp uint32

const (
	// Welcome is sent once per connection; the vehicle answers with an
	// Identification payload.
	Welcome PacketUp = 0
)

func (p PacketUp) String() string {
	switch p {
	case Welcome:
		return "Welcome"
	default:
		return fmt.Sprintf("PacketUp(%d)", uint32(p))
	}
}

// PacketDown is sent from the vehicle to the station. Every packet carries
// the vehicle time at which it was produced.
type PacketDown struct {
	Time VehicleTime `json:"time"`
	Data Payload     `json:"data"`
}

// PayloadKind is the stable wire tag of a payload variant. Tags are never
// reused or renumbered; new kinds take the next free value.
type PayloadKind uint32

const (
	KindIdentification PayloadKind = 0
	KindMagnetometer   PayloadKind = 1
	KindAccelerometer  PayloadKind = 2
	KindTemperature    PayloadKind = 3
)

// Payload is the data portion of a PacketDown.
type Payload interface {
	Kind() PayloadKind
	encode(e *encoder)
}

// MaxIdentLen bounds the name and version strings of an Identification.
const MaxIdentLen = 32

// Identification is sent in response to Welcome.
type Identification struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Vector3 is a generic three component vector.
type Vector3[T int32 | float64] struct {
	X T `json:"x"`
	Y T `json:"y"`
	Z T `json:"z"`
}

// Magnetometer is a raw reading in nanotesla.
type Magnetometer struct {
	Vector3[int32]
}

// Accelerometer is a raw reading in milli-g.
type Accelerometer struct {
	Vector3[int32]
}

// Temperature is a scalar reading in thousandths of a degree Celsius.
type Temperature struct {
	MilliCelsius int32 `json:"milli_celsius"`
}

func (Identification) Kind() PayloadKind { return KindIdentification }
func (Magnetometer) Kind() PayloadKind   { return KindMagnetometer }
func (Accelerometer) Kind() PayloadKind  { return KindAccelerometer }
func (Temperature) Kind() PayloadKind    { return KindTemperature }

func (t Temperature) Celsius() float64 {
	return float64(t.MilliCelsius) / 1000
}
