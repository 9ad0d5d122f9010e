package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

var (
	// ErrNeedMoreData means the buffer holds no complete frame yet.
	ErrNeedMoreData = errors.New("need more data")

	// ErrTruncatedFrame means a sentinel was found but the frame ended before
	// the payload was complete. This happens when reading starts mid-frame.
	ErrTruncatedFrame = errors.New("frame ended before payload was complete")

	// ErrCorruptFrame wraps every other decoding failure.
	ErrCorruptFrame = errors.New("corrupt frame")

	ErrUnknownPayload = errors.New("unknown payload kind")
	ErrInvalidValue   = errors.New("invalid value")
)

var errUnexpectedEnd = errors.New("unexpected end of payload")

// Values are serialized the way postcard does it: unsigned integers and
// enum discriminants as LEB128 varints, signed integers zigzag encoded,
// strings as a varint length followed by UTF-8 bytes.

type encoder struct {
	buf []byte
	err error
}

func (e *encoder) uvarint(v uint32) {
	e.buf = binary.AppendUvarint(e.buf, uint64(v))
}

func (e *encoder) varint(v int32) {
	e.buf = binary.AppendVarint(e.buf, int64(v))
}

func (e *encoder) str(s string, max int) {
	if len(s) > max {
		e.fail(fmt.Errorf("%w: string of %d bytes exceeds %d", ErrInvalidValue, len(s), max))
		return
	}
	if !utf8.ValidString(s) {
		e.fail(fmt.Errorf("%w: string is not valid UTF-8", ErrInvalidValue))
		return
	}
	e.uvarint(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) vehicleTime(t VehicleTime) {
	if t.SubsecMicros >= 1_000_000 {
		e.fail(fmt.Errorf("%w: subsecond micros %d", ErrInvalidValue, t.SubsecMicros))
		return
	}
	e.uvarint(t.Seconds)
	e.uvarint(t.SubsecMicros)
}

func (e *encoder) vector(v Vector3[int32]) {
	e.varint(v.X)
	e.varint(v.Y)
	e.varint(v.Z)
}

type decoder struct {
	buf []byte
	off int
}

// postcard never emits more than five bytes for a 32-bit varint.
const maxVarint32Len = 5

func (d *decoder) uvarint() (uint32, error) {
	v, n := binary.Uvarint(d.buf[d.off:])
	switch {
	case n == 0:
		return 0, errUnexpectedEnd
	case n < 0 || n > maxVarint32Len || v > math.MaxUint32:
		return 0, fmt.Errorf("%w: bad varint", ErrInvalidValue)
	}
	d.off += n
	return uint32(v), nil
}

func (d *decoder) varint() (int32, error) {
	v, n := binary.Varint(d.buf[d.off:])
	switch {
	case n == 0:
		return 0, errUnexpectedEnd
	case n < 0 || n > maxVarint32Len || v > math.MaxInt32 || v < math.MinInt32:
		return 0, fmt.Errorf("%w: bad varint", ErrInvalidValue)
	}
	d.off += n
	return int32(v), nil
}

func (d *decoder) str(max int) (string, error) {
	n, err := d.uvarint()
	if err != nil {
		return "", err
	}
	if int(n) > len(d.buf)-d.off {
		return "", errUnexpectedEnd
	}
	if int(n) > max {
		return "", fmt.Errorf("%w: string of %d bytes exceeds %d", ErrInvalidValue, n, max)
	}
	raw := d.buf[d.off : d.off+int(n)]
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: string is not valid UTF-8", ErrInvalidValue)
	}
	d.off += int(n)
	return string(raw), nil
}

func (d *decoder) vehicleTime() (VehicleTime, error) {
	secs, err := d.uvarint()
	if err != nil {
		return VehicleTime{}, err
	}
	micros, err := d.uvarint()
	if err != nil {
		return VehicleTime{}, err
	}
	if micros >= 1_000_000 {
		return VehicleTime{}, fmt.Errorf("%w: subsecond micros %d", ErrInvalidValue, micros)
	}
	return VehicleTime{Seconds: secs, SubsecMicros: micros}, nil
}

func (d *decoder) vector() (Vector3[int32], error) {
	var v Vector3[int32]
	var err error
	if v.X, err = d.varint(); err != nil {
		return v, err
	}
	if v.Y, err = d.varint(); err != nil {
		return v, err
	}
	if v.Z, err = d.varint(); err != nil {
		return v, err
	}
	return v, nil
}

func (p Identification) encode(e *encoder) {
	e.str(p.Name, MaxIdentLen)
	e.str(p.Version, MaxIdentLen)
}

func (p Magnetometer) encode(e *encoder)  { e.vector(p.Vector3) }
func (p Accelerometer) encode(e *encoder) { e.vector(p.Vector3) }
func (p Temperature) encode(e *encoder)   { e.varint(p.MilliCelsius) }
