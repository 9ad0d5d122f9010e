package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

// EncodeUp serializes p and returns a sentinel-terminated COBS frame.
func EncodeUp(p PacketUp) ([]byte, error) {
	if p != Welcome {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, p)
	}
	e := encoder{}
	e.uvarint(uint32(p))
	return frame(e.buf), nil
}

// EncodeDown serializes p and returns a sentinel-terminated COBS frame.
func EncodeDown(p PacketDown) ([]byte, error) {
	if p.Data == nil {
		return nil, fmt.Errorf("%w: packet without payload", ErrInvalidValue)
	}
	if _, ok := payloadRegistry[p.Data.Kind()]; !ok {
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownPayload, p.Data.Kind())
	}
	e := encoder{}
	e.vehicleTime(p.Time)
	e.uvarint(uint32(p.Data.Kind()))
	p.Data.encode(&e)
	if e.err != nil {
		return nil, e.err
	}
	return frame(e.buf), nil
}

func frame(raw []byte) []byte {
	return append(CobsEncode(raw), Sentinel)
}

// DecodeDown extracts the first frame of buf. It returns the number of bytes
// the frame occupied, sentinel included, so the caller can evict exactly
// that many bytes from the front of its buffer.
//
// ErrNeedMoreData is returned with zero consumed when buf holds no sentinel.
// ErrTruncatedFrame and ErrCorruptFrame report the frame's length as consumed.
func DecodeDown(buf []byte) (PacketDown, int, error) {
	var pkt PacketDown
	consumed, err := decodeFrame(buf, func(d *decoder) error {
		t, err := d.vehicleTime()
		if err != nil {
			return err
		}
		data, err := decodePayload(d)
		if err != nil {
			return err
		}
		pkt = PacketDown{Time: t, Data: data}
		return nil
	})
	if err != nil {
		return PacketDown{}, consumed, err
	}
	return pkt, consumed, nil
}

// DecodeUp is the vehicle side counterpart of EncodeUp.
func DecodeUp(buf []byte) (PacketUp, int, error) {
	var pkt PacketUp
	consumed, err := decodeFrame(buf, func(d *decoder) error {
		tag, err := d.uvarint()
		if err != nil {
			return err
		}
		if PacketUp(tag) != Welcome {
			return fmt.Errorf("%w: packet up tag %d", ErrInvalidValue, tag)
		}
		pkt = PacketUp(tag)
		return nil
	})
	return pkt, consumed, err
}

func decodeFrame(buf []byte, body func(d *decoder) error) (int, error) {
	idx := bytes.IndexByte(buf, Sentinel)
	if idx < 0 {
		return 0, ErrNeedMoreData
	}
	consumed := idx + 1

	raw, err := CobsDecode(buf[:idx])
	if err != nil {
		return consumed, fmt.Errorf("%w: %w", ErrCorruptFrame, err)
	}

	if err := body(&decoder{buf: raw}); err != nil {
		if errors.Is(err, errUnexpectedEnd) {
			return consumed, fmt.Errorf("%w: %d byte payload", ErrTruncatedFrame, len(raw))
		}
		return consumed, fmt.Errorf("%w: %w", ErrCorruptFrame, err)
	}
	return consumed, nil
}
