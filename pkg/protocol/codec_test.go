package protocol_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"groundstation/pkg/protocol"
)

func samplePackets() []protocol.PacketDown {
	return []protocol.PacketDown{
		{
			Time: protocol.VehicleTime{Seconds: 0, SubsecMicros: 0},
			Data: protocol.Identification{Name: "pathfinder", Version: "0.4.1"},
		},
		{
			Time: protocol.VehicleTime{Seconds: 1, SubsecMicros: 500_000},
			Data: protocol.Magnetometer{Vector3: protocol.Vector3[int32]{X: 21_000, Y: -4_300, Z: 0}},
		},
		{
			Time: protocol.VehicleTime{Seconds: 4_294_967_295, SubsecMicros: 999_999},
			Data: protocol.Accelerometer{Vector3: protocol.Vector3[int32]{X: -2147483648, Y: 2147483647, Z: 1000}},
		},
		{
			Time: protocol.VehicleTime{Seconds: 12, SubsecMicros: 1},
			Data: protocol.Temperature{MilliCelsius: -12_500},
		},
		{
			Time: protocol.VehicleTime{Seconds: 3},
			Data: protocol.Identification{Name: "", Version: strings.Repeat("v", protocol.MaxIdentLen)},
		},
	}
}

func mustEncode(t *testing.T, pkt protocol.PacketDown) []byte {
	t.Helper()
	frame, err := protocol.EncodeDown(pkt)
	if err != nil {
		t.Fatalf("encode %+v: %v", pkt, err)
	}
	return frame
}

func TestRoundTrip(t *testing.T) {
	for _, pkt := range samplePackets() {
		frame := mustEncode(t, pkt)
		if idx := bytes.IndexByte(frame, protocol.Sentinel); idx != len(frame)-1 {
			t.Fatalf("sentinel at %d, want only at end (len %d)", idx, len(frame))
		}

		got, consumed, err := protocol.DecodeDown(frame)
		if err != nil {
			t.Fatalf("decode %s: %v", pkt.Data.Kind(), err)
		}
		if consumed != len(frame) {
			t.Fatalf("consumed %d want %d", consumed, len(frame))
		}
		if got != pkt {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, pkt)
		}
	}
}

func TestWelcomeFrame(t *testing.T) {
	frame, err := protocol.EncodeUp(protocol.Welcome)
	if err != nil {
		t.Fatalf("encode welcome: %v", err)
	}
	if !bytes.Equal(frame, []byte{0x01, 0x01, 0x00}) {
		t.Fatalf("unexpected welcome frame: %x", frame)
	}
	pkt, consumed, err := protocol.DecodeUp(frame)
	if err != nil || pkt != protocol.Welcome || consumed != 3 {
		t.Fatalf("decode welcome: pkt=%v consumed=%d err=%v", pkt, consumed, err)
	}
}

func TestPartialFrameNeedsMoreData(t *testing.T) {
	for _, pkt := range samplePackets() {
		frame := mustEncode(t, pkt)
		for n := 1; n < len(frame); n++ {
			got, consumed, err := protocol.DecodeDown(frame[:n])
			if !errors.Is(err, protocol.ErrNeedMoreData) {
				t.Fatalf("prefix %d/%d: expected ErrNeedMoreData, got %v", n, len(frame), err)
			}
			if consumed != 0 {
				t.Fatalf("prefix %d/%d: consumed %d", n, len(frame), consumed)
			}
			if got.Data != nil {
				t.Fatalf("prefix %d/%d: spurious packet %+v", n, len(frame), got)
			}
		}
	}
	if _, _, err := protocol.DecodeDown(nil); !errors.Is(err, protocol.ErrNeedMoreData) {
		t.Fatalf("empty buffer: expected ErrNeedMoreData, got %v", err)
	}
}

func TestMultiFrameDrain(t *testing.T) {
	packets := samplePackets()
	var stream []byte
	for _, pkt := range packets {
		stream = append(stream, mustEncode(t, pkt)...)
	}

	var got []protocol.PacketDown
	off := 0
	for {
		pkt, consumed, err := protocol.DecodeDown(stream[off:])
		if errors.Is(err, protocol.ErrNeedMoreData) {
			break
		}
		if err != nil {
			t.Fatalf("decode at offset %d: %v", off, err)
		}
		off += consumed
		got = append(got, pkt)
	}

	if off != len(stream) {
		t.Fatalf("left %d bytes over", len(stream)-off)
	}
	if len(got) != len(packets) {
		t.Fatalf("decoded %d packets, want %d", len(got), len(packets))
	}
	for i := range packets {
		if got[i] != packets[i] {
			t.Fatalf("packet %d: got %+v want %+v", i, got[i], packets[i])
		}
	}
}

func rawPayload(t *testing.T, pkt protocol.PacketDown) []byte {
	t.Helper()
	frame := mustEncode(t, pkt)
	raw, err := protocol.CobsDecode(frame[:len(frame)-1])
	if err != nil {
		t.Fatalf("cobs decode: %v", err)
	}
	return raw
}

func stuff(raw []byte) []byte {
	return append(protocol.CobsEncode(raw), protocol.Sentinel)
}

func TestUnknownPayloadTagIsCorrupt(t *testing.T) {
	// seconds=1, micros=0, tag=9
	frame := stuff([]byte{0x01, 0x00, 0x09, 0x02})
	_, consumed, err := protocol.DecodeDown(frame)
	if !errors.Is(err, protocol.ErrCorruptFrame) || !errors.Is(err, protocol.ErrUnknownPayload) {
		t.Fatalf("expected corrupt frame with unknown payload, got %v", err)
	}
	if errors.Is(err, protocol.ErrNeedMoreData) {
		t.Fatalf("corrupt frame must not look like need-more-data")
	}
	if consumed != len(frame) {
		t.Fatalf("consumed %d want %d", consumed, len(frame))
	}
}

func TestTruncatedPayloadIsReported(t *testing.T) {
	raw := rawPayload(t, samplePackets()[1])
	frame := stuff(raw[:len(raw)-1])

	_, consumed, err := protocol.DecodeDown(frame)
	if !errors.Is(err, protocol.ErrTruncatedFrame) {
		t.Fatalf("expected ErrTruncatedFrame, got %v", err)
	}
	if errors.Is(err, protocol.ErrNeedMoreData) || errors.Is(err, protocol.ErrCorruptFrame) {
		t.Fatalf("truncated frame classified as %v", err)
	}
	if consumed != len(frame) {
		t.Fatalf("consumed %d want %d", consumed, len(frame))
	}
}

func TestCorruptFrames(t *testing.T) {
	cases := []struct {
		name  string
		frame []byte
	}{
		{"bad cobs block", []byte{0x09, 0x01, 0x02, 0x00}},
		{"micros out of range", stuff([]byte{0x01, 0xC0, 0x84, 0x3D, 0x03, 0x00})},
		{"overlong varint", stuff([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01, 0x00, 0x03, 0x00})},
		{"bad utf8", stuff([]byte{0x00, 0x00, 0x00, 0x02, 0xC3, 0x28, 0x00})},
		{"string too long", stuff(append([]byte{0x00, 0x00, 0x00, 0x21}, bytes.Repeat([]byte{'a'}, 33)...))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, consumed, err := protocol.DecodeDown(tc.frame)
			if !errors.Is(err, protocol.ErrCorruptFrame) {
				t.Fatalf("expected ErrCorruptFrame, got %v", err)
			}
			if consumed != len(tc.frame) {
				t.Fatalf("consumed %d want %d", consumed, len(tc.frame))
			}
		})
	}
}

func TestEncodeRejectsInvalidPackets(t *testing.T) {
	cases := []protocol.PacketDown{
		{Time: protocol.VehicleTime{SubsecMicros: 1_000_000}, Data: protocol.Temperature{}},
		{Data: protocol.Identification{Name: strings.Repeat("n", protocol.MaxIdentLen+1)}},
		{Data: nil},
	}
	for i, pkt := range cases {
		if _, err := protocol.EncodeDown(pkt); !errors.Is(err, protocol.ErrInvalidValue) {
			t.Fatalf("case %d: expected ErrInvalidValue, got %v", i, err)
		}
	}
}

func TestKindsAreStable(t *testing.T) {
	kinds := protocol.Kinds()
	want := []string{"identification", "magnetometer", "accelerometer", "temperature"}
	if len(kinds) != len(want) {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
	for i, kind := range kinds {
		if uint32(kind) != uint32(i) || kind.String() != want[i] {
			t.Fatalf("kind %d: got %d/%s", i, kind, kind)
		}
	}
}

func TestVehicleTime(t *testing.T) {
	vt := protocol.NewVehicleTime(2, 1_250_000)
	if vt.Seconds != 3 || vt.SubsecMicros != 250_000 {
		t.Fatalf("unexpected normalization: %+v", vt)
	}
	if vt.String() != "3.250000" {
		t.Fatalf("unexpected string: %s", vt)
	}
	if vt.Millis() != 3250 || vt.Micros() != 3_250_000 {
		t.Fatalf("unexpected conversions: %d %d", vt.Millis(), vt.Micros())
	}
	if vt.Duration().Milliseconds() != 3250 {
		t.Fatalf("unexpected duration: %v", vt.Duration())
	}
	if vt.Compare(protocol.VehicleTime{Seconds: 3}) != 1 || vt.Compare(vt) != 0 {
		t.Fatalf("unexpected ordering")
	}
}
