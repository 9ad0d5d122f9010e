package protocol_test

import (
	"bytes"
	"testing"

	"groundstation/pkg/protocol"
)

func TestCobsDecodeSimple(t *testing.T) {
	decoded, err := protocol.CobsDecode([]byte{0x03, 0x11, 0x22})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != 0x11 || decoded[1] != 0x22 {
		t.Fatalf("unexpected decode result: %v", decoded)
	}
}

func TestCobsDecodeWithZero(t *testing.T) {
	frame := []byte{0x02, 0x11, 0x02, 0x22}
	decoded, err := protocol.CobsDecode(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x11, 0x00, 0x22}
	if !bytes.Equal(decoded, want) {
		t.Fatalf("unexpected decode result: %x want %x", decoded, want)
	}
}

func TestCobsDecodeInvalid(t *testing.T) {
	if _, err := protocol.CobsDecode([]byte{0x00, 0x01}); err == nil {
		t.Fatalf("expected error for invalid code 0x00")
	}
	if _, err := protocol.CobsDecode([]byte{0x05, 0x01}); err == nil {
		t.Fatalf("expected error for block longer than frame")
	}
}

func TestCobsEncodeKnownVectors(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"empty", []byte{}, []byte{0x01}},
		{"zero", []byte{0x00}, []byte{0x01, 0x01}},
		{"two zeros", []byte{0x00, 0x00}, []byte{0x01, 0x01, 0x01}},
		{"mixed", []byte{0x11, 0x22, 0x00, 0x33}, []byte{0x03, 0x11, 0x22, 0x02, 0x33}},
		{"no zero", []byte{0x11, 0x22, 0x33, 0x44}, []byte{0x05, 0x11, 0x22, 0x33, 0x44}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := protocol.CobsEncode(tc.in)
			if !bytes.Equal(got, tc.want) {
				t.Fatalf("encode %x: got %x want %x", tc.in, got, tc.want)
			}
		})
	}
}

func TestCobsRoundTripLongRuns(t *testing.T) {
	for _, size := range []int{253, 254, 255, 508, 1000} {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i%255) + 1
		}
		if size > 300 {
			data[300] = 0
		}

		encoded := protocol.CobsEncode(data)
		if bytes.IndexByte(encoded, 0x00) >= 0 {
			t.Fatalf("size %d: encoded output contains a zero byte", size)
		}
		decoded, err := protocol.CobsDecode(encoded)
		if err != nil {
			t.Fatalf("size %d: decode failed: %v", size, err)
		}
		if !bytes.Equal(decoded, data) {
			t.Fatalf("size %d: round trip mismatch", size)
		}
	}
}
