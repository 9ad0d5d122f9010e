package transport_test

import (
	"errors"
	"testing"

	"groundstation/pkg/transport"
)

func TestLocatorFind(t *testing.T) {
	cases := []struct {
		name  string
		ports []transport.PortInfo
		err   error
		want  string
		found bool
	}{
		{name: "none"},
		{name: "enumeration error", err: errors.New("no sysfs")},
		{
			name:  "non usb",
			ports: []transport.PortInfo{{Name: "/dev/ttyS0"}},
		},
		{
			name:  "wrong pid",
			ports: []transport.PortInfo{{Name: "/dev/ttyUSB0", IsUSB: true, VID: 0x16C0, PID: 0x0001}},
		},
		{
			name: "first match wins",
			ports: []transport.PortInfo{
				{Name: "/dev/ttyS0"},
				usbPort("/dev/ttyACM1"),
				usbPort("/dev/ttyACM2"),
			},
			want:  "/dev/ttyACM1",
			found: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := transport.NewLocator(func() ([]transport.PortInfo, error) { return tc.ports, tc.err })
			got, ok := l.Find()
			if ok != tc.found || got != tc.want {
				t.Fatalf("Find() = %q, %v; want %q, %v", got, ok, tc.want, tc.found)
			}
		})
	}
}

func TestLocatorPresent(t *testing.T) {
	l := transport.NewLocator(func() ([]transport.PortInfo, error) {
		return []transport.PortInfo{usbPort("COM4")}, nil
	})
	if !l.Present("COM4") {
		t.Fatalf("expected COM4 present")
	}
	if l.Present("COM5") {
		t.Fatalf("expected COM5 absent")
	}
}
