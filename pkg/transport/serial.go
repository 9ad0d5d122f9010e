package transport

import (
	"fmt"
	"strconv"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// SerialOpener returns an OpenFunc for real hardware. Reads block for at
// most readTimeout.
func SerialOpener(baud int, readTimeout time.Duration) OpenFunc {
	return func(name string) (Port, error) {
		port, err := serial.Open(name, &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		if err := port.SetReadTimeout(readTimeout); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
		}
		return port, nil
	}
}

// ListSerialPorts enumerates the serial devices known to the OS.
func ListSerialPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	out := make([]PortInfo, 0, len(details))
	for _, d := range details {
		info := PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		}
		if d.IsUSB {
			info.VID = parseUSBID(d.VID)
			info.PID = parseUSBID(d.PID)
		}
		out = append(out, info)
	}
	return out, nil
}

// USB ids are reported as hex strings without prefix, e.g. "16c0".
func parseUSBID(s string) uint16 {
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}
