package transport

import (
	"errors"
	"io"
	"net"
	"os"
)

// Port is an open serial line. Read must return within a bounded time;
// a timeout is reported as (0, nil) or as an error whose Timeout() is true.
type Port interface {
	io.ReadWriteCloser
	SetDTR(bool) error
}

// PortInfo describes one serial device as seen by the operating system.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          uint16
	PID          uint16
	SerialNumber string
	Product      string
}

// EnumerateFunc lists the serial devices currently attached.
type EnumerateFunc func() ([]PortInfo, error)

// OpenFunc opens the named port.
type OpenFunc func(name string) (Port, error)

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	var terr interface{ Timeout() bool }
	return errors.As(err, &terr) && terr.Timeout()
}
