package transport_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"groundstation/pkg/protocol"
	"groundstation/pkg/transport"
)

// captureHandler records every log record, including those of derived loggers.
type captureHandler struct {
	mu      *sync.Mutex
	records *[]slog.Record
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{mu: &sync.Mutex{}, records: &[]slog.Record{}}
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	*h.records = append(*h.records, r.Clone())
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) count(level slog.Level, msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range *h.records {
		if r.Level == level && r.Message == msg {
			n++
		}
	}
	return n
}

func mustEncode(t *testing.T, pkt protocol.PacketDown) []byte {
	t.Helper()
	frame, err := protocol.EncodeDown(pkt)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return frame
}

func temperature(sec uint32, milli int32) protocol.PacketDown {
	return protocol.PacketDown{
		Time: protocol.NewVehicleTime(sec, 0),
		Data: protocol.Temperature{MilliCelsius: milli},
	}
}

func popEvent(t *testing.T, q *transport.Queue) transport.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, ok := q.Pop(ctx)
	if !ok {
		t.Fatalf("timeout waiting for event")
	}
	return ev
}

func usbPort(name string) transport.PortInfo {
	return transport.PortInfo{Name: name, IsUSB: true, VID: protocol.VID, PID: protocol.PID}
}
