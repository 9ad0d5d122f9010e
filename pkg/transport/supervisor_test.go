package transport_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"groundstation/pkg/transport"
)

func TestSupervisorEventOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := mustEncode(t, temperature(1, 10))
	second := mustEncode(t, temperature(2, 20))

	var opened atomic.Int32
	open := func(name string) (transport.Port, error) {
		if opened.Add(1) > 1 {
			return nil, errors.New("busy")
		}
		port := transport.NewMemPort()
		port.OnWrite(func(b []byte) {
			if bytes.Equal(b, []byte{0x01, 0x01, 0x00}) {
				port.Feed(append(append([]byte{}, first...), second...))
				port.Unplug()
			}
		})
		return port, nil
	}

	q := transport.NewQueue()
	locator := transport.NewLocator(func() ([]transport.PortInfo, error) {
		return []transport.PortInfo{usbPort("/dev/ttyACM0")}, nil
	})
	transport.StartSupervisor(ctx, q,
		transport.WithLocator(locator),
		transport.WithOpener(open),
		transport.WithPollInterval(5*time.Millisecond),
	)

	want := []transport.EventKind{
		transport.EventConnected,
		transport.EventPacketReceived,
		transport.EventPacketReceived,
		transport.EventDisconnected,
	}
	var session string
	for i, kind := range want {
		ev := popEvent(t, q)
		if ev.Kind != kind {
			t.Fatalf("event %d: expected %s, got %s", i, kind, ev.Kind)
		}
		if ev.Port != "/dev/ttyACM0" {
			t.Fatalf("event %d: unexpected port %q", i, ev.Port)
		}
		if i == 0 {
			session = ev.Session
		} else if ev.Session != session {
			t.Fatalf("event %d: session changed from %q to %q", i, session, ev.Session)
		}
		if kind == transport.EventPacketReceived && ev.Size != len(first) {
			t.Fatalf("event %d: unexpected frame size %d", i, ev.Size)
		}
	}
	if session == "" {
		t.Fatalf("expected a session id")
	}

	cancel()
	waitClosed(t, q)
}

func TestSupervisorSuppressesRepeatedNotFound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var present atomic.Bool
	var scans atomic.Int32
	locator := transport.NewLocator(func() ([]transport.PortInfo, error) {
		scans.Add(1)
		if present.Load() {
			return []transport.PortInfo{usbPort("/dev/ttyACM0")}, nil
		}
		return []transport.PortInfo{{Name: "/dev/ttyS0"}}, nil
	})

	handler := newCaptureHandler()
	q := transport.NewQueue()
	transport.StartSupervisor(ctx, q,
		transport.WithLocator(locator),
		transport.WithOpener(func(string) (transport.Port, error) {
			present.Store(false)
			return nil, errors.New("permission denied")
		}),
		transport.WithPollInterval(time.Millisecond),
		transport.WithLogger(slog.New(handler)),
	)

	waitFor(t, func() bool { return scans.Load() >= 5 })
	if got := handler.count(slog.LevelWarn, "no vehicle connected"); got != 1 {
		t.Fatalf("expected one not-found warning, got %d", got)
	}

	// A found device resets the suppression, even if opening it fails.
	present.Store(true)
	waitFor(t, func() bool { return handler.count(slog.LevelError, "unable to open serial port") >= 1 })
	mark := scans.Load()
	waitFor(t, func() bool { return scans.Load() >= mark+5 })
	if got := handler.count(slog.LevelWarn, "no vehicle connected"); got != 2 {
		t.Fatalf("expected warning again after a found device, got %d", got)
	}
	if q.Len() != 0 {
		t.Fatalf("failed opens must not emit events, got %d", q.Len())
	}
}

func TestSupervisorRetriesAfterSessionFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var ports []*transport.MemPort
	open := func(string) (transport.Port, error) {
		port := transport.NewMemPort()
		port.FailWrites(true)
		mu.Lock()
		ports = append(ports, port)
		mu.Unlock()
		return port, nil
	}

	q := transport.NewQueue()
	transport.StartSupervisor(ctx, q,
		transport.WithLocator(transport.NewLocator(func() ([]transport.PortInfo, error) {
			return []transport.PortInfo{usbPort("COM3")}, nil
		})),
		transport.WithOpener(open),
		transport.WithPollInterval(time.Millisecond),
	)

	sessions := map[string]bool{}
	for i := 0; i < 2; i++ {
		connected := popEvent(t, q)
		disconnected := popEvent(t, q)
		if connected.Kind != transport.EventConnected || disconnected.Kind != transport.EventDisconnected {
			t.Fatalf("unexpected events: %s, %s", connected.Kind, disconnected.Kind)
		}
		sessions[connected.Session] = true
	}
	if len(sessions) != 2 {
		t.Fatalf("expected distinct session ids, got %v", sessions)
	}

	mu.Lock()
	defer mu.Unlock()
	if !ports[0].IsClosed() || ports[0].DTR() {
		t.Fatalf("expected first port closed with DTR released")
	}
}

func TestSupervisorClosesQueueOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := transport.NewQueue()
	transport.StartSupervisor(ctx, q,
		transport.WithLocator(transport.NewLocator(func() ([]transport.PortInfo, error) { return nil, nil })),
		transport.WithPollInterval(time.Hour),
	)
	cancel()
	waitClosed(t, q)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func waitClosed(t *testing.T, q *transport.Queue) {
	t.Helper()
	waitFor(t, q.Closed)
}
