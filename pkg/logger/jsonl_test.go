package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"groundstation/pkg/engine"
	"groundstation/pkg/logger"
	"groundstation/pkg/protocol"
	"groundstation/pkg/transport"
)

func TestJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	writer := logger.NewJSONLWriter(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan engine.Record, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		writer.Consume(ctx, ch)
	}()

	ts := time.Date(2026, 2, 5, 16, 0, 0, 0, time.UTC)
	ch <- engine.Record{Kind: transport.EventConnected, Session: "abc", Port: "/dev/ttyACM0", Received: ts}
	ch <- engine.Record{
		Kind:     transport.EventPacketReceived,
		Session:  "abc",
		Received: ts,
		Packet: protocol.PacketDown{
			Time: protocol.NewVehicleTime(3, 250_000),
			Data: protocol.Accelerometer{Vector3: protocol.Vector3[int32]{X: 10, Y: -20, Z: 1000}},
		},
		Size:          12,
		GroundControl: 1500 * time.Millisecond,
		Vehicle:       3250 * time.Millisecond,
	}
	close(ch)
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var connected map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &connected); err != nil {
		t.Fatalf("json unmarshal failed: %v", err)
	}
	if connected["event"] != "connected" || connected["port"] != "/dev/ttyACM0" {
		t.Fatalf("unexpected connected record: %v", connected)
	}
	if _, ok := connected["payload"]; ok {
		t.Fatalf("connected record must not carry a payload")
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("json unmarshal failed: %v", err)
	}
	if rec["ts"] != ts.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected ts: %v", rec["ts"])
	}
	if rec["payload"] != "accelerometer" || rec["vehicle_time"] != "3.250000" {
		t.Fatalf("unexpected packet fields: %v", rec)
	}
	if rec["gct_ms"] != float64(1500) || rec["vot_ms"] != float64(3250) {
		t.Fatalf("unexpected rebased times: %v", rec)
	}
	if _, ok := rec["mit_ms"]; ok {
		t.Fatalf("mission time must be omitted outside a mission")
	}
	data, ok := rec["data"].(map[string]any)
	if !ok || data["x"] != float64(10) || data["z"] != float64(1000) {
		t.Fatalf("unexpected data: %v", rec["data"])
	}
}
