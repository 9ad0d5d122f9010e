package logger

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"groundstation/pkg/engine"
)

// JSONLWriter writes one JSON object per station record.
type JSONLWriter struct {
	enc *json.Encoder
}

type jsonRecord struct {
	TS          string `json:"ts"`
	Event       string `json:"event"`
	Session     string `json:"session,omitempty"`
	Port        string `json:"port,omitempty"`
	VehicleTime string `json:"vehicle_time,omitempty"`
	Payload     string `json:"payload,omitempty"`
	Size        int    `json:"size,omitempty"`
	Data        any    `json:"data,omitempty"`
	GCTMillis   *int64 `json:"gct_ms,omitempty"`
	VOTMillis   *int64 `json:"vot_ms,omitempty"`
	MITMillis   *int64 `json:"mit_ms,omitempty"`
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc}
}

func (j *JSONLWriter) Consume(ctx context.Context, in <-chan engine.Record) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-in:
			if !ok {
				return
			}
			_ = j.Write(rec)
		}
	}
}

func (j *JSONLWriter) Write(rec engine.Record) error {
	out := jsonRecord{
		TS:      rec.Received.UTC().Format(time.RFC3339Nano),
		Event:   rec.Kind.String(),
		Session: rec.Session,
		Port:    rec.Port,
	}
	if rec.IsPacket() {
		out.VehicleTime = rec.Packet.Time.String()
		out.Payload = rec.Packet.Data.Kind().String()
		out.Size = rec.Size
		out.Data = rec.Packet.Data
		out.GCTMillis = millis(rec.GroundControl)
		out.VOTMillis = millis(rec.Vehicle)
		if rec.InMission {
			out.MITMillis = millis(rec.Mission)
		}
	}
	return j.enc.Encode(out)
}

func millis(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}
