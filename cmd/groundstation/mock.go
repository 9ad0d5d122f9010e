package main

import (
	"context"
	"math"
	"sync"
	"time"

	"groundstation/pkg/protocol"
	"groundstation/pkg/transport"
)

const (
	mockPortName = "mock0"

	mockVehicleName    = "mock-vehicle"
	mockVehicleVersion = "0.1.0"

	// Earth's field is roughly 25-65 µT.
	mockMagAmplitudeNT = 20_000.0
	mockMagOffsetNT    = 30_000.0
	mockMagFreqHz      = 0.05

	mockAccelAmplitudeMG = 150.0
	mockAccelFreqHz      = 0.4

	mockTempMeanMC      = 21_500.0
	mockTempAmplitudeMC = 1_500.0
	mockTempFreqHz      = 0.01
)

// mockLink simulates a vehicle plugged into a USB port. Each open starts
// a fresh vehicle whose clock begins at zero.
type mockLink struct {
	ctx context.Context
	hz  int

	mu      sync.Mutex
	current *transport.MemPort
}

func newMockLink(ctx context.Context, hz int) *mockLink {
	if hz <= 0 {
		hz = 20
	}
	return &mockLink{ctx: ctx, hz: hz}
}

func (l *mockLink) enumerate() ([]transport.PortInfo, error) {
	return []transport.PortInfo{{
		Name:    mockPortName,
		IsUSB:   true,
		VID:     protocol.VID,
		PID:     protocol.PID,
		Product: "simulated vehicle",
	}}, nil
}

func (l *mockLink) open(name string) (transport.Port, error) {
	port := transport.NewMemPort()
	port.ReadTimeout = 10 * time.Millisecond
	v := &mockVehicle{port: port, hz: l.hz, powerOn: time.Now(), welcome: make(chan struct{}, 1)}
	port.OnWrite(v.receive)

	l.mu.Lock()
	l.current = port
	l.mu.Unlock()

	go v.run(l.ctx)
	return port, nil
}

// unplug detaches the current vehicle.
func (l *mockLink) unplug() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current != nil {
		l.current.Unplug()
	}
}

type mockVehicle struct {
	port    *transport.MemPort
	hz      int
	powerOn time.Time
	welcome chan struct{}

	pending []byte
}

// receive is called with every chunk the station writes.
func (v *mockVehicle) receive(b []byte) {
	v.pending = append(v.pending, b...)
	for {
		pkt, n, err := protocol.DecodeUp(v.pending)
		if n == 0 {
			return
		}
		v.pending = v.pending[n:]
		if err == nil && pkt == protocol.Welcome {
			select {
			case v.welcome <- struct{}{}:
			default:
			}
		}
	}
}

func (v *mockVehicle) run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-v.welcome:
	}

	v.send(protocol.PacketDown{
		Time: v.now(),
		Data: protocol.Identification{Name: mockVehicleName, Version: mockVehicleVersion},
	})

	ticker := time.NewTicker(time.Second / time.Duration(v.hz))
	defer ticker.Stop()

	var seq int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if v.port.IsClosed() {
				return
			}
			elapsed := time.Since(v.powerOn)
			v.send(mockPacket(elapsed, seq))
			seq++
		}
	}
}

func (v *mockVehicle) now() protocol.VehicleTime {
	return protocol.VehicleTimeFromDuration(time.Since(v.powerOn))
}

func (v *mockVehicle) send(pkt protocol.PacketDown) {
	frame, err := protocol.EncodeDown(pkt)
	if err != nil {
		return
	}
	v.port.Feed(frame)
}

// mockPacket rotates through the sensors so each one updates at a third
// of the stream rate.
func mockPacket(elapsed time.Duration, seq int) protocol.PacketDown {
	t := elapsed.Seconds()
	pkt := protocol.PacketDown{Time: protocol.VehicleTimeFromDuration(elapsed)}

	switch seq % 3 {
	case 0:
		pkt.Data = protocol.Magnetometer{Vector3: protocol.Vector3[int32]{
			X: int32(mockMagOffsetNT + mockMagAmplitudeNT*math.Sin(2*math.Pi*mockMagFreqHz*t)),
			Y: int32(mockMagAmplitudeNT * math.Cos(2*math.Pi*mockMagFreqHz*t)),
			Z: int32(-mockMagOffsetNT + 0.25*mockMagAmplitudeNT*math.Sin(2*math.Pi*mockMagFreqHz*t+math.Pi/3)),
		}}
	case 1:
		pkt.Data = protocol.Accelerometer{Vector3: protocol.Vector3[int32]{
			X: int32(mockAccelAmplitudeMG * math.Sin(2*math.Pi*mockAccelFreqHz*t)),
			Y: int32(mockAccelAmplitudeMG * math.Sin(2*math.Pi*mockAccelFreqHz*t+2*math.Pi/3)),
			Z: int32(1000 + mockAccelAmplitudeMG*math.Sin(2*math.Pi*mockAccelFreqHz*t+4*math.Pi/3)),
		}}
	default:
		pkt.Data = protocol.Temperature{
			MilliCelsius: int32(mockTempMeanMC + mockTempAmplitudeMC*math.Sin(2*math.Pi*mockTempFreqHz*t)),
		}
	}
	return pkt
}
