package foxglove

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"groundstation/pkg/engine"
	"groundstation/pkg/observability"
	"groundstation/pkg/protocol"
	"groundstation/pkg/transport"
)

// Server exposes station records over the Foxglove WebSocket protocol.
type Server struct {
	cfg       Config
	hub       *engine.Hub
	logger    *slog.Logger
	channels  []Channel
	supported map[uint64]struct{}
	clients   map[*client]struct{}
	mu        sync.RWMutex
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	subs map[uint32]uint64
	mu   sync.RWMutex
	once sync.Once
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.With("component", "foxglove")
		}
	}
}

func NewServer(cfg Config, hub *engine.Hub, opts ...Option) *Server {
	cfg = cfg.normalize()
	s := &Server{
		cfg:       cfg,
		hub:       hub,
		logger:    observability.Discard(),
		channels:  cfg.channels(),
		supported: make(map[uint64]struct{}),
		clients:   make(map[*client]struct{}),
	}
	for _, ch := range s.channels {
		s.supported[ch.ID] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)

	httpServer := &http.Server{
		Addr:              s.cfg.WSAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sub := s.hub.Subscribe()
	go s.broadcastLoop(ctx, sub)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.logger.Info("foxglove bridge listening", "addr", s.cfg.WSAddr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		s.closeClients()
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		Subprotocols: []string{"foxglove.websocket.v1"},
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newClient(conn, s.cfg.SendBuf)
	s.addClient(c)
	s.logger.Debug("foxglove client connected", "remote", r.RemoteAddr)

	if err := conn.WriteJSON(s.serverInfo()); err != nil {
		c.close()
		s.removeClient(c)
		return
	}
	if err := conn.WriteJSON(s.advertise()); err != nil {
		c.close()
		s.removeClient(c)
		return
	}

	go c.writeLoop()
	c.readLoop(s.supported)

	c.close()
	s.removeClient(c)
	s.logger.Debug("foxglove client disconnected", "remote", r.RemoteAddr)
}

func (s *Server) serverInfo() ServerInfoMsg {
	return ServerInfoMsg{
		Op:                 OpServerInfo,
		Name:               s.cfg.Name,
		Capabilities:       []string{},
		SupportedEncodings: []string{},
		SessionID:          fmt.Sprintf("%d", time.Now().UTC().UnixNano()),
	}
}

func (s *Server) advertise() AdvertiseMsg {
	return AdvertiseMsg{Op: OpAdvertise, Channels: s.channels}
}

func (s *Server) broadcastLoop(ctx context.Context, sub <-chan engine.Record) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-sub:
			if !ok {
				return
			}
			s.broadcastRecord(rec)
		}
	}
}

func (s *Server) broadcastRecord(rec engine.Record) {
	ts := rec.Received
	if ts.IsZero() {
		ts = time.Now()
	}

	s.publishJSONToChannel(ChannelPacket, ts, packetMessage(rec, ts))
	if log, ok := s.logFromRecord(rec, ts); ok {
		s.publishJSONToChannel(ChannelLink, ts, log)
	}
	if !rec.IsPacket() {
		return
	}
	vt := rec.Packet.Time.SecondsFloat()
	switch data := rec.Packet.Data.(type) {
	case protocol.Magnetometer:
		s.publishJSONToChannel(ChannelMagnetometer, ts, vectorMessage(data.Vector3, "nT", vt, ts))
	case protocol.Accelerometer:
		s.publishJSONToChannel(ChannelAccelerometer, ts, vectorMessage(data.Vector3, "mg", vt, ts))
	case protocol.Temperature:
		s.publishJSONToChannel(ChannelTemperature, ts, TemperatureMessage{
			Timestamp:   frameTime(ts),
			VehicleTime: vt,
			Value:       data.Celsius(),
			Unit:        "C",
		})
	}
}

func (s *Server) publishJSONToChannel(channelID uint64, ts time.Time, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Debug("encode foxglove message", "channel", channelID, "err", err)
		return
	}

	logTime := uint64(ts.UnixNano())
	clients := s.snapshotClients()
	for _, c := range clients {
		subIDs := c.subIDsForChannel(channelID)
		for _, subID := range subIDs {
			frame := EncodeMessageData(subID, logTime, payload)
			c.trySend(frame)
		}
	}
}

func packetMessage(rec engine.Record, ts time.Time) PacketMessage {
	msg := PacketMessage{
		TS:      ts.UTC().Format(time.RFC3339Nano),
		Event:   rec.Kind.String(),
		Session: rec.Session,
		Port:    rec.Port,
	}
	if rec.IsPacket() {
		msg.VehicleTime = seconds(rec.Packet.Time.Duration())
		msg.Payload = rec.Packet.Data.Kind().String()
		msg.Data = rec.Packet.Data
		msg.GCT = seconds(rec.GroundControl)
		msg.VOT = seconds(rec.Vehicle)
		if rec.InMission {
			msg.MIT = seconds(rec.Mission)
		}
	}
	return msg
}

func (s *Server) logFromRecord(rec engine.Record, ts time.Time) (LogMessage, bool) {
	msg := LogMessage{
		Timestamp: frameTime(ts),
		Level:     LogLevelInfo,
		Name:      s.cfg.Name,
	}
	switch rec.Kind {
	case transport.EventConnected:
		msg.Message = fmt.Sprintf("vehicle connected on %s", rec.Port)
	case transport.EventDisconnected:
		msg.Level = LogLevelWarning
		msg.Message = fmt.Sprintf("vehicle disconnected from %s", rec.Port)
	case transport.EventPacketReceived:
		id, ok := rec.Packet.Data.(protocol.Identification)
		if !ok {
			return LogMessage{}, false
		}
		msg.Message = fmt.Sprintf("vehicle identified as %s %s", id.Name, id.Version)
	default:
		return LogMessage{}, false
	}
	return msg, true
}

func vectorMessage(v protocol.Vector3[int32], unit string, vt float64, ts time.Time) VectorMessage {
	return VectorMessage{
		Timestamp:   frameTime(ts),
		VehicleTime: vt,
		X:           float64(v.X),
		Y:           float64(v.Y),
		Z:           float64(v.Z),
		Unit:        unit,
	}
}

func frameTime(ts time.Time) FrameTime {
	return FrameTime{Sec: uint32(ts.Unix()), Nsec: uint32(ts.Nanosecond())}
}

func seconds(d time.Duration) *float64 {
	v := d.Seconds()
	return &v
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) closeClients() {
	for _, c := range s.snapshotClients() {
		c.close()
	}
}

func (s *Server) snapshotClients() []*client {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	return clients
}

func newClient(conn *websocket.Conn, sendBuf int) *client {
	if sendBuf <= 0 {
		sendBuf = DefaultConfig().SendBuf
	}
	return &client{
		conn: conn,
		send: make(chan []byte, sendBuf),
		subs: make(map[uint32]uint64),
	}
}

func (c *client) readLoop(supportedChannels map[uint64]struct{}) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var header struct {
			Op string `json:"op"`
		}
		if err := json.Unmarshal(data, &header); err != nil {
			continue
		}

		switch header.Op {
		case OpSubscribe:
			var msg SubscribeMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			for _, sub := range msg.Subscriptions {
				if _, ok := supportedChannels[sub.ChannelID]; ok {
					c.addSub(sub.ID, sub.ChannelID)
				}
			}
		case OpUnsubscribe:
			var msg UnsubscribeMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			for _, id := range msg.SubscriptionIDs {
				c.removeSub(id)
			}
		}
	}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			c.close()
			return
		}
	}
}

// trySend drops msg when the client is slow. Sending on a closed client
// panics; the recover keeps a racing broadcast alive.
func (c *client) trySend(msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) addSub(id uint32, channelID uint64) {
	c.mu.Lock()
	c.subs[id] = channelID
	c.mu.Unlock()
}

func (c *client) removeSub(id uint32) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

func (c *client) subIDsForChannel(channelID uint64) []uint32 {
	c.mu.RLock()
	ids := make([]uint32, 0, len(c.subs))
	for id, ch := range c.subs {
		if ch == channelID {
			ids = append(ids, id)
		}
	}
	c.mu.RUnlock()
	return ids
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}
