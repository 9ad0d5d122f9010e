package foxglove

import "encoding/binary"

const (
	OpServerInfo  = "serverInfo"
	OpAdvertise   = "advertise"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"

	BinaryOpMessageData = 0x01
)

type ServerInfoMsg struct {
	Op                 string            `json:"op"`
	Name               string            `json:"name"`
	Capabilities       []string          `json:"capabilities"`
	SupportedEncodings []string          `json:"supportedEncodings,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	SessionID          string            `json:"sessionId,omitempty"`
}

type Channel struct {
	ID             uint64 `json:"id"`
	Topic          string `json:"topic"`
	Encoding       string `json:"encoding"`
	SchemaName     string `json:"schemaName"`
	SchemaEncoding string `json:"schemaEncoding,omitempty"`
	Schema         string `json:"schema,omitempty"`
}

type AdvertiseMsg struct {
	Op       string    `json:"op"`
	Channels []Channel `json:"channels"`
}

type Subscription struct {
	ID        uint32 `json:"id"`
	ChannelID uint64 `json:"channelId"`
}

type SubscribeMsg struct {
	Op            string         `json:"op"`
	Subscriptions []Subscription `json:"subscriptions"`
}

type UnsubscribeMsg struct {
	Op              string   `json:"op"`
	SubscriptionIDs []uint32 `json:"subscriptionIds"`
}

func EncodeMessageData(subscriptionID uint32, logTime uint64, payload []byte) []byte {
	out := make([]byte, 1+4+8+len(payload))
	out[0] = BinaryOpMessageData
	binary.LittleEndian.PutUint32(out[1:5], subscriptionID)
	binary.LittleEndian.PutUint64(out[5:13], logTime)
	copy(out[13:], payload)
	return out
}

type FrameTime struct {
	Sec  uint32 `json:"sec"`
	Nsec uint32 `json:"nsec"`
}

// PacketMessage mirrors every station record on the packet topic. Times
// are in seconds.
type PacketMessage struct {
	TS          string   `json:"ts"`
	Event       string   `json:"event"`
	Session     string   `json:"session,omitempty"`
	Port        string   `json:"port,omitempty"`
	VehicleTime *float64 `json:"vehicle_time,omitempty"`
	Payload     string   `json:"payload,omitempty"`
	Data        any      `json:"data,omitempty"`
	GCT         *float64 `json:"gct,omitempty"`
	VOT         *float64 `json:"vot,omitempty"`
	MIT         *float64 `json:"mit,omitempty"`
}

type VectorMessage struct {
	Timestamp   FrameTime `json:"timestamp"`
	VehicleTime float64   `json:"vehicle_time"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Z           float64   `json:"z"`
	Unit        string    `json:"unit"`
}

type TemperatureMessage struct {
	Timestamp   FrameTime `json:"timestamp"`
	VehicleTime float64   `json:"vehicle_time"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit"`
}

// LogMessage follows the foxglove.Log schema.
type LogMessage struct {
	Timestamp FrameTime `json:"timestamp"`
	Level     uint8     `json:"level"`
	Message   string    `json:"message"`
	Name      string    `json:"name"`
	File      string    `json:"file"`
	Line      uint32    `json:"line"`
}

// foxglove.Log levels.
const (
	LogLevelInfo    uint8 = 2
	LogLevelWarning uint8 = 3
)
