package foxglove

import "strings"

const packetSchema = `{
  "type": "object",
  "properties": {
    "ts": { "type": "string" },
    "event": { "type": "string" },
    "session": { "type": "string" },
    "vehicle_time": { "type": "number" },
    "payload": { "type": "string" },
    "data": { "type": "object", "additionalProperties": true },
    "gct": { "type": "number" },
    "vot": { "type": "number" },
    "mit": { "type": "number" }
  },
  "required": ["ts", "event"]
}`

const vectorSchema = `{
  "type": "object",
  "properties": {
    "timestamp": {
      "type": "object",
      "properties": { "sec": { "type": "integer" }, "nsec": { "type": "integer" } }
    },
    "vehicle_time": { "type": "number" },
    "x": { "type": "number" },
    "y": { "type": "number" },
    "z": { "type": "number" },
    "unit": { "type": "string" }
  }
}`

const temperatureSchema = `{
  "type": "object",
  "properties": {
    "timestamp": {
      "type": "object",
      "properties": { "sec": { "type": "integer" }, "nsec": { "type": "integer" } }
    },
    "vehicle_time": { "type": "number" },
    "value": { "type": "number" },
    "unit": { "type": "string" }
  }
}`

const logSchema = `{
  "type": "object",
  "properties": {
    "timestamp": {
      "type": "object",
      "properties": { "sec": { "type": "integer" }, "nsec": { "type": "integer" } }
    },
    "level": { "type": "integer" },
    "message": { "type": "string" },
    "name": { "type": "string" },
    "file": { "type": "string" },
    "line": { "type": "integer" }
  }
}`

type Config struct {
	WSAddr      string
	Name        string
	TopicPrefix string
	SendBuf     int
}

func DefaultConfig() Config {
	return Config{
		WSAddr:      "127.0.0.1:8765",
		Name:        "groundstation",
		TopicPrefix: "groundstation",
		SendBuf:     256,
	}
}

func (c Config) normalize() Config {
	defaults := DefaultConfig()
	if c.WSAddr == "" {
		c.WSAddr = defaults.WSAddr
	}
	if c.Name == "" {
		c.Name = defaults.Name
	}
	c.TopicPrefix = strings.Trim(c.TopicPrefix, "/")
	if c.TopicPrefix == "" {
		c.TopicPrefix = defaults.TopicPrefix
	}
	if c.SendBuf <= 0 {
		c.SendBuf = defaults.SendBuf
	}
	return c
}

// Channel ids are fixed so recorded layouts keep working across restarts.
const (
	ChannelPacket        uint64 = 1
	ChannelMagnetometer  uint64 = 2
	ChannelAccelerometer uint64 = 3
	ChannelTemperature   uint64 = 4
	ChannelLink          uint64 = 5
)

func (c Config) channels() []Channel {
	topic := func(name string) string { return c.TopicPrefix + "/" + name }
	return []Channel{
		{ID: ChannelPacket, Topic: topic("packet"), Encoding: "json", SchemaName: "groundstation.Packet", SchemaEncoding: "jsonschema", Schema: packetSchema},
		{ID: ChannelMagnetometer, Topic: topic("magnetometer"), Encoding: "json", SchemaName: "groundstation.Vector3", SchemaEncoding: "jsonschema", Schema: vectorSchema},
		{ID: ChannelAccelerometer, Topic: topic("accelerometer"), Encoding: "json", SchemaName: "groundstation.Vector3", SchemaEncoding: "jsonschema", Schema: vectorSchema},
		{ID: ChannelTemperature, Topic: topic("temperature"), Encoding: "json", SchemaName: "groundstation.Temperature", SchemaEncoding: "jsonschema", Schema: temperatureSchema},
		{ID: ChannelLink, Topic: topic("link"), Encoding: "json", SchemaName: "foxglove.Log", SchemaEncoding: "jsonschema", Schema: logSchema},
	}
}
