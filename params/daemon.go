package params

import (
	"path/filepath"
	"time"
)

type ListenerConfig struct {
	// Network is the network to listen on.
	// The network must be "tcp", "tcp4", "tcp6", "unix" or "unixpacket".
	Network string
	// Address is the address to listen on.
	Address string
}

type WebDaemonConfig struct {
	ListenerConfig

	// TokenEnv names the environment variable holding the ingest token.
	// When the variable is empty, ingest is unauthenticated.
	TokenEnv string

	// MaxBodyBytes bounds POST /positions bodies.
	MaxBodyBytes int64
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3000",
		},
		TokenEnv:     EnvPrefix + "_TOKEN",
		MaxBodyBytes: 8 << 20,
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	d := DefaultWebDaemonConfig()
	d.Address = "localhost:3333"
	return d
}

type MQTTConfig struct {
	// Broker is the broker URL, eg. tcp://localhost:1883.
	// Empty disables MQTT.
	Broker   string
	ClientID string

	// InputTopic carries Signal K deltas or flat candidates.
	InputTopic string

	// OutputTopic receives accepted positions and pass-through values.
	OutputTopic string

	QoS            byte
	ConnectTimeout time.Duration
}

func DefaultMQTTConfig() *MQTTConfig {
	return &MQTTConfig{
		ClientID:       AppName,
		InputTopic:     "signalk/delta",
		OutputTopic:    AppName + "/out",
		QoS:            0,
		ConnectTimeout: 10 * time.Second,
	}
}

func (c *MQTTConfig) Enabled() bool {
	return c != nil && c.Broker != ""
}

type InfluxConfig struct {
	// URL of the InfluxDB v2 server. Empty disables export.
	URL    string
	Token  string
	Org    string
	Bucket string
}

func DefaultInfluxConfig() *InfluxConfig {
	return &InfluxConfig{
		Org:    AppName,
		Bucket: AppName,
	}
}

func (c *InfluxConfig) Enabled() bool {
	return c != nil && c.URL != ""
}

// DaemonConfig gathers everything `fixguard serve` runs.
type DaemonConfig struct {
	Web    *WebDaemonConfig
	MQTT   *MQTTConfig
	Influx *InfluxConfig

	// JournalPath is the bbolt file rejected candidates are journaled to.
	// Empty disables the journal.
	JournalPath string

	HeartbeatInterval time.Duration
}

func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Web:               DefaultWebDaemonConfig(),
		MQTT:              DefaultMQTTConfig(),
		Influx:            DefaultInfluxConfig(),
		JournalPath:       filepath.Join(DatadirRoot, JournalDBName),
		HeartbeatInterval: DefaultHeartbeatInterval,
	}
}
