package dispatch

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/masa-koz/quic-dispatch/internal/protocol"
)

// Config carries everything consumed at startup. The TLS, timeout and
// flow-control fields are handed to the engine untouched; the dispatch layer
// itself only reads the buffer sizes and the retry rate.
type Config struct {
	// Listen are the UDP addresses to bind, one listener each.
	Listen []string `yaml:"listen"`

	TLS TLSConfig `yaml:"tls"`
	// KeyLogFile, if set, is where the engine writes TLS session secrets.
	KeyLogFile string `yaml:"key_log_file"`

	MaxIdleTimeout time.Duration `yaml:"max_idle_timeout"`

	// MaxRecvUDPPayloadSize is the size of the shared receive buffer.
	MaxRecvUDPPayloadSize int `yaml:"max_recv_udp_payload_size"`
	// MaxSendUDPPayloadSize is the size of the shared send buffer.
	MaxSendUDPPayloadSize int `yaml:"max_send_udp_payload_size"`

	InitialMaxData                 uint64 `yaml:"initial_max_data"`
	InitialMaxStreamDataBidiLocal  uint64 `yaml:"initial_max_stream_data_bidi_local"`
	InitialMaxStreamDataBidiRemote uint64 `yaml:"initial_max_stream_data_bidi_remote"`
	InitialMaxStreamDataUni        uint64 `yaml:"initial_max_stream_data_uni"`
	InitialMaxStreamsBidi          uint64 `yaml:"initial_max_streams_bidi"`
	InitialMaxStreamsUni           uint64 `yaml:"initial_max_streams_uni"`

	DisableActiveMigration bool `yaml:"disable_active_migration"`
	EnableEarlyData        bool `yaml:"enable_early_data"`

	// RetriesPerSecond throttles stateless Retry replies. Zero means
	// unlimited.
	RetriesPerSecond float64 `yaml:"retries_per_second"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// TLSConfig holds the certificate paths passed to the engine.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate checks the config for inconsistencies.
func (c *Config) Validate() error {
	for _, addr := range c.Listen {
		if _, err := net.ResolveUDPAddr("udp", addr); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", addr, err)
		}
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("tls cert_file and key_file must be set together")
	}
	if c.MaxRecvUDPPayloadSize < 0 {
		return fmt.Errorf("max_recv_udp_payload_size must not be negative")
	}
	if c.MaxSendUDPPayloadSize < 0 {
		return fmt.Errorf("max_send_udp_payload_size must not be negative")
	}
	if c.MaxSendUDPPayloadSize > c.MaxRecvUDPPayloadSize && c.MaxRecvUDPPayloadSize != 0 {
		return fmt.Errorf("max_send_udp_payload_size must not exceed max_recv_udp_payload_size")
	}
	if c.RetriesPerSecond < 0 {
		return fmt.Errorf("retries_per_second must not be negative")
	}
	return nil
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	copied := *c
	copied.Listen = append([]string(nil), c.Listen...)
	return &copied
}

// populated returns a copy with defaults filled in for unset fields.
func (c *Config) populated() *Config {
	if c == nil {
		c = &Config{}
	}
	conf := c.Clone()
	if conf.MaxIdleTimeout == 0 {
		conf.MaxIdleTimeout = 5 * time.Second
	}
	if conf.MaxRecvUDPPayloadSize == 0 {
		conf.MaxRecvUDPPayloadSize = protocol.MaxRecvUDPPayloadSize
	}
	if conf.MaxSendUDPPayloadSize == 0 {
		conf.MaxSendUDPPayloadSize = protocol.MaxSendUDPPayloadSize
	}
	if conf.InitialMaxData == 0 {
		conf.InitialMaxData = 10_000_000
	}
	if conf.InitialMaxStreamDataBidiLocal == 0 {
		conf.InitialMaxStreamDataBidiLocal = 1_000_000
	}
	if conf.InitialMaxStreamDataBidiRemote == 0 {
		conf.InitialMaxStreamDataBidiRemote = 1_000_000
	}
	if conf.InitialMaxStreamDataUni == 0 {
		conf.InitialMaxStreamDataUni = 1_000_000
	}
	if conf.InitialMaxStreamsBidi == 0 {
		conf.InitialMaxStreamsBidi = 100
	}
	if conf.InitialMaxStreamsUni == 0 {
		conf.InitialMaxStreamsUni = 100
	}
	return conf
}
