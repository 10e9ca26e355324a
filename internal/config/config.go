// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultBaudRate     = 9600
	DefaultTimeout      = 3 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
	DefaultPollInterval = 60 * time.Second

	envPrefix = "PULSAR"
)

// Config defines the global configuration structure
type Config struct {
	Log        LogConfig               `mapstructure:"log"`
	Connection ConnectionConfig        `mapstructure:"connection"`
	Devices    map[string]DeviceConfig `mapstructure:"devices"`
	Poll       PollConfig              `mapstructure:"poll"`
	Storage    StorageConfig           `mapstructure:"storage"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// ConnectionConfig defines the line shared by all devices.
//
// Address selects the transport: a device path ("/dev/ttyUSB0", "COM3") opens
// a serial port, a "ws://" or "wss://" URL dials a WebSocket bridge and
// anything else is dialed as a raw TCP "host:port".
type ConnectionConfig struct {
	Address   string          `mapstructure:"address"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	Serial    SerialConfig    `mapstructure:"serial"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// SerialConfig defines serial line settings
type SerialConfig struct {
	Device      string        `mapstructure:"device"`
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	Parity      string        `mapstructure:"parity"`
	StopBits    int           `mapstructure:"stop_bits"`
	Timeout     time.Duration `mapstructure:"timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// WebSocketConfig defines settings for a serial-to-WebSocket bridge
type WebSocketConfig struct {
	URL           string `mapstructure:"url"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"` // Prefer PULSAR_CONNECTION_WEBSOCKET_PASSWORD
	SkipSSLVerify bool   `mapstructure:"skip_ssl_verify"`
}

// DeviceConfig defines one meter on the line
type DeviceConfig struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"`      // "pulsar-m-water"
	SerialID uint32 `mapstructure:"serial_id"` // Device address, up to 8 decimal digits
}

// PollConfig defines the polling loop
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// StorageConfig defines where the last readings are kept
type StorageConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap"
	Path string `mapstructure:"path"` // File path for "file/mmap" type
}

// Transport kinds derived from ConnectionConfig.Address.
const (
	TransportSerial    = "serial"
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

// TransportType reports which transport Address selects.
func (c ConnectionConfig) TransportType() string {
	addr := c.Address
	switch {
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
		return TransportWebSocket
	case strings.HasPrefix(addr, "/"), strings.HasPrefix(strings.ToUpper(addr), "COM"):
		return TransportSerial
	default:
		return TransportTCP
	}
}

// DeviceIDs returns the configured device ids in a stable order.
func (c *Config) DeviceIDs() []string {
	ids := make([]string, 0, len(c.Devices))
	for id := range c.Devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadConfig loads configuration from file, environment and the given flags.
// flags may be nil.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/pulsar/")
		v.AddConfigPath("$HOME/.pulsar")
		v.AddConfigPath(".")
	}

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("connection.timeout", DefaultTimeout)
	v.SetDefault("poll.interval", DefaultPollInterval)
	v.SetDefault("storage.type", "memory")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees env values for known keys.
	for _, key := range []string{"connection.address", "connection.websocket.username", "connection.websocket.password"} {
		_ = v.BindEnv(key)
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if configFile != "" {
			return nil, fmt.Errorf("failed to found config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.fixup(); err != nil {
		return nil, err
	}
	return &config, nil
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level": "log.level",
	"log-file":  "log.file",
	"address":   "connection.address",
	"timeout":   "connection.timeout",
	"interval":  "poll.interval",
	"storage":   "storage.type",
	"data":      "storage.path",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// fixup fills defaults that depend on other settings and validates the result.
func (c *Config) fixup() error {
	if c.Connection.Timeout <= 0 {
		c.Connection.Timeout = DefaultTimeout
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = DefaultPollInterval
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Storage.Type = strings.ToLower(c.Storage.Type)

	switch c.Connection.TransportType() {
	case TransportSerial:
		s := &c.Connection.Serial
		if s.Device == "" {
			s.Device = c.Connection.Address
		}
		if s.Timeout == 0 {
			s.Timeout = c.Connection.Timeout
		}
		fixupSerial(s)
	case TransportWebSocket:
		if c.Connection.WebSocket.URL == "" {
			c.Connection.WebSocket.URL = c.Connection.Address
		}
	}

	switch c.Storage.Type {
	case "", "memory":
		c.Storage.Type = "memory"
	case "file", "mmap":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage %q needs a path", c.Storage.Type)
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	for id, d := range c.Devices {
		if d.Name == "" {
			d.Name = id
		}
		if d.Type == "" {
			return fmt.Errorf("device %q: missing type", id)
		}
		if d.SerialID > 99999999 {
			return fmt.Errorf("device %q: serial id %d exceeds 8 digits", id, d.SerialID)
		}
		c.Devices[id] = d
	}
	return nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Parity == "" {
		s.Parity = "N"
	}
	if s.BaudRate == 0 {
		s.BaudRate = DefaultBaudRate
	}
	if s.DataBits == 0 {
		s.DataBits = 8
	}
	if s.StopBits == 0 {
		s.StopBits = 1
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
}
