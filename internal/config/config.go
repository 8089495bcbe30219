// Package config holds the runtime configuration and its loader.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/1ureka/tangysync/internal/protocol"
)

// Role represents what the CLI has been asked to do.
type Role string

const (
	RoleSend    Role = "send"
	RoleReceive Role = "receive"
	RoleWatch   Role = "watch"
	RolePack    Role = "pack"
	RoleInspect Role = "inspect"
	RoleApply   Role = "apply"
)

// Config is passed by value to every component that needs it. There is no
// process-wide instance.
type Config struct {
	Relay     RelayConfig     `mapstructure:"relay"`
	Transfer  TransferConfig  `mapstructure:"transfer"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Server    ServerConfig    `mapstructure:"server"`
	Debug     bool            `mapstructure:"debug"`
}

// RelayConfig describes how to reach the signaling relay.
type RelayConfig struct {
	BaseURL string        `mapstructure:"base_url"` // e.g. https://relay.example.com/api
	Token   string        `mapstructure:"token"`    // sent as a bearer token
	Handle  string        `mapstructure:"handle"`   // our own handle, informational
	Timeout time.Duration `mapstructure:"timeout"`  // per HTTP call
}

// TransferConfig tunes the TCP file transport.
type TransferConfig struct {
	BytesPerSecond int64  `mapstructure:"bytes_per_second"`
	ChunkSize      int    `mapstructure:"chunk_size"`
	AdvertiseIP    string `mapstructure:"advertise_ip"` // overrides interface discovery
	SaveDir        string `mapstructure:"save_dir"`
}

// HeartbeatConfig controls the presence heartbeat.
type HeartbeatConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
}

// ServerConfig configures the development relay.
type ServerConfig struct {
	ListenAddr        string  `mapstructure:"listen_addr"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"` // per handle
	Burst             int     `mapstructure:"burst"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Relay: RelayConfig{
			BaseURL: "http://127.0.0.1:8080/api",
			Timeout: 8 * time.Second,
		},
		Transfer: TransferConfig{
			BytesPerSecond: 8 << 20,
			ChunkSize:      1 << 20,
			SaveDir:        "received",
		},
		Heartbeat: HeartbeatConfig{
			Interval:     20 * time.Second,
			InitialDelay: 2 * time.Second,
		},
		Server: ServerConfig{
			ListenAddr:        ":8080",
			RequestsPerSecond: 20,
			Burst:             40,
		},
	}
}

// envPrefix namespaces environment overrides, e.g. TANGYSYNC_RELAY_TOKEN.
const envPrefix = "TANGYSYNC"

// Load builds a Config from defaults, the optional file at path and
// TANGYSYNC_* environment variables, in increasing order of precedence.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	var errs []error
	if c.Relay.Timeout < 0 {
		errs = append(errs, fmt.Errorf("relay.timeout must not be negative"))
	}
	if c.Transfer.BytesPerSecond < 0 {
		errs = append(errs, fmt.Errorf("transfer.bytes_per_second must not be negative"))
	}
	if c.Transfer.ChunkSize < 0 || c.Transfer.ChunkSize > protocol.MaxFrameSize {
		errs = append(errs, fmt.Errorf("transfer.chunk_size must be between 0 and %d", protocol.MaxFrameSize))
	}
	if c.Heartbeat.Interval <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat.interval must be positive"))
	}
	return errors.Join(errs...)
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("relay.base_url", d.Relay.BaseURL)
	v.SetDefault("relay.token", d.Relay.Token)
	v.SetDefault("relay.handle", d.Relay.Handle)
	v.SetDefault("relay.timeout", d.Relay.Timeout)
	v.SetDefault("transfer.bytes_per_second", d.Transfer.BytesPerSecond)
	v.SetDefault("transfer.chunk_size", d.Transfer.ChunkSize)
	v.SetDefault("transfer.advertise_ip", d.Transfer.AdvertiseIP)
	v.SetDefault("transfer.save_dir", d.Transfer.SaveDir)
	v.SetDefault("heartbeat.interval", d.Heartbeat.Interval)
	v.SetDefault("heartbeat.initial_delay", d.Heartbeat.InitialDelay)
	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.requests_per_second", d.Server.RequestsPerSecond)
	v.SetDefault("server.burst", d.Server.Burst)
	v.SetDefault("debug", d.Debug)
}
