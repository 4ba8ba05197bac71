package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/blockberries/abci/server"
)

// Config holds the counter program settings.
type Config struct {
	// Addr is the ABCI socket listen address.
	Addr string
	// GRPCAddr enables the gRPC transport when non-empty.
	GRPCAddr string
	// MetricsAddr enables the prometheus endpoint when non-empty.
	MetricsAddr string
	// Serial starts the counter in serial mode.
	Serial bool
	// DBPath selects a bbolt store; empty keeps state in memory.
	DBPath   string
	LogLevel zerolog.Level
	Server   server.Config
}

// DefaultConfig returns the settings used without a config file.
func DefaultConfig() Config {
	return Config{
		Addr:     "tcp://127.0.0.1:26658",
		Serial:   true,
		LogLevel: zerolog.InfoLevel,
		Server:   server.DefaultConfig(),
	}
}

// counter config.toml key mapping to runtime settings.
type fileConfig struct {
	Addr            string  `toml:"addr"`
	GRPCAddr        string  `toml:"grpc_addr"`
	MetricsAddr     string  `toml:"metrics_addr"`
	Serial          bool    `toml:"serial"`
	DBPath          string  `toml:"db_path"`
	LogLevel        string  `toml:"log_level"`
	MaxFrameSize    uint64  `toml:"max_frame_size"`
	ReadBufferSize  int     `toml:"read_buffer_size"`
	WriteBufferSize int     `toml:"write_buffer_size"`
	MaxConnections  int64   `toml:"max_connections"`
	AcceptRate      float64 `toml:"accept_rate"`
	AcceptBurst     int     `toml:"accept_burst"`
	CheckBlockCycle bool    `toml:"check_block_cycle"`
	ShutdownTimeout string  `toml:"shutdown_timeout"`
}

// loadConfig overlays the keys set in the TOML file at path onto
// DefaultConfig.
func loadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load counter config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load counter config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("grpc_addr") {
		cfg.GRPCAddr = strings.TrimSpace(raw.GRPCAddr)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("serial") {
		cfg.Serial = raw.Serial
	}
	if meta.IsDefined("db_path") {
		cfg.DBPath = strings.TrimSpace(raw.DBPath)
	}
	if meta.IsDefined("log_level") {
		lvl, err := zerolog.ParseLevel(strings.TrimSpace(raw.LogLevel))
		if err != nil {
			return Config{}, fmt.Errorf("load counter config: log_level: %w", err)
		}
		cfg.LogLevel = lvl
	}
	if meta.IsDefined("max_frame_size") {
		cfg.Server.MaxFrameSize = raw.MaxFrameSize
	}
	if meta.IsDefined("read_buffer_size") {
		cfg.Server.ReadBufferSize = raw.ReadBufferSize
	}
	if meta.IsDefined("write_buffer_size") {
		cfg.Server.WriteBufferSize = raw.WriteBufferSize
	}
	if meta.IsDefined("max_connections") {
		cfg.Server.MaxConnections = raw.MaxConnections
	}
	if meta.IsDefined("accept_rate") {
		cfg.Server.AcceptRate = raw.AcceptRate
	}
	if meta.IsDefined("accept_burst") {
		cfg.Server.AcceptBurst = raw.AcceptBurst
	}
	if meta.IsDefined("check_block_cycle") {
		cfg.Server.CheckBlockCycle = raw.CheckBlockCycle
	}
	if meta.IsDefined("shutdown_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ShutdownTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("load counter config: shutdown_timeout: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if cfg.Addr == "" {
		return Config{}, fmt.Errorf("load counter config: addr is required")
	}
	if cfg.Server.MaxConnections < 0 {
		return Config{}, fmt.Errorf("load counter config: max_connections must not be negative")
	}
	return cfg, nil
}
