// Package config loads the ftpd startup binary's TOML configuration
// file: listen address, worker count, log path, credentials DB path,
// and passive-mode port range. Package server never reads this
// package; it exists purely for cmd/ftpd's startup wiring.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the on-disk shape of ftpd.toml.
type Config struct {
	ListenAddr     string `toml:"listen_addr"`
	Workers        int    `toml:"workers"`
	LogPath        string `toml:"log_path"`
	LogLevel       string `toml:"log_level"`
	CredentialsDB  string `toml:"credentials_db"`
	RootDir        string `toml:"root_dir"`
	PasvPortMin    int    `toml:"pasv_port_min"`
	PasvPortMax    int    `toml:"pasv_port_max"`
	BandwidthLimit int64  `toml:"bandwidth_limit_bytes_per_sec"`
	MetricsAddr    string `toml:"metrics_addr"`
}

// defaults fills in the listen address and worker count ftpd starts
// with when ftpd.toml leaves them unset.
func defaults() Config {
	return Config{
		ListenAddr: ":2121",
		Workers:    8,
		LogPath:    "",
		LogLevel:   "info",
	}
}

// Load reads and validates the TOML config file at path, filling in
// defaults for anything left unset.
func Load(path string) (Config, error) {
	cfg := defaults()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.ListenAddr == "" {
		return Config{}, fmt.Errorf("config: listen_addr must not be empty")
	}
	if cfg.Workers < 1 {
		return Config{}, fmt.Errorf("config: workers must be >= 1")
	}
	if cfg.RootDir == "" {
		return Config{}, fmt.Errorf("config: root_dir must not be empty")
	}
	if cfg.PasvPortMin > 0 && cfg.PasvPortMax > 0 && cfg.PasvPortMin > cfg.PasvPortMax {
		return Config{}, fmt.Errorf("config: pasv_port_min must be <= pasv_port_max")
	}
	return cfg, nil
}
