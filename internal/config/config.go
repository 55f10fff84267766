// Package config loads the telx YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zsiec/telx/internal/ingest/srt"
)

// Config is the decoded configuration. Command-line flags override it.
type Config struct {
	Pages      []int         `yaml:"pages"`
	PID        uint16        `yaml:"pid"`
	Offset     time.Duration `yaml:"offset"`
	Colors     bool          `yaml:"colors"`
	PacketSize int           `yaml:"packet_size"`
	Output     string        `yaml:"output"`
	Logging    Logging       `yaml:"logging"`
	SRT        SRT           `yaml:"srt"`
	Metrics    Metrics       `yaml:"metrics"`
}

// Logging selects the log handler and optional rotating file.
type Logging struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text, json or pretty
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// SRT configures live ingest for serve mode.
type SRT struct {
	Listen  string            `yaml:"listen"`
	Latency time.Duration     `yaml:"latency"`
	Pull    []srt.PullRequest `yaml:"pull"`
}

// Metrics configures the Prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := Config{Colors: true}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.PacketSize == 0 {
		c.PacketSize = 188
	}
	if c.Output == "" {
		c.Output = "-"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 25
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = 7
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 5
	}
	if c.SRT.Latency == 0 {
		c.SRT.Latency = srt.DefaultLatency
	}
}

// Load reads and validates the configuration file at path. Relative log
// and output paths are resolved against the file's directory.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	base := filepath.Dir(path)
	cfg.Logging.File = resolvePath(base, cfg.Logging.File)
	if cfg.Output != "-" {
		cfg.Output = resolvePath(base, cfg.Output)
	}
	return cfg, nil
}

// Decode parses a YAML document, fills defaults and validates the result.
// An empty document yields Default().
func Decode(r io.Reader) (Config, error) {
	cfg := Config{Colors: true}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolvePath(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	for _, p := range c.Pages {
		if p < 100 || p > 899 {
			return fmt.Errorf("page %d out of range 100-899", p)
		}
	}
	if c.PID > 0x1FFF {
		return fmt.Errorf("pid %d out of range", c.PID)
	}
	if c.PacketSize != 188 && c.PacketSize != 192 {
		return fmt.Errorf("packet_size %d: want 188 or 192", c.PacketSize)
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("logging.format %q: want text, json or pretty", c.Logging.Format)
	}
	for i, p := range c.SRT.Pull {
		if p.Address == "" || p.StreamKey == "" {
			return fmt.Errorf("srt.pull[%d]: address and stream_key are required", i)
		}
	}
	return nil
}
