package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/zsiec/telx/internal/config"
	"github.com/zsiec/telx/internal/demux"
	"github.com/zsiec/telx/internal/logging"
)

// decodeFlags are shared by every command that runs the demuxer. Flags
// given on the command line override the configuration file.
type decodeFlags struct {
	fs *pflag.FlagSet

	configPath string
	pages      []int
	pid        uint16
	offset     time.Duration
	noColors   bool
	m2ts       bool
	output     string
	logLevel   string
	logFormat  string
	logFile    string
}

func newDecodeFlags(name string, stderr io.Writer) *decodeFlags {
	f := &decodeFlags{fs: pflag.NewFlagSet(name, pflag.ContinueOnError)}
	f.fs.SetOutput(stderr)

	f.fs.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	f.fs.IntSliceVarP(&f.pages, "page", "p", nil, "teletext page to decode, e.g. 888 (repeatable; default: discover)")
	f.fs.Uint16Var(&f.pid, "pid", 0, "teletext PID (default: discover from the PMT)")
	f.fs.DurationVar(&f.offset, "offset", 0, "time offset added to every timestamp")
	f.fs.BoolVar(&f.noColors, "no-colors", false, "render colour codes as spaces instead of <font> tags")
	f.fs.BoolVar(&f.m2ts, "m2ts", false, "input uses 192-byte M2TS packets")
	f.fs.StringVarP(&f.output, "output", "o", "", `output file, "-" for stdout`)
	f.fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.fs.StringVar(&f.logFormat, "log-format", "", "log format: text, json or pretty")
	f.fs.StringVar(&f.logFile, "log-file", "", "also write logs to this rotating file")
	return f
}

// config loads the configuration file, if any, and applies the flags the
// user set explicitly.
func (f *decodeFlags) config() (config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return config.Config{}, err
		}
	}

	if f.fs.Changed("page") {
		cfg.Pages = f.pages
	}
	if f.fs.Changed("pid") {
		cfg.PID = f.pid
	}
	if f.fs.Changed("offset") {
		cfg.Offset = f.offset
	}
	if f.fs.Changed("no-colors") {
		cfg.Colors = !f.noColors
	}
	if f.fs.Changed("m2ts") {
		cfg.PacketSize = 188
		if f.m2ts {
			cfg.PacketSize = 192
		}
	}
	if f.fs.Changed("output") {
		cfg.Output = f.output
	}
	if f.fs.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if f.fs.Changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
	if f.fs.Changed("log-file") {
		cfg.Logging.File = f.logFile
	}
	if os.Getenv("DEBUG") != "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func demuxOptions(cfg config.Config) demux.Options {
	return demux.Options{
		PID:        cfg.PID,
		Pages:      cfg.Pages,
		Offset:     cfg.Offset,
		Colors:     cfg.Colors,
		PacketSize: cfg.PacketSize,
	}
}

// setupLogging builds the logger cfg describes and installs it as the
// process default, which the signal handler in main logs through.
func setupLogging(cfg config.Config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	log, closer, err := logging.New(cfg.Logging, stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(log)
	return log, closer, nil
}
