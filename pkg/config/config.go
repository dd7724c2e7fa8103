package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oarkflow/bcl"
	"github.com/oarkflow/json"
	"github.com/oarkflow/log"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/tinylang"
)

// Config is the top-level configuration shared by the CLI, the REPL and the
// playground server.
type Config struct {
	Log     LogConfig     `json:"log" yaml:"log"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
	REPL    REPLConfig    `json:"repl" yaml:"repl"`
	Server  ServerConfig  `json:"server" yaml:"server"`
}

// LogConfig selects the level and output format of the process logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// RuntimeConfig mirrors tinylang.RuntimeConfig with durations as strings so
// every format can express them.
type RuntimeConfig struct {
	MaxCallDepth       int    `json:"max_call_depth" yaml:"max_call_depth"`
	MaxExpressionDepth int    `json:"max_expression_depth" yaml:"max_expression_depth"`
	Timeout            string `json:"timeout" yaml:"timeout"`
	LogicalBooleans    bool   `json:"logical_booleans" yaml:"logical_booleans"`
}

type REPLConfig struct {
	Prompt       string `json:"prompt" yaml:"prompt"`
	Continuation string `json:"continuation" yaml:"continuation"`
	HistoryFile  string `json:"history_file" yaml:"history_file"`
}

type ServerConfig struct {
	Addr           string `json:"addr" yaml:"addr"`
	RequestTimeout string `json:"request_timeout" yaml:"request_timeout"`
	CacheSize      int64  `json:"cache_size" yaml:"cache_size"`
	MaxSourceBytes int    `json:"max_source_bytes" yaml:"max_source_bytes"`
	MaxOutputBytes int    `json:"max_output_bytes" yaml:"max_output_bytes"`
	RunLog         string `json:"run_log" yaml:"run_log"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Runtime: RuntimeConfig{
			MaxCallDepth:       tinylang.DefaultMaxCallDepth,
			MaxExpressionDepth: tinylang.DefaultMaxExpressionDepth,
		},
		REPL: REPLConfig{
			Prompt:       ">> ",
			Continuation: ".. ",
			HistoryFile:  defaultHistoryFile(),
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: "5s",
			CacheSize:      1024,
			MaxSourceBytes: 64 * 1024,
			MaxOutputBytes: 1024 * 1024,
		},
	}
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tinylang_history"
	}
	return filepath.Join(home, ".tinylang_history")
}

// Load reads a config file and picks the decoder from its extension. Values
// missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, err := decoderFor(strings.TrimPrefix(ext, "."))
	if err != nil {
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeConfig(raw, decode)
}

// LoadFromString loads the config from raw text, useful for tests.
func LoadFromString(content, format string) (*Config, error) {
	decode, err := decoderFor(strings.ToLower(format))
	if err != nil {
		return nil, err
	}
	return decodeConfig([]byte(content), decode)
}

func decoderFor(format string) (func([]byte, any) error, error) {
	switch format {
	case "yaml", "yml":
		return yaml.Unmarshal, nil
	case "json":
		return func(data []byte, v any) error {
			return json.Unmarshal(data, v)
		}, nil
	case "bcl":
		return func(data []byte, v any) error {
			_, err := bcl.Unmarshal(data, v)
			return err
		}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func decodeConfig(data []byte, fn func([]byte, any) error) (*Config, error) {
	cfg := Default()
	if err := fn(data, cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate checks durations, limits and the log level.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("unsupported log format %q", cfg.Log.Format)
	}
	if cfg.Runtime.MaxCallDepth < 0 {
		return fmt.Errorf("runtime.max_call_depth cannot be negative")
	}
	if cfg.Runtime.MaxExpressionDepth < 0 {
		return fmt.Errorf("runtime.max_expression_depth cannot be negative")
	}
	if _, err := parseDuration("runtime.timeout", cfg.Runtime.Timeout); err != nil {
		return err
	}
	if _, err := parseDuration("server.request_timeout", cfg.Server.RequestTimeout); err != nil {
		return err
	}
	if cfg.Server.CacheSize < 0 {
		return fmt.Errorf("server.cache_size cannot be negative")
	}
	if cfg.Server.MaxSourceBytes < 0 {
		return fmt.Errorf("server.max_source_bytes cannot be negative")
	}
	if cfg.Server.MaxOutputBytes < 0 {
		return fmt.Errorf("server.max_output_bytes cannot be negative")
	}
	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s cannot be negative", field)
	}
	return d, nil
}

// ToRuntime converts the section into the interpreter's runtime settings.
func (r RuntimeConfig) ToRuntime() (tinylang.RuntimeConfig, error) {
	timeout, err := parseDuration("runtime.timeout", r.Timeout)
	if err != nil {
		return tinylang.RuntimeConfig{}, err
	}
	return tinylang.RuntimeConfig{
		MaxCallDepth:       r.MaxCallDepth,
		MaxExpressionDepth: r.MaxExpressionDepth,
		Timeout:            timeout,
		LogicalBooleans:    r.LogicalBooleans,
	}, nil
}

// Apply installs the section as the process-wide interpreter defaults.
func (r RuntimeConfig) Apply() error {
	rc, err := r.ToRuntime()
	if err != nil {
		return err
	}
	tinylang.SetRuntimeConfig(rc)
	return nil
}

func (s ServerConfig) Timeout() time.Duration {
	d, _ := parseDuration("server.request_timeout", s.RequestTimeout)
	return d
}

// ParseLevel maps a level name to a log level. An empty name means info.
func ParseLevel(name string) (log.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// NewLogger builds a logger writing to w at the configured level.
func (l LogConfig) NewLogger(w io.Writer) *log.Logger {
	level, err := ParseLevel(l.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger := &log.Logger{Level: level}
	if strings.ToLower(l.Format) == "json" {
		logger.Writer = &log.IOWriter{Writer: w}
	} else {
		logger.Writer = &log.ConsoleWriter{Writer: w}
	}
	return logger
}
