package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mini-web-server/internal/logger"

	"gopkg.in/yaml.v3"
)

// Defaults used when neither a file nor the command line set a value.
const (
	DefaultThreads     = 4
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 7878
	DefaultSleepDelay  = 5 * time.Second
	DefaultReadTimeout = 30 * time.Second
	DefaultLogLevel    = "info"
	DefaultAdminAddr   = "127.0.0.1:9090"
)

// Config holds every operational parameter of the server. It is built once
// at startup and passed down by value.
type Config struct {
	Threads       int
	Host          string
	Port          int
	DocRoot       string        // empty serves the embedded pages
	SleepDelay    time.Duration // how long GET /sleep blocks its worker
	ReadTimeout   time.Duration // 0 disables the request read deadline
	LogLevel      string
	RecoverPanics bool
	ReusePort     bool
	Admin         AdminConfig
}

// AdminConfig controls the status/metrics HTTP listener.
type AdminConfig struct {
	Enabled bool
	Addr    string
}

// Default returns the configuration used when nothing is supplied.
func Default() Config {
	return Config{
		Threads:       DefaultThreads,
		Host:          DefaultHost,
		Port:          DefaultPort,
		SleepDelay:    DefaultSleepDelay,
		ReadTimeout:   DefaultReadTimeout,
		LogLevel:      DefaultLogLevel,
		RecoverPanics: true,
		Admin: AdminConfig{
			Addr: DefaultAdminAddr,
		},
	}
}

// ListenAddr returns host:port for the connection listener.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the values the server cannot run without.
func (c Config) Validate() error {
	if c.Threads <= 0 {
		return fmt.Errorf("threads must be positive, got %d", c.Threads)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.SleepDelay < 0 {
		return fmt.Errorf("sleep delay must not be negative, got %v", c.SleepDelay)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("read timeout must not be negative, got %v", c.ReadTimeout)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Admin.Enabled && c.Admin.Addr == "" {
		return errors.New("admin address must be set when admin is enabled")
	}
	return nil
}

// FromArgs reads the optional positional arguments "[threads] [port]" on top
// of base. A missing argument keeps the base value; a non-numeric one is an
// error.
func FromArgs(args []string, base Config) (Config, error) {
	cfg := base

	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return cfg, fmt.Errorf("worker thread count must be a number, got %q", args[0])
		}
		cfg.Threads = n
	} else {
		logger.Info("", "no thread pool size given, using %d worker threads", cfg.Threads)
	}

	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return cfg, fmt.Errorf("listening port must be a number, got %q (default %d)", args[1], DefaultPort)
		}
		cfg.Port = n
	} else {
		logger.Info("", "no port given, using port %d", cfg.Port)
	}

	if len(args) > 2 {
		return cfg, fmt.Errorf("unexpected arguments: %s", strings.Join(args[2:], " "))
	}

	return cfg, nil
}

// FileConfig is the on-disk layout of a YAML or JSON configuration file.
type FileConfig struct {
	Server ServerSection `yaml:"server" json:"server"`
	Admin  AdminSection  `yaml:"admin" json:"admin"`
	Log    LogSection    `yaml:"log" json:"log"`
}

// ServerSection configures the connection listener and the pool.
type ServerSection struct {
	Threads       int    `yaml:"threads" json:"threads"`
	Host          string `yaml:"host" json:"host"`
	Port          int    `yaml:"port" json:"port"`
	DocRoot       string `yaml:"doc_root" json:"doc_root"`
	SleepDelay    string `yaml:"sleep_delay" json:"sleep_delay"`
	ReadTimeout   string `yaml:"read_timeout" json:"read_timeout"`
	RecoverPanics *bool  `yaml:"recover_panics" json:"recover_panics"`
	ReusePort     *bool  `yaml:"reuse_port" json:"reuse_port"`
}

// AdminSection configures the admin listener.
type AdminSection struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level string `yaml:"level" json:"level"`
}

// LoadFile reads a configuration file; the format follows the extension.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &fc, nil
}

// Validate rejects values that are wrong regardless of the defaults.
func (f *FileConfig) Validate() error {
	s := f.Server

	if s.Threads < 0 {
		return errors.New("server.threads must be non-negative")
	}
	if s.Port < 0 || s.Port > 65535 {
		return errors.New("server.port must be between 0 and 65535")
	}
	if s.SleepDelay != "" {
		if _, err := time.ParseDuration(s.SleepDelay); err != nil {
			return fmt.Errorf("invalid server.sleep_delay: %w", err)
		}
	}
	if s.ReadTimeout != "" {
		if _, err := time.ParseDuration(s.ReadTimeout); err != nil {
			return fmt.Errorf("invalid server.read_timeout: %w", err)
		}
	}
	if _, err := logger.ParseLevel(f.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	return nil
}

// Apply overlays the values set in the file onto base. Zero values keep the
// base setting.
func (f *FileConfig) Apply(base Config) (Config, error) {
	cfg := base
	s := f.Server

	if s.Threads > 0 {
		cfg.Threads = s.Threads
	}
	if s.Host != "" {
		cfg.Host = s.Host
	}
	if s.Port > 0 {
		cfg.Port = s.Port
	}
	if s.DocRoot != "" {
		cfg.DocRoot = s.DocRoot
	}
	if s.SleepDelay != "" {
		d, err := time.ParseDuration(s.SleepDelay)
		if err != nil {
			return cfg, fmt.Errorf("invalid sleep delay: %w", err)
		}
		cfg.SleepDelay = d
	}
	if s.ReadTimeout != "" {
		d, err := time.ParseDuration(s.ReadTimeout)
		if err != nil {
			return cfg, fmt.Errorf("invalid read timeout: %w", err)
		}
		cfg.ReadTimeout = d
	}
	if s.RecoverPanics != nil {
		cfg.RecoverPanics = *s.RecoverPanics
	}
	if s.ReusePort != nil {
		cfg.ReusePort = *s.ReusePort
	}

	if f.Admin.Enabled {
		cfg.Admin.Enabled = true
	}
	if f.Admin.Addr != "" {
		cfg.Admin.Addr = f.Admin.Addr
	}

	if f.Log.Level != "" {
		cfg.LogLevel = f.Log.Level
	}

	return cfg, nil
}
