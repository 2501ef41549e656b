package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/loykin/drivr/internal/errs"
	"github.com/loykin/drivr/internal/logger"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when reading the environment, so "path" is read
// from CHROMEDRIVER_PATH and "retry.attempts" from CHROMEDRIVER_RETRY_ATTEMPTS.
const EnvPrefix = "CHROMEDRIVER"

const (
	DefaultPort         = 9515
	DefaultLogLevel     = "WARNING"
	DefaultLogFile      = "service.log"
	DefaultLockTimeout  = 15 * time.Second
	DefaultReadyTimeout = 10 * time.Second
	DefaultAttempts     = 5
	DefaultDelay        = 2 * time.Second
	DefaultPageSettle   = time.Second
	DefaultWriteSettle  = 400 * time.Millisecond
	DefaultListen       = "127.0.0.1:9516"
	DefaultBasePath     = "/api"
)

// LogLevels are the values the driver accepts for --log-level.
var LogLevels = []string{"ALL", "DEBUG", "INFO", "WARNING", "SEVERE", "OFF"}

// FileConfig represents the TOML structure. Every key can be overridden from the
// environment.
type FileConfig struct {
	Path         string        `toml:"path" mapstructure:"path"`
	Port         int           `toml:"port" mapstructure:"port"`
	LogLevel     string        `toml:"log_level" mapstructure:"log_level"`
	LogPath      string        `toml:"log_path" mapstructure:"log_path"`
	StateDir     string        `toml:"state_dir" mapstructure:"state_dir"`
	LockTimeout  time.Duration `toml:"lock_timeout" mapstructure:"lock_timeout"`
	ReadyTimeout time.Duration `toml:"ready_timeout" mapstructure:"ready_timeout"`
	PageSettle   time.Duration `toml:"page_settle" mapstructure:"page_settle"`
	WriteSettle  time.Duration `toml:"write_settle" mapstructure:"write_settle"`
	Env          []string      `toml:"env" mapstructure:"env"`
	EnvFiles     []string      `toml:"env_files" mapstructure:"env_files"`
	Retry        RetryConfig   `toml:"retry" mapstructure:"retry"`
	History      HistoryConfig `toml:"history" mapstructure:"history"`
	Server       ServerConfig  `toml:"server" mapstructure:"server"`
	Browser      BrowserConfig `toml:"browser" mapstructure:"browser"`
	Logging      logger.Config `toml:"logging" mapstructure:"logging"`
}

type RetryConfig struct {
	Attempts int           `toml:"attempts" mapstructure:"attempts"`
	Delay    time.Duration `toml:"delay" mapstructure:"delay"`
}

type HistoryConfig struct {
	// DSN selects the audit sink, e.g. sqlite:///var/lib/drivr/history.db. Empty disables it.
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// BrowserConfig shapes the browser of a new session.
type BrowserConfig struct {
	Headless bool     `toml:"headless" mapstructure:"headless"`
	Binary   string   `toml:"binary" mapstructure:"binary"` // empty lets the driver find it
	Args     []string `toml:"args" mapstructure:"args"`     // empty means the default switches
}

// Config is the resolved configuration.
type Config struct {
	ExecutablePath string
	Port           int
	LogLevel       string
	LogPath        string
	StateDir       string
	LockTimeout    time.Duration
	ReadyTimeout   time.Duration
	PageSettle     time.Duration
	WriteSettle    time.Duration
	Env            []string
	Retry          RetryConfig
	History        HistoryConfig
	Server         ServerConfig
	Browser        BrowserConfig
	Logging        logger.Config
}

// RequireExecutable reports a configuration failure when no driver executable is set.
// It is checked when a driver has to be launched, not when the configuration is loaded.
func (c Config) RequireExecutable() error { return RequireExecutable(c.ExecutablePath) }

// RequireExecutable is the check behind Config.RequireExecutable, for callers holding only
// the path.
func RequireExecutable(path string) error {
	if strings.TrimSpace(path) == "" {
		return errs.Config("config", "driver executable is not set (%s_PATH)", EnvPrefix)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("path", "")
	v.SetDefault("port", DefaultPort)
	v.SetDefault("log_level", "")
	v.SetDefault("log_path", "")
	v.SetDefault("state_dir", "")
	v.SetDefault("lock_timeout", DefaultLockTimeout)
	v.SetDefault("ready_timeout", DefaultReadyTimeout)
	v.SetDefault("page_settle", DefaultPageSettle)
	v.SetDefault("write_settle", DefaultWriteSettle)
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})
	v.SetDefault("retry.attempts", DefaultAttempts)
	v.SetDefault("retry.delay", DefaultDelay)
	v.SetDefault("history.dsn", "")
	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.base_path", DefaultBasePath)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.binary", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.color", false)
	v.SetDefault("logging.file", "")
	return v
}

// Load resolves the configuration from defaults, the optional TOML file at path and the
// environment, in increasing precedence. log receives notices about degraded values; nil
// means slog.Default().
func Load(path string, log *slog.Logger) (Config, error) {
	if log == nil {
		log = slog.Default()
	}
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errs.E(errs.KindConfiguration, "config", fmt.Errorf("read %s: %w", path, err))
		}
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return Config{}, errs.E(errs.KindConfiguration, "config", fmt.Errorf("decode: %w", err))
	}
	return resolve(fc, log)
}

func resolve(fc FileConfig, log *slog.Logger) (Config, error) {
	c := Config{
		ExecutablePath: strings.TrimSpace(fc.Path),
		Port:           fc.Port,
		LogLevel:       resolveLogLevel(fc.LogLevel, log),
		LogPath:        fc.LogPath,
		StateDir:       fc.StateDir,
		LockTimeout:    fc.LockTimeout,
		ReadyTimeout:   fc.ReadyTimeout,
		PageSettle:     fc.PageSettle,
		WriteSettle:    fc.WriteSettle,
		Retry:          fc.Retry,
		History:        fc.History,
		Server:         fc.Server,
		Browser:        fc.Browser,
		Logging:        fc.Logging,
	}
	if c.Port <= 0 || c.Port > 65535 {
		return Config{}, errs.Config("config", "port %d out of range", c.Port)
	}
	if c.Retry.Attempts < 1 {
		return Config{}, errs.Config("config", "retry attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	for name, d := range map[string]time.Duration{
		"lock_timeout": c.LockTimeout, "ready_timeout": c.ReadyTimeout,
		"retry.delay": c.Retry.Delay, "page_settle": c.PageSettle, "write_settle": c.WriteSettle,
	} {
		if d < 0 {
			return Config{}, errs.Config("config", "%s must not be negative, got %s", name, d)
		}
	}
	if c.LogPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, errs.E(errs.KindConfiguration, "config", fmt.Errorf("working directory: %w", err))
		}
		c.LogPath = filepath.Join(wd, DefaultLogFile)
	}
	log.Info("driver log file", "path", c.LogPath)
	if c.StateDir == "" {
		dir, err := DefaultStateDir()
		if err != nil {
			return Config{}, errs.E(errs.KindConfiguration, "config", err)
		}
		c.StateDir = dir
	}

	var env []string
	for _, p := range fc.EnvFiles {
		pairs, err := LoadEnvFile(p)
		if err != nil {
			return Config{}, errs.E(errs.KindConfiguration, "config", fmt.Errorf("env file %s: %w", p, err))
		}
		env = append(env, pairs...)
	}
	c.Env = append(env, fc.Env...)
	return c, nil
}

// resolveLogLevel never fails: a missing or unknown level falls back to the default.
func resolveLogLevel(s string, log *slog.Logger) string {
	s = strings.TrimSpace(s)
	if s == "" {
		log.Info("using default driver log level", "level", DefaultLogLevel)
		return DefaultLogLevel
	}
	if slices.Contains(LogLevels, s) {
		return s
	}
	log.Error("unknown driver log level, using default", "level", s, "default", DefaultLogLevel)
	return DefaultLogLevel
}

// DefaultStateDir is the per-user directory holding the shared pid and session records.
func DefaultStateDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("state dir: %w", err)
	}
	return filepath.Join(base, "drivr"), nil
}

// LoadEnvFile parses a simple .env file and returns its "KEY=VALUE" entries in file order.
// Lines starting with # are ignored; there is no export keyword or quoting.
func LoadEnvFile(path string) ([]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			out = append(out, strings.TrimSpace(line[:i])+"="+strings.TrimSpace(line[i+1:]))
		}
	}
	return out, nil
}
