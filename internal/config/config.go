package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPath names the environment variable that overrides the config path.
const EnvPath = "FRAMECORE_CONFIG"

const DefaultPath = "config/framecore.toml"

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Clock     ClockConfig     `toml:"clock"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Database  DatabaseConfig  `toml:"database"`
	Scripting ScriptingConfig `toml:"scripting"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	StartTime int64  // set at load, not from config
}

type ClockConfig struct {
	FrameRate     int           `toml:"frame_rate"`      // frames per second
	FixedStep     time.Duration `toml:"fixed_step"`      // FixedUpdate interval
	MaxFixedSteps int           `toml:"max_fixed_steps"` // per frame; excess time is dropped
	TimeScale     float64       `toml:"time_scale"`
	ScratchBytes  int           `toml:"scratch_bytes"` // frame arena size
}

// FrameInterval is the wall-clock time between frames.
func (c ClockConfig) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}

type SchedulerConfig struct {
	Mode           string        `toml:"mode"`             // "development" or "production"
	FaultLogBurst  int           `toml:"fault_log_burst"`  // fault logs per system per window
	FaultLogWindow time.Duration `toml:"fault_log_window"` // 0 disables throttling
}

// Isolate reports whether system faults are recovered instead of propagated.
func (c SchedulerConfig) Isolate() bool { return c.Mode == ModeDevelopment }

// FaultLogRates is the rate table for the fault log limiter, nil when
// throttling is off.
func (c SchedulerConfig) FaultLogRates() map[time.Duration]int {
	if c.FaultLogWindow <= 0 || c.FaultLogBurst <= 0 {
		return nil
	}
	return map[time.Duration]int{c.FaultLogWindow: c.FaultLogBurst}
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables the frame journal
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	JournalBatch    int           `toml:"journal_batch"`
}

func (c DatabaseConfig) Enabled() bool { return c.DSN != "" }

type ScriptingConfig struct {
	Dir      string `toml:"dir"`
	Manifest string `toml:"manifest"` // empty disables scripted systems
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Path returns the config path to use: flag wins, then the environment,
// then DefaultPath.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	cfg := defaults()
	cfg.Server.StartTime = time.Now().Unix()
	return cfg
}

func (c *Config) Validate() error {
	var errs []error
	if c.Clock.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("clock.frame_rate must be positive, got %d", c.Clock.FrameRate))
	}
	if c.Clock.FixedStep <= 0 {
		errs = append(errs, fmt.Errorf("clock.fixed_step must be positive, got %s", c.Clock.FixedStep))
	}
	if c.Clock.MaxFixedSteps < 0 {
		errs = append(errs, fmt.Errorf("clock.max_fixed_steps must not be negative, got %d", c.Clock.MaxFixedSteps))
	}
	if c.Clock.TimeScale < 0 {
		errs = append(errs, fmt.Errorf("clock.time_scale must not be negative, got %g", c.Clock.TimeScale))
	}
	if c.Clock.ScratchBytes < 0 {
		errs = append(errs, fmt.Errorf("clock.scratch_bytes must not be negative, got %d", c.Clock.ScratchBytes))
	}
	switch c.Scheduler.Mode {
	case ModeDevelopment, ModeProduction:
	default:
		errs = append(errs, fmt.Errorf("scheduler.mode must be %q or %q, got %q",
			ModeDevelopment, ModeProduction, c.Scheduler.Mode))
	}
	if c.Scheduler.FaultLogBurst < 0 {
		errs = append(errs, fmt.Errorf("scheduler.fault_log_burst must not be negative, got %d", c.Scheduler.FaultLogBurst))
	}
	if c.Database.JournalBatch <= 0 {
		errs = append(errs, fmt.Errorf("database.journal_batch must be positive, got %d", c.Database.JournalBatch))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "framecore",
		},
		Clock: ClockConfig{
			FrameRate:     60,
			FixedStep:     20 * time.Millisecond,
			MaxFixedSteps: 5,
			TimeScale:     1.0,
			ScratchBytes:  64 << 10,
		},
		Scheduler: SchedulerConfig{
			Mode:           ModeDevelopment,
			FaultLogBurst:  5,
			FaultLogWindow: time.Minute,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
			JournalBatch:    120,
		},
		Scripting: ScriptingConfig{
			Dir:      "scripts",
			Manifest: "data/yaml/systems.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
