package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. REPLAY_MAX_SIZE.
const EnvPrefix = "REPLAY"

// Config holds all replay service configuration
type Config struct {
	// Listeners
	Port      int `mapstructure:"port"`
	AdminPort int `mapstructure:"admin-port"`

	// Buffer settings
	Mode        string `mapstructure:"mode"`
	MaxSize     int    `mapstructure:"max-size"`
	InitialSize int    `mapstructure:"initial-size"`

	// Prioritized replay
	Alpha     float64 `mapstructure:"alpha"`
	BetaStart float64 `mapstructure:"beta-start"`
	BetaEnd   float64 `mapstructure:"beta-end"`
	BetaSteps uint64  `mapstructure:"beta-steps"`
	Epsilon   float64 `mapstructure:"epsilon"`

	// Seed for sampling; 0 seeds from the clock.
	Seed int64 `mapstructure:"seed"`

	// Events
	NATSURL     string `mapstructure:"nats-url"`
	NATSSubject string `mapstructure:"nats-subject"`

	LogLevel        string        `mapstructure:"log-level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		Port:            8080,
		AdminPort:       9090,
		Mode:            "prioritized",
		MaxSize:         100000,
		InitialSize:     1000,
		Alpha:           0.6,
		BetaStart:       0.4,
		BetaEnd:         1.0,
		BetaSteps:       100000,
		Epsilon:         0.01,
		NATSSubject:     "replay.events",
		LogLevel:        "info",
		ShutdownTimeout: 30 * time.Second,
	}
}

// RegisterFlags defines a flag for every setting, defaulting to cfg.
func RegisterFlags(flags *pflag.FlagSet, cfg *Config) {
	flags.Int("port", cfg.Port, "gRPC server port")
	flags.Int("admin-port", cfg.AdminPort, "Admin HTTP port (health, stats, metrics)")

	flags.String("mode", cfg.Mode, "Sampling mode (uniform, prioritized)")
	flags.Int("max-size", cfg.MaxSize, "Maximum number of transitions to store")
	flags.Int("initial-size", cfg.InitialSize, "Transitions required before sampling is allowed")

	flags.Float64("alpha", cfg.Alpha, "Priority exponent")
	flags.Float64("beta-start", cfg.BetaStart, "Initial importance-sampling exponent")
	flags.Float64("beta-end", cfg.BetaEnd, "Final importance-sampling exponent")
	flags.Uint64("beta-steps", cfg.BetaSteps, "Sample calls over which beta is annealed (0 uses beta-end)")
	flags.Float64("epsilon", cfg.Epsilon, "Offset added to absolute errors before exponentiation")
	flags.Int64("seed", cfg.Seed, "Sampling seed (0 seeds from the clock)")

	flags.String("nats-url", cfg.NATSURL, "NATS server URL for buffer events (empty disables)")
	flags.String("nats-subject", cfg.NATSSubject, "NATS subject for buffer events")

	flags.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.Duration("shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown deadline")
}

// Load resolves configuration from flags, REPLAY_* environment variables and
// defaults, in that order, and validates the result.
func Load(v *viper.Viper, flags *pflag.FlagSet) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.AdminPort < 0 || c.AdminPort > 65535 {
		return fmt.Errorf("admin-port %d out of range", c.AdminPort)
	}
	if c.AdminPort != 0 && c.AdminPort == c.Port {
		return fmt.Errorf("admin-port must differ from port")
	}
	if c.Mode != "uniform" && c.Mode != "prioritized" {
		return fmt.Errorf("mode must be uniform or prioritized, got %q", c.Mode)
	}
	if c.MaxSize <= 0 {
		return fmt.Errorf("max-size must be positive")
	}
	if c.InitialSize < 0 {
		return fmt.Errorf("initial-size must not be negative")
	}
	if c.InitialSize >= c.MaxSize {
		return fmt.Errorf("initial-size %d must be less than max-size %d", c.InitialSize, c.MaxSize)
	}
	if !nonNegative(c.Alpha) {
		return fmt.Errorf("alpha must be a non-negative number")
	}
	if !nonNegative(c.Epsilon) {
		return fmt.Errorf("epsilon must be a non-negative number")
	}
	if math.IsNaN(c.BetaStart) || math.IsInf(c.BetaStart, 0) || math.IsNaN(c.BetaEnd) || math.IsInf(c.BetaEnd, 0) {
		return fmt.Errorf("beta-start and beta-end must be finite")
	}
	if c.NATSURL != "" && c.NATSSubject == "" {
		return fmt.Errorf("nats-subject is required when nats-url is set")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown-timeout must be positive")
	}
	return nil
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
