// Package config loads runtime configuration for the neuroadapt commands.
package config

import (
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
	"github.com/danielpatrickdp/neuroadapt/internal/features"
	"github.com/danielpatrickdp/neuroadapt/internal/logging"
	"github.com/danielpatrickdp/neuroadapt/internal/outcome"
	"github.com/danielpatrickdp/neuroadapt/internal/signal"
	"github.com/danielpatrickdp/neuroadapt/internal/update"
)

// Config is the full runtime configuration.
type Config struct {
	Session     SessionConfig     `koanf:"session"`
	Store       StoreConfig       `koanf:"store"`
	Acquisition AcquisitionConfig `koanf:"acquisition"`
	NATS        NATSConfig        `koanf:"nats"`
	Log         logging.Config    `koanf:"log"`
	Metrics     MetricsConfig     `koanf:"metrics"`
}

// SessionConfig holds the per-session pipeline scalars.
type SessionConfig struct {
	BufferLength    int      `koanf:"buffer_length"`
	Tick            Duration `koanf:"tick"`
	Jitter          float64  `koanf:"jitter"`
	Seed            uint64   `koanf:"seed"`
	ReviewBaseHours float64  `koanf:"review_base_hours"`
	MaxCycles       int      `koanf:"max_cycles"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// AcquisitionConfig points at the remote signal source. An empty Addr selects
// the local synthetic source.
type AcquisitionConfig struct {
	Addr    string   `koanf:"addr"`
	Listen  string   `koanf:"listen"`
	Timeout Duration `koanf:"timeout"`
}

// NATSConfig enables snapshot publishing when URL is set.
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Session: SessionConfig{
			BufferLength:    256,
			Tick:            Duration(time.Second),
			Jitter:          0.05,
			Seed:            1,
			ReviewBaseHours: 24,
		},
		Store:       StoreConfig{Path: "neuroadapt.db"},
		Acquisition: AcquisitionConfig{Listen: "127.0.0.1:7070", Timeout: Duration(5 * time.Second)},
		NATS:        NATSConfig{Subject: "neuroadapt.cycles"},
		Log:         logging.DefaultConfig(),
	}
}

// Validate reports ErrInvalidConfig for values no component accepts.
func (c Config) Validate() error {
	s := c.Session
	switch {
	case s.BufferLength <= 0:
		return fmt.Errorf("session.buffer_length must be positive, got %d: %w", s.BufferLength, cycleerr.ErrInvalidConfig)
	case !finiteNonNegative(s.Jitter):
		return fmt.Errorf("session.jitter must be a non-negative number: %w", cycleerr.ErrInvalidConfig)
	case !finiteNonNegative(s.ReviewBaseHours):
		return fmt.Errorf("session.review_base_hours must be a non-negative number: %w", cycleerr.ErrInvalidConfig)
	case s.MaxCycles < 0:
		return fmt.Errorf("session.max_cycles must not be negative: %w", cycleerr.ErrInvalidConfig)
	case c.Store.Path == "":
		return fmt.Errorf("store.path is required: %w", cycleerr.ErrInvalidConfig)
	case c.Log.Level == "" || (c.Log.Format != "json" && c.Log.Format != "console"):
		return fmt.Errorf("log level %q format %q: %w", c.Log.Level, c.Log.Format, cycleerr.ErrInvalidConfig)
	}
	return nil
}

// FeaturesConfig applies the session scalars to the default feature table.
func (c Config) FeaturesConfig() features.Config {
	fc := features.DefaultConfig()
	fc.BufferLength = c.Session.BufferLength
	fc.JitterAmplitude = c.Session.Jitter
	return fc
}

// UpdateConfig returns the trait adaptation table.
func (c Config) UpdateConfig() update.Config {
	return update.DefaultConfig()
}

// OutcomeConfig applies the review base to the default outcome table.
func (c Config) OutcomeConfig() outcome.Config {
	oc := outcome.DefaultConfig()
	oc.BaseReviewHours = c.Session.ReviewBaseHours
	return oc
}

// SyntheticConfig returns the local signal generator settings.
func (c Config) SyntheticConfig() signal.SyntheticConfig {
	sc := signal.DefaultSyntheticConfig()
	sc.Length = c.Session.BufferLength
	sc.Seed = c.Session.Seed
	return sc
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
