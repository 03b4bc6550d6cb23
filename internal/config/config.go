// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"github.com/feisworks/feispoints/internal/domain/advance"
	"github.com/feisworks/feispoints/internal/domain/model"
)

// RuleConfig is the on-disk shape of one advancement rule.
type RuleConfig struct {
	// WinsRequired is the number of first places needed to trigger
	// an advancement notice.
	WinsRequired int `koanf:"wins_required"`

	// NextLevel is the level the dancer moves to on acknowledgment.
	NextLevel string `koanf:"next_level"`

	// PerDance scopes the win threshold to each dance type
	// independently.
	PerDance bool `koanf:"per_dance"`
}

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory recalculation queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of recalculation workers.
	WorkerCount int `koanf:"worker_count"`

	// GuardSize bounds the advancement duplicate-suppression set.
	GuardSize int `koanf:"guard_size"`

	// RecallFraction is the portion of the field recalled; the cutoff
	// index is ceil(N * fraction).
	RecallFraction float64 `koanf:"recall_fraction"`

	// Tolerance is the epsilon for treating two point totals as tied.
	Tolerance float64 `koanf:"tolerance"`

	// DropPanelSize is the per-competitor score count that triggers
	// drop-high/drop-low aggregation. Zero disables dropping.
	DropPanelSize int `koanf:"drop_panel_size"`

	// MaxResultsLimit caps GET results page sizes.
	MaxResultsLimit int `koanf:"max_results_limit"`

	// SQLitePath is the store DSN. Empty selects the in-memory store;
	// ":memory:" selects an ephemeral SQLite database.
	SQLitePath string `koanf:"sqlite_path"`

	// AdvancementRules maps a level name to its rule. Levels absent
	// from the map never advance automatically.
	AdvancementRules map[string]RuleConfig `koanf:"advancement_rules"`
}

// New creates a Config carrying the defaults: standard CLRG-style
// grades with first-place-per-dance progression through the grades and
// win thresholds into and out of preliminary championship.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		QueueSize:       10_000,
		WorkerCount:     0, // 0 lets the pool size itself from NumCPU
		GuardSize:       100_000,
		RecallFraction:  0.5,
		Tolerance:       1e-6,
		DropPanelSize:   5,
		MaxResultsLimit: 200,
		SQLitePath:      "",
		AdvancementRules: map[string]RuleConfig{
			"beginner":          {WinsRequired: 1, NextLevel: "advanced_beginner", PerDance: true},
			"advanced_beginner": {WinsRequired: 1, NextLevel: "novice", PerDance: true},
			"novice":            {WinsRequired: 1, NextLevel: "prizewinner", PerDance: true},
			"prizewinner":       {WinsRequired: 1, NextLevel: "preliminary_championship", PerDance: false},
			"preliminary_championship": {
				WinsRequired: 2, NextLevel: "open_championship", PerDance: false,
			},
			// open_championship has no entry: the top tier never
			// advances automatically.
		},
	}
}

// Rules converts the configured rule table into the evaluator's
// immutable form.
func (c *Config) Rules() advance.Rules {
	rules := make(advance.Rules, len(c.AdvancementRules))
	for level, rc := range c.AdvancementRules {
		rules[model.Level(level)] = advance.Rule{
			WinsRequired: rc.WinsRequired,
			NextLevel:    model.Level(rc.NextLevel),
			PerDance:     rc.PerDance,
		}
	}
	return rules
}
