package configuration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"cinetaste/internal/analysis/llm"
	"cinetaste/internal/feedback"
	"cinetaste/internal/group"
	"cinetaste/internal/match"
)

// AppConfig represents the complete application configuration.
type AppConfig struct {
	// Logger — logger component configuration
	Logger LoggerConfig `mapstructure:"logger"`
	// Server — HTTP server configuration
	Server ServerConfig `mapstructure:"server"`
	// Engine — matching and learning-rule configuration
	Engine EngineConfig `mapstructure:"engine"`
	// Analyzer — semantic analyzer boundary configuration
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	// Taxonomy — tag schema source
	Taxonomy TaxonomyConfig `mapstructure:"taxonomy"`
	// Store — vector persistence
	Store StoreConfig `mapstructure:"store"`
	// Journal — feedback event capture
	Journal JournalConfig `mapstructure:"journal"`
}

// LoggerConfig defines logging settings.
type LoggerConfig struct {
	// Level — log level: debug, info, warn, warning, error.
	// Value is case-insensitive but checked in lowercase.
	Level string `mapstructure:"level"`
}

// ServerConfig contains HTTP server parameters.
type ServerConfig struct {
	// Address — address and port where the server will listen (e.g., ":8080").
	Address string `mapstructure:"address"`
}

// EngineConfig defines the tunable constants of the matching engine. The
// default values match the documented examples; all of them are expected to
// be tuned against real feedback rather than treated as law.
type EngineConfig struct {
	// Weights — blend of the dimension similarities and tag adjustments.
	// Nil means the section is absent and the defaults apply; an explicit
	// section is validated as written.
	Weights *match.Weights `mapstructure:"weights"`
	// Learning — preference-updater learning rates and rating bands.
	// Nil means absent, same as Weights.
	Learning *feedback.Config `mapstructure:"learning"`
	// HintMinFraction — fraction of referenced items a hinted tag must
	// appear in to be retained.
	HintMinFraction float64 `mapstructure:"hint_min_fraction"`
	// HintScoreThreshold — per-item score a tag needs to count as present.
	HintScoreThreshold float64 `mapstructure:"hint_score_threshold"`
	// Levels — satisfaction level labeling.
	Levels LevelsConfig `mapstructure:"levels"`
}

// LevelsConfig selects how member satisfaction labels are derived.
type LevelsConfig struct {
	// Rules — optional path to a YAML file of CEL level rules. When set it
	// replaces the threshold table.
	Rules string `mapstructure:"rules"`
	// Thresholds — fixed probability boundaries used without a rules file.
	Thresholds group.ThresholdLeveler `mapstructure:"thresholds"`
}

// AnalyzerConfig defines the semantic analyzer boundary.
type AnalyzerConfig struct {
	// Enabled — when false the engine runs purely on the deterministic
	// fallback and never calls out.
	Enabled bool `mapstructure:"enabled"`
	// APIKey — Anthropic API key; empty lets the SDK read the environment.
	APIKey string `mapstructure:"api_key"`
	// Client — model selection and timeout/retry/breaker policy.
	Client llm.Config `mapstructure:",squash"`
}

// TaxonomyConfig points at the tag schema file.
type TaxonomyConfig struct {
	// Path — JSON taxonomy file; empty or unreadable falls back to the
	// built-in default schema.
	Path string `mapstructure:"path"`
}

// StoreConfig defines vector persistence parameters.
type StoreConfig struct {
	// Path — SQLite database file.
	Path string `mapstructure:"path"`
}

// JournalConfig defines feedback event capture parameters.
type JournalConfig struct {
	// File — journal file path (optional; empty disables capture)
	File string `mapstructure:"file"`
	// Size — maximal journal file size in MB (default 100)
	Size int `mapstructure:"size"`
	// Amount — number of rotated files to keep (default 20)
	Amount int `mapstructure:"amount"`
}

// Validate checks the correctness of the entire application configuration.
// Calls validation for each nested structure and returns the first detected
// error. Returns nil if the configuration is valid.
func (c *AppConfig) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return err
	}

	if err := c.Server.Validate(); err != nil {
		return err
	}

	if err := c.Engine.Validate(); err != nil {
		return err
	}

	if err := c.Store.Validate(); err != nil {
		return err
	}

	if err := c.Journal.Validate(); err != nil {
		return err
	}

	return nil
}

// Validate checks the correctness of the logger configuration.
// Verifies that the log level is set and is one of the supported values.
// Supported values: debug, info, warn, warning, error (case-insensitive).
func (l *LoggerConfig) Validate() error {
	if l.Level == "" {
		return errors.New("logger.level: must be specified")
	}

	valid := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !valid[strings.ToLower(l.Level)] {
		return fmt.Errorf("logger.level: unsupported level '%s'", l.Level)
	}

	return nil
}

// Validate checks the correctness of the server configuration.
// Verifies that the server address is set.
func (s *ServerConfig) Validate() error {
	if s.Address == "" {
		return errors.New("server.address: must be specified")
	}

	return nil
}

// Validate checks the engine constants, filling defaults for unset sections.
func (e *EngineConfig) Validate() error {
	if e.Weights == nil {
		w := match.DefaultWeights()
		e.Weights = &w
	}
	for name, w := range map[string]float64{
		"emotion":   e.Weights.Emotion,
		"narrative": e.Weights.Narrative,
		"ending":    e.Weights.Ending,
		"boost":     e.Weights.Boost,
		"penalty":   e.Weights.Penalty,
	} {
		if w < 0 {
			return fmt.Errorf("engine.weights.%s: must not be negative", name)
		}
	}

	if e.Learning == nil {
		l := feedback.DefaultConfig()
		e.Learning = &l
	}
	if e.Learning.LearningRateUser <= 0 || e.Learning.LearningRateUser >= 1 {
		return errors.New("engine.learning.learning_rate_user: must be in (0, 1)")
	}
	if e.Learning.LearningRateMovie <= 0 || e.Learning.LearningRateMovie >= 1 {
		return errors.New("engine.learning.learning_rate_movie: must be in (0, 1)")
	}
	if e.Learning.LowRating >= e.Learning.HighRating {
		return errors.New("engine.learning: low_rating must be below high_rating")
	}

	if e.HintMinFraction == 0 {
		e.HintMinFraction = 0.5
	}
	if e.HintScoreThreshold == 0 {
		e.HintScoreThreshold = 0.5
	}

	if e.Levels.Thresholds == (group.ThresholdLeveler{}) {
		e.Levels.Thresholds = group.DefaultThresholds()
	}
	t := e.Levels.Thresholds
	if t.VerySatisfied <= t.Satisfied || t.Satisfied <= t.Neutral || t.Neutral <= t.Dissatisfied {
		return errors.New("engine.levels.thresholds: boundaries must be strictly decreasing")
	}

	return nil
}

// Validate checks the persistence configuration.
func (s *StoreConfig) Validate() error {
	if s.Path == "" {
		return errors.New("store.path: must be specified")
	}

	return nil
}

// Validate journal parameters.
func (j *JournalConfig) Validate() error {
	if j.Size == 0 {
		j.Size = 100
	}

	if j.Amount == 0 {
		j.Amount = 20
	}

	return nil
}

// LoadConfig loads configuration from the specified file using Viper.
// Supports YAML format. Also includes environment variable loading
// (AutomaticEnv), which can override values from the file.
//
// Parameter configPath — path to the configuration file.
//
// Returns a pointer to AppConfig or an error if:
// - the file is not found or inaccessible
// - the configuration has invalid format
// - one of the sections fails validation
func LoadConfig(configPath string) (*AppConfig, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config AppConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
