// Package config loads the chancellor configuration from a YAML (or JSON) file
// and AFO_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/afo-kingdom/chancellor/pkg/adapters/process"
	"github.com/afo-kingdom/chancellor/pkg/guard"
	"github.com/afo-kingdom/chancellor/pkg/sovereignty"
	"github.com/afo-kingdom/chancellor/pkg/trinity"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "chancellor.yaml"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
	Channel  string        `yaml:"channel" json:"channel"`
}

// GovernanceConfig configures the built-in policies.
type GovernanceConfig struct {
	// Enforce halts the run before EXECUTE when governance escalates or denies.
	Enforce          bool     `yaml:"enforce" json:"enforce"`
	ProtectedTargets []string `yaml:"protected_targets" json:"protected_targets"`
	DeniedTags       []string `yaml:"denied_tags" json:"denied_tags"`
}

// Config is the full chancellor configuration.
type Config struct {
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	Store   string       `yaml:"store" json:"store"`
	DataDir string       `yaml:"data_dir" json:"data_dir"`
	Redis   RedisConfig  `yaml:"redis" json:"redis"`
	SQLite  SQLiteConfig `yaml:"sqlite" json:"sqlite"`

	HTTPAddr string `yaml:"http_addr" json:"http_addr"`

	Gate       sovereignty.Config `yaml:"gate" json:"gate"`
	Weights    map[string]float64 `yaml:"weights" json:"weights"`
	Governance GovernanceConfig   `yaml:"governance" json:"governance"`

	MaxInputSize int           `yaml:"max_input_size" json:"max_input_size"`
	StepTimeout  time.Duration `yaml:"step_timeout" json:"step_timeout"`

	// CheckpointKey enables checkpoint encryption (hex or base64, 32 bytes).
	CheckpointKey string `yaml:"checkpoint_key" json:"checkpoint_key"`
	MaskPII       bool   `yaml:"mask_pii" json:"mask_pii"`

	// Actions is the allow-list of commands EXECUTE may run. When empty the
	// plan is only simulated.
	Actions     map[string]process.Action `yaml:"actions" json:"actions"`
	ActionsFile string                    `yaml:"actions_file" json:"actions_file"`
}

// ExecutorActions merges the inline actions with those of ActionsFile.
// Inline entries win.
func (c Config) ExecutorActions() (map[string]process.Action, error) {
	actions := map[string]process.Action{}
	if c.ActionsFile != "" {
		loaded, err := process.LoadActions(c.ActionsFile)
		if err != nil {
			return nil, err
		}
		actions = loaded
	}
	for name, a := range c.Actions {
		actions[strings.ToLower(name)] = a
	}
	return actions, nil
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	Path string `yaml:"path" json:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Store:     StoreFile,
		DataDir:   ".chancellor",
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "afo:verdicts",
		},
		HTTPAddr: ":8080",
		Gate:     sovereignty.DefaultConfig(),
		Governance: GovernanceConfig{
			Enforce:          true,
			ProtectedTargets: []string{"production", "prod", "main", "master"},
			DeniedTags:       []string{"forbidden"},
		},
		MaxInputSize: guard.DefaultMaxInputSize,
	}
}

// Load reads path on top of the defaults and applies the environment.
// An empty path tries DefaultPath and silently skips it when absent.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, err
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from AFO_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("AFO_LOG_LEVEL", &c.LogLevel)
	str("AFO_LOG_FORMAT", &c.LogFormat)
	str("AFO_STORE", &c.Store)
	str("AFO_DATA_DIR", &c.DataDir)
	str("AFO_REDIS_ADDR", &c.Redis.Addr)
	str("AFO_REDIS_PASSWORD", &c.Redis.Password)
	str("AFO_SQLITE_PATH", &c.SQLite.Path)
	str("AFO_CHECKPOINT_KEY", &c.CheckpointKey)
	str("AFO_HTTP_ADDR", &c.HTTPAddr)
	str("AFO_ACTIONS_FILE", &c.ActionsFile)

	if v, ok := lookup("AFO_REDIS_DB"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AFO_REDIS_DB: %w", err)
		}
		c.Redis.DB = n
	}
	if v, ok := lookup("AFO_MAX_INPUT_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AFO_MAX_INPUT_SIZE: %w", err)
		}
		c.MaxInputSize = n
	}
	if v, ok := lookup("AFO_GOVERNANCE_ENFORCE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AFO_GOVERNANCE_ENFORCE: %w", err)
		}
		c.Governance.Enforce = b
	}
	return nil
}

// Validate checks enumerations and numeric ranges.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.MaxInputSize < 0 {
		return fmt.Errorf("%w: max_input_size must not be negative", ErrInvalidConfig)
	}
	if c.Gate.MaxGap < 0 || c.Gate.MaxGap > 1 {
		return fmt.Errorf("%w: gate.max_gap must be within [0,1]", ErrInvalidConfig)
	}
	for name, v := range map[string]float64{
		"gate.min_trinity": c.Gate.MinTrinity,
		"gate.max_risk":    c.Gate.MaxRisk,
		"gate.block_risk":  c.Gate.BlockRisk,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: %s must be within [0,100]", ErrInvalidConfig, name)
		}
	}
	if _, err := c.PillarWeights(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// PillarWeights returns the configured weights, or the defaults when none are set.
func (c Config) PillarWeights() (map[trinity.Pillar]float64, error) {
	if len(c.Weights) == 0 {
		return trinity.DefaultWeights(), nil
	}
	w := make(map[trinity.Pillar]float64, len(c.Weights))
	for k, v := range c.Weights {
		w[trinity.Pillar(strings.ToLower(k))] = v
	}
	if err := trinity.ValidateWeights(w); err != nil {
		return nil, err
	}
	return w, nil
}

// SQLitePath returns the sqlite file, defaulting inside DataDir.
func (c Config) SQLitePath() string {
	if c.SQLite.Path != "" {
		return c.SQLite.Path
	}
	return filepath.Join(c.DataDir, "chancellor.db")
}
