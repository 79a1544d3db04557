package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/afo-kingdom/chancellor"
	"github.com/afo-kingdom/chancellor/internal/config"
	"github.com/afo-kingdom/chancellor/internal/logging"
)

// Options are the global flags shared by every command.
type Options struct {
	ConfigPath string
	Store      string
	DataDir    string
	LogLevel   string
	Debug      bool
}

// Env bundles what a command needs: the engine, its configuration and logger.
type Env struct {
	Engine *chancellor.Engine
	Config config.Config
	Logger *slog.Logger
	Level  *slog.LevelVar
}

// Close releases the engine backend.
func (e *Env) Close() error {
	return e.Engine.Close()
}

// LoadConfig resolves the configuration file, environment and flag overrides.
func LoadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Store != "" {
		cfg.Store = opts.Store
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

// createLogger configures the application logger on stderr, so stdout stays
// clean for reports and MCP JSON-RPC.
func createLogger(cfg config.Config) (*slog.Logger, *slog.LevelVar, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	lv := new(slog.LevelVar)
	lv.Set(level)
	return logging.NewWithOptions(os.Stderr, lv, logging.Format(cfg.LogFormat)), lv, nil
}

// NewEnv builds the engine described by opts.
func NewEnv(opts Options, extra ...chancellor.Option) (*Env, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, level, err := createLogger(cfg)
	if err != nil {
		return nil, err
	}
	eng, err := chancellor.FromConfig(cfg, logger, extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	logger.Debug("engine ready", "store", cfg.Store, "enforce_governance", cfg.Governance.Enforce)
	return &Env{Engine: eng, Config: cfg, Logger: logger, Level: level}, nil
}
