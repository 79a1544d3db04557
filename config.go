package chancellor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/afo-kingdom/chancellor/internal/config"
	"github.com/afo-kingdom/chancellor/pkg/adapters/file"
	"github.com/afo-kingdom/chancellor/pkg/adapters/memory"
	"github.com/afo-kingdom/chancellor/pkg/adapters/process"
	"github.com/afo-kingdom/chancellor/pkg/adapters/redis"
	"github.com/afo-kingdom/chancellor/pkg/adapters/sqlite"
	"github.com/afo-kingdom/chancellor/pkg/guard"
	"github.com/afo-kingdom/chancellor/pkg/persistence/middleware"
	"github.com/afo-kingdom/chancellor/pkg/ports"
)

// FromConfig builds an Engine whose backend, policies and thresholds come from
// cfg. Options are applied after the configuration and win over it.
func FromConfig(cfg config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	weights, err := cfg.PillarWeights()
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithLogger(logger),
		WithGate(cfg.Gate),
		WithWeights(weights),
		WithGovernanceEnforcement(cfg.Governance.Enforce),
		WithGovernance(guard.NewPolicyEvaluator(
			guard.SecurityPolicy(),
			guard.DestructiveActionPolicy(),
			guard.ProtectedTargetPolicy(cfg.Governance.ProtectedTargets...),
			guard.DeniedTagPolicy(cfg.Governance.DeniedTags...),
		)),
		WithScanner(guard.NewScanner(guard.WithScannerLogger(logger))),
		WithStepTimeout(cfg.StepTimeout),
		WithMaxInputSize(cfg.MaxInputSize),
	}

	actions, err := cfg.ExecutorActions()
	if err != nil {
		return nil, err
	}
	if len(actions) > 0 {
		base = append(base, WithExecutor(process.NewExecutor(
			process.WithActions(actions),
			process.WithLogger(logger),
		)))
	}

	backend, err := openBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := wrapCheckpoints(cfg, backend.checkpoints)
	if err != nil {
		backend.close()
		return nil, err
	}
	base = append(base,
		WithCheckpointStore(store),
		WithEventLog(backend.events),
		WithVerdictLog(backend.verdicts),
	)
	if backend.subscriber != nil {
		base = append(base, WithVerdictSubscriber(backend.subscriber))
	}
	if backend.locker != nil {
		base = append(base, WithLocker(backend.locker))
	}
	if backend.closer != nil {
		base = append(base, withCloser(backend.closer))
	}

	eng, err := New(append(base, opts...)...)
	if err != nil {
		backend.close()
		return nil, err
	}
	return eng, nil
}

type backend struct {
	checkpoints ports.CheckpointStore
	events      ports.EventLog
	verdicts    ports.VerdictLog
	subscriber  VerdictSubscriber
	locker      ports.DistributedLocker
	closer      interface{ Close() error }
}

func (b backend) close() {
	if b.closer != nil {
		b.closer.Close()
	}
}

func openBackend(cfg config.Config, logger *slog.Logger) (backend, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return backend{
			checkpoints: memory.NewStore(),
			events:      memory.NewEventLog(),
			verdicts:    memory.NewVerdictLog(),
		}, nil

	case config.StoreFile:
		return backend{
			checkpoints: file.NewStore(filepath.Join(cfg.DataDir, "checkpoints")),
			events:      file.NewEventLog(filepath.Join(cfg.DataDir, "traces")),
			verdicts:    file.NewVerdictLog(filepath.Join(cfg.DataDir, "verdicts.jsonl")),
		}, nil

	case config.StoreRedis:
		client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		verdicts := redis.NewVerdictLog(client,
			redis.WithChannel(cfg.Redis.Channel),
			redis.WithLogger(logger),
		)
		return backend{
			checkpoints: redis.NewStore(client, redis.WithTTL(cfg.Redis.TTL)),
			events:      redis.NewEventLog(client, 0),
			verdicts:    verdicts,
			subscriber:  verdicts,
			locker:      redis.NewLocker(client, redis.DefaultCheckpointPrefix),
			closer:      client,
		}, nil

	case config.StoreSQLite:
		path := cfg.SQLitePath()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return backend{}, fmt.Errorf("failed to create data dir: %w", err)
		}
		db, err := sqlite.Open(path)
		if err != nil {
			return backend{}, err
		}
		return backend{
			checkpoints: db,
			events:      db,
			verdicts:    db,
			closer:      db,
		}, nil
	}
	return backend{}, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, cfg.Store)
}

// wrapCheckpoints applies PII masking before encryption so the ciphertext
// never holds the raw values.
func wrapCheckpoints(cfg config.Config, store ports.CheckpointStore) (ports.CheckpointStore, error) {
	var mws []middleware.Middleware
	if cfg.MaskPII {
		mws = append(mws, middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns))
	}
	if cfg.CheckpointKey != "" {
		key, err := middleware.ParseKey(cfg.CheckpointKey)
		if err != nil {
			return nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	return middleware.Chain(store, mws...), nil
}
