package sqlcommon

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/cenkalti/backoff/v4"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/zetsubou/tagstore/assets"
	"github.com/zetsubou/tagstore/pkg/logger"
	"github.com/zetsubou/tagstore/pkg/storage"
)

// Migrator implements [storage.MigrationProvider] with the goose migrations
// embedded for one engine.
type Migrator struct {
	// Engine is the datastore engine name, as used in configuration.
	Engine string

	// Driver is the database/sql driver name.
	Driver string

	Dialect goose.Dialect

	// Dir is the migration directory inside assets.EmbedMigrations.
	Dir string

	// PrepareURI applies engine specific rewrites, such as credential overrides.
	PrepareURI func(config storage.MigrationConfig) (string, error)
}

var _ storage.MigrationProvider = (*Migrator)(nil)

// GetSupportedEngine returns the database engine this provider supports.
func (m *Migrator) GetSupportedEngine() string {
	return m.Engine
}

func (m *Migrator) provider(ctx context.Context, config storage.MigrationConfig, ping bool) (*goose.Provider, func(), error) {
	uri := config.URI
	if m.PrepareURI != nil {
		var err error
		if uri, err = m.PrepareURI(config); err != nil {
			return nil, nil, err
		}
	}

	db, err := goose.OpenDBWithDriver(m.Driver, uri)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s connection: %w", m.Engine, err)
	}

	if ping {
		policy := backoff.NewExponentialBackOff()
		policy.MaxElapsedTime = config.Timeout
		err = backoff.Retry(func() error {
			return db.PingContext(ctx)
		}, backoff.WithContext(policy, ctx))
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to initialize %s connection: %w", m.Engine, err)
		}
	}

	migrationsFS, err := fs.Sub(assets.EmbedMigrations, m.Dir)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create %s migrations filesystem: %w", m.Engine, err)
	}

	provider, err := goose.NewProvider(m.Dialect, db, migrationsFS,
		goose.WithVerbose(config.Verbose),
	)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create goose provider: %w", err)
	}

	return provider, func() { db.Close() }, nil
}

// RunMigrations migrates the database named by config.
func (m *Migrator) RunMigrations(ctx context.Context, config storage.MigrationConfig) error {
	provider, closeDB, err := m.provider(ctx, config, true)
	if err != nil {
		return err
	}
	defer closeDB()

	log := config.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}
	log = log.With(zap.String("engine", m.Engine))

	currentVersion, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get %s db version: %w", m.Engine, err)
	}
	log.Info("current schema version", zap.Int64("version", currentVersion))

	if config.TargetVersion == 0 {
		results, err := provider.Up(ctx)
		if err != nil {
			return fmt.Errorf("failed to run %s migrations: %w", m.Engine, err)
		}
		log.Info("migration done", zap.Int("applied", len(results)))
		return nil
	}

	target := int64(config.TargetVersion)
	log.Info("migrating", zap.Int64("target", target))

	switch {
	case target < currentVersion:
		if _, err := provider.DownTo(ctx, target); err != nil {
			return fmt.Errorf("failed to run %s migrations down to %v: %w", m.Engine, target, err)
		}
	case target > currentVersion:
		if _, err := provider.UpTo(ctx, target); err != nil {
			return fmt.Errorf("failed to run %s migrations up to %v: %w", m.Engine, target, err)
		}
	default:
		log.Info("nothing to do")
		return nil
	}

	log.Info("migration done")
	return nil
}

// GetCurrentVersion returns the current migration version.
func (m *Migrator) GetCurrentVersion(ctx context.Context, config storage.MigrationConfig) (int64, error) {
	provider, closeDB, err := m.provider(ctx, config, false)
	if err != nil {
		return 0, err
	}
	defer closeDB()

	return provider.GetDBVersion(ctx)
}
