package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeMigrationProvider struct {
	engine  string
	version int64
	err     error
	runs    []MigrationConfig
}

func (f *fakeMigrationProvider) GetSupportedEngine() string {
	return f.engine
}

func (f *fakeMigrationProvider) RunMigrations(_ context.Context, cfg MigrationConfig) error {
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, cfg)
	if cfg.TargetVersion > 0 {
		f.version = int64(cfg.TargetVersion)
	}
	return nil
}

func (f *fakeMigrationProvider) GetCurrentVersion(context.Context, MigrationConfig) (int64, error) {
	return f.version, f.err
}

func TestMigratorRegistry(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		registry := NewMigratorRegistry()
		require.Empty(t, registry.GetSupportedEngines())

		provider, ok := registry.GetProvider("sqlite")
		require.False(t, ok)
		require.Nil(t, provider)
	})

	t.Run("engines_are_sorted", func(t *testing.T) {
		registry := NewMigratorRegistry()
		registry.RegisterProvider(&fakeMigrationProvider{engine: "sqlite"})
		registry.RegisterProvider(&fakeMigrationProvider{engine: "mysql"})
		registry.RegisterProvider(&fakeMigrationProvider{engine: "postgres"})

		require.Equal(t, []string{"mysql", "postgres", "sqlite"}, registry.GetSupportedEngines())
	})

	t.Run("later_registration_wins", func(t *testing.T) {
		registry := NewMigratorRegistry()
		first := &fakeMigrationProvider{engine: "postgres"}
		second := &fakeMigrationProvider{engine: "postgres", version: 1}
		registry.RegisterProvider(first)
		registry.RegisterProvider(second)

		provider, ok := registry.GetProvider("postgres")
		require.True(t, ok)
		require.Same(t, second, provider)
		require.Len(t, registry.GetSupportedEngines(), 1)
	})

	t.Run("provider_receives_config", func(t *testing.T) {
		registry := NewMigratorRegistry()
		fake := &fakeMigrationProvider{engine: "sqlite"}
		registry.RegisterProvider(fake)

		provider, _ := registry.GetProvider("sqlite")
		cfg := MigrationConfig{Engine: "sqlite", URI: "tags.db", TargetVersion: 1}
		require.NoError(t, provider.RunMigrations(context.Background(), cfg))

		version, err := provider.GetCurrentVersion(context.Background(), cfg)
		require.NoError(t, err)
		require.Equal(t, int64(1), version)
		require.Equal(t, []MigrationConfig{cfg}, fake.runs)
	})
}
