package postgres

import (
	"fmt"
	"net/url"

	"github.com/pressly/goose/v3"

	"github.com/zetsubou/tagstore/assets"
	"github.com/zetsubou/tagstore/pkg/storage"
	"github.com/zetsubou/tagstore/pkg/storage/sqlcommon"
)

// NewPostgresMigrationProvider creates a new PostgreSQL migration provider.
func NewPostgresMigrationProvider() *sqlcommon.Migrator {
	return &sqlcommon.Migrator{
		Engine:     "postgres",
		Driver:     "pgx",
		Dialect:    goose.DialectPostgres,
		Dir:        assets.PostgresMigrationDir,
		PrepareURI: prepareURI,
	}
}

// prepareURI processes the database URI with username/password overrides.
func prepareURI(config storage.MigrationConfig) (string, error) {
	if _, err := url.Parse(config.URI); err != nil {
		return "", fmt.Errorf("invalid postgres database uri: %v", err)
	}
	return overrideCredentials(config.URI, config.Username, config.Password)
}
