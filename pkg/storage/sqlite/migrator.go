package sqlite

import (
	"github.com/pressly/goose/v3"

	"github.com/zetsubou/tagstore/assets"
	"github.com/zetsubou/tagstore/pkg/storage"
	"github.com/zetsubou/tagstore/pkg/storage/sqlcommon"
)

// NewSQLiteMigrationProvider creates a new SQLite migration provider.
func NewSQLiteMigrationProvider() *sqlcommon.Migrator {
	return &sqlcommon.Migrator{
		Engine:     "sqlite",
		Driver:     "sqlite",
		Dialect:    goose.DialectSQLite3,
		Dir:        assets.SqliteMigrationDir,
		PrepareURI: prepareURI,
	}
}

func prepareURI(config storage.MigrationConfig) (string, error) {
	return PrepareDSN(config.URI)
}
