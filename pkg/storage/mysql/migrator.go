package mysql

import (
	"github.com/pressly/goose/v3"

	"github.com/zetsubou/tagstore/assets"
	"github.com/zetsubou/tagstore/pkg/storage"
	"github.com/zetsubou/tagstore/pkg/storage/sqlcommon"
)

// NewMySQLMigrationProvider creates a new MySQL migration provider.
func NewMySQLMigrationProvider() *sqlcommon.Migrator {
	return &sqlcommon.Migrator{
		Engine:     "mysql",
		Driver:     "mysql",
		Dialect:    goose.DialectMySQL,
		Dir:        assets.MySQLMigrationDir,
		PrepareURI: prepareURI,
	}
}

func prepareURI(config storage.MigrationConfig) (string, error) {
	return PrepareDSN(config.URI, config.Username, config.Password)
}
