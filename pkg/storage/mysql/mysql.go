package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/zetsubou/tagstore/pkg/storage"
	"github.com/zetsubou/tagstore/pkg/storage/sqlcommon"
)

// MySQL server error numbers mapped to storage errors.
const (
	errDupEntry            = 1062
	errNoReferencedRow     = 1216
	errNoReferencedRow2    = 1452
	errCheckConstraintFail = 3819
)

// Datastore provides a MySQL based implementation of [storage.TagDatastore].
type Datastore struct {
	*sqlcommon.Datastore
}

// Ensures that Datastore implements the TagDatastore interface.
var _ storage.TagDatastore = (*Datastore)(nil)

// PrepareDSN applies the configured credentials to uri and enables the driver
// options the datastore relies on.
func PrepareDSN(uri, username, password string) (string, error) {
	dsnCfg, err := mysql.ParseDSN(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse mysql connection dsn: %w", err)
	}

	if username != "" {
		dsnCfg.User = username
	}
	if password != "" {
		dsnCfg.Passwd = password
	}
	dsnCfg.ParseTime = true

	return dsnCfg.FormatDSN(), nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	uri, err := PrepareDSN(uri, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mysql connection: %w", err)
	}
	sqlcommon.ApplyPoolSettings(db, cfg)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 1 * time.Minute
	attempt := 1
	err = backoff.Retry(func() error {
		err := db.PingContext(context.Background())
		if err != nil {
			cfg.Logger.Info("waiting for mysql", zap.Int("attempt", attempt))
			attempt++
			return err
		}
		return nil
	}, policy)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize mysql connection: %w", err)
	}

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, "tagstore")
		if err := prometheus.Register(collector); err != nil {
			db.Close()
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	stbl := sq.StatementBuilder.RunWith(db)
	dbInfo := sqlcommon.NewDBInfo(db, stbl, HandleSQLError, "mysql")

	return &Datastore{Datastore: sqlcommon.NewDatastore(dbInfo, cfg, collector)}, nil
}

// foreignKeyColumn matches the referencing column in the message of a failed
// foreign key constraint.
var foreignKeyColumn = regexp.MustCompile("FOREIGN KEY \\(`(\\w+)`\\)")

// HandleSQLError processes an SQL error and converts it into a more
// specific error type based on the nature of the SQL error.
func HandleSQLError(err error, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDupEntry:
			return storage.ErrCollision
		case errNoReferencedRow, errNoReferencedRow2:
			var column string
			if m := foreignKeyColumn.FindStringSubmatch(me.Message); m != nil {
				column = m[1]
			}
			return sqlcommon.ForeignKeyError(column, 0, me.Message, args...)
		case errCheckConstraintFail:
			return fmt.Errorf("%w: %s", storage.ErrInvalidEdge, me.Message)
		}
	}

	return fmt.Errorf("sql error: %w", err)
}
