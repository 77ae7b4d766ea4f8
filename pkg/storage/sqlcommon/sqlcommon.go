// Package sqlcommon holds the [storage.TagDatastore] implementation shared by the
// SQL backends. Each backend opens its own connection, describes its dialect with a
// [DBInfo] and wraps the resulting [Datastore].
package sqlcommon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"

	"github.com/zetsubou/tagstore/internal/build"
	"github.com/zetsubou/tagstore/pkg/logger"
	"github.com/zetsubou/tagstore/pkg/storage"
)

// Config defines the configuration parameters
// for setting up and managing a sql connection.
type Config struct {
	Username string
	Password string
	Logger   logger.Logger

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	ExportMetrics bool
}

// DatastoreOption defines a function type
// used for configuring a Config object.
type DatastoreOption func(*Config)

// WithUsername returns a DatastoreOption that sets the username in the Config.
func WithUsername(username string) DatastoreOption {
	return func(config *Config) {
		config.Username = username
	}
}

// WithPassword returns a DatastoreOption that sets the password in the Config.
func WithPassword(password string) DatastoreOption {
	return func(config *Config) {
		config.Password = password
	}
}

// WithLogger returns a DatastoreOption that sets the Logger in the Config.
func WithLogger(l logger.Logger) DatastoreOption {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithMaxOpenConns returns a DatastoreOption that sets the
// maximum number of open connections in the Config.
func WithMaxOpenConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxOpenConns = c
	}
}

// WithMaxIdleConns returns a DatastoreOption that sets the
// maximum number of idle connections in the Config.
func WithMaxIdleConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxIdleConns = c
	}
}

// WithConnMaxIdleTime returns a DatastoreOption that sets
// the maximum idle time for a connection in the Config.
func WithConnMaxIdleTime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxIdleTime = d
	}
}

// WithConnMaxLifetime returns a DatastoreOption that sets
// the maximum lifetime for a connection in the Config.
func WithConnMaxLifetime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxLifetime = d
	}
}

// WithMetrics returns a DatastoreOption that
// enables the export of metrics in the Config.
func WithMetrics() DatastoreOption {
	return func(cfg *Config) {
		cfg.ExportMetrics = true
	}
}

// NewConfig creates a new Config instance with default values
// and applies any provided DatastoreOption modifications.
func NewConfig(opts ...DatastoreOption) *Config {
	cfg := &Config{}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}

	return cfg
}

// ApplyPoolSettings copies the connection pool limits of cfg onto db. Zero values
// keep the driver defaults.
func ApplyPoolSettings(db *sql.DB, cfg *Config) {
	if cfg.MaxOpenConns != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime != 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime != 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

// ErrorHandlerFn converts a driver error into a storage error.
type ErrorHandlerFn func(error, ...interface{}) error

// ForeignKeyRef names a token id a statement references through column. Statements
// that can violate a foreign key pass their refs to the error handler.
type ForeignKeyRef struct {
	Column string
	ID     int64
}

// ForeignKeyError maps a foreign key violation to a not found error on the missing
// token. A positive id parsed from the driver message is used as is. Otherwise the
// id is taken from the ref of column, or from the only ref when column is unknown.
// message describes the violation when the token cannot be determined.
func ForeignKeyError(column string, id int64, message string, args ...interface{}) error {
	if id > 0 {
		return storage.TokenNotFoundError(id)
	}
	var refs []ForeignKeyRef
	for _, arg := range args {
		if ref, ok := arg.(ForeignKeyRef); ok {
			refs = append(refs, ref)
		}
	}
	for _, ref := range refs {
		if column != "" && ref.Column == column {
			return storage.TokenNotFoundError(ref.ID)
		}
	}
	if column == "" && len(refs) == 1 {
		return storage.TokenNotFoundError(refs[0].ID)
	}
	if len(refs) > 0 {
		ids := make([]string, 0, len(refs))
		for _, ref := range refs {
			ids = append(ids, strconv.FormatInt(ref.ID, 10))
		}
		return fmt.Errorf("%w: one of tokens %s: %s", storage.ErrNotFound, strings.Join(ids, ", "), message)
	}
	return fmt.Errorf("%w: %s", storage.ErrNotFound, message)
}

// DBInfo describes one SQL connection and the dialect specific behaviour of it.
type DBInfo struct {
	db             *sql.DB
	stbl           sq.StatementBuilderType
	HandleSQLError ErrorHandlerFn

	dialect     string
	returningID bool
	retry       func(fn func() error) error
}

// DBInfoOption configures optional dialect behaviour of a DBInfo.
type DBInfoOption func(*DBInfo)

// WithReturningID makes inserts read the generated id with a RETURNING clause
// instead of LastInsertId.
func WithReturningID() DBInfoOption {
	return func(d *DBInfo) {
		d.returningID = true
	}
}

// WithRetry wraps every statement that takes a write lock in retry.
func WithRetry(retry func(fn func() error) error) DBInfoOption {
	return func(d *DBInfo) {
		d.retry = retry
	}
}

// NewDBInfo constructs a [DBInfo] object.
func NewDBInfo(db *sql.DB, stbl sq.StatementBuilderType, errorHandler ErrorHandlerFn, dialect string, opts ...DBInfoOption) *DBInfo {
	if err := goose.SetDialect(dialect); err != nil {
		panic("failed to set database dialect: " + err.Error())
	}

	info := &DBInfo{
		db:             db,
		stbl:           stbl,
		HandleSQLError: errorHandler,
		dialect:        dialect,
		retry:          func(fn func() error) error { return fn() },
	}
	for _, opt := range opts {
		opt(info)
	}
	return info
}

// handleSQLError maps a closed transaction before delegating to the dialect.
func (d *DBInfo) handleSQLError(err error, args ...interface{}) error {
	if errors.Is(err, sql.ErrTxDone) {
		return storage.ErrTransactionClosed
	}
	return d.HandleSQLError(err, args...)
}

// insertID runs ib and returns the id of the inserted row.
func (d *DBInfo) insertID(ctx context.Context, ib sq.InsertBuilder) (int64, error) {
	var id int64
	err := d.retry(func() error {
		if d.returningID {
			return ib.Suffix("RETURNING id").QueryRowContext(ctx).Scan(&id)
		}
		res, err := ib.ExecContext(ctx)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// execBuilder is satisfied by the squirrel update and delete builders.
type execBuilder interface {
	ExecContext(ctx context.Context) (sql.Result, error)
}

// exec runs b and returns how many rows it touched.
func (d *DBInfo) exec(ctx context.Context, b execBuilder) (int64, error) {
	var affected int64
	err := d.retry(func() error {
		res, err := b.ExecContext(ctx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// IsReady returns true if the connection to the datastore is successful
// and the datastore has the latest migration applied.
func IsReady(ctx context.Context, skipVersionCheck bool, db *sql.DB) (storage.ReadinessStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// do ping first to ensure we have better error message
	// if error is due to connection issue.
	if pingErr := db.PingContext(ctx); pingErr != nil {
		return storage.ReadinessStatus{}, pingErr
	}

	if skipVersionCheck {
		return storage.ReadinessStatus{
			IsReady: true,
		}, nil
	}

	revision, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return storage.ReadinessStatus{}, err
	}

	if revision < build.MinimumSupportedDatastoreSchemaRevision {
		return storage.ReadinessStatus{
			Message: "datastore requires migrations: at revision '" +
				strconv.FormatInt(revision, 10) +
				"', but requires '" +
				strconv.FormatInt(build.MinimumSupportedDatastoreSchemaRevision, 10) +
				"'. Run 'tagstore migrate'.",
			IsReady: false,
		}, nil
	}
	return storage.ReadinessStatus{
		IsReady: true,
	}, nil
}

// likeEscaper escapes the LIKE wildcards with '!', the escape character every
// supported dialect accepts in an ESCAPE clause.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// prefixPattern returns a case folded LIKE pattern matching names starting with prefix.
func prefixPattern(prefix string) string {
	return likeEscaper.Replace(strings.ToLower(prefix)) + "%"
}
