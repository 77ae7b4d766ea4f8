// Package exec_common bootstraps the datastore, index and tag service of the commands
// that act on the tag graph.
package exec_common

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/zetsubou/tagstore/internal/build"
	"github.com/zetsubou/tagstore/internal/query"
	"github.com/zetsubou/tagstore/internal/tag"
	"github.com/zetsubou/tagstore/pkg/config"
	"github.com/zetsubou/tagstore/pkg/logger"
	"github.com/zetsubou/tagstore/pkg/search"
	"github.com/zetsubou/tagstore/pkg/search/elastic"
	searchmemory "github.com/zetsubou/tagstore/pkg/search/memory"
	"github.com/zetsubou/tagstore/pkg/storage"
	"github.com/zetsubou/tagstore/pkg/storage/memory"
	"github.com/zetsubou/tagstore/pkg/storage/mysql"
	"github.com/zetsubou/tagstore/pkg/storage/postgres"
	"github.com/zetsubou/tagstore/pkg/storage/sqlcommon"
	"github.com/zetsubou/tagstore/pkg/storage/sqlite"
	"github.com/zetsubou/tagstore/pkg/telemetry"
)

// DatastoreEngine type to define different engine types
type DatastoreEngine string

// Types of Datastore Engines
const (
	Memory   DatastoreEngine = "memory"
	Postgres DatastoreEngine = "postgres"
	MySQL    DatastoreEngine = "mysql"
	SQLite   DatastoreEngine = "sqlite"
)

var datastoreEngines = []DatastoreEngine{Memory, Postgres, MySQL, SQLite}

func (e DatastoreEngine) String() string {
	return string(e)
}

func NewDatastoreEngine(engine string) (*DatastoreEngine, error) {
	validEngine := DatastoreEngine(engine)
	if !slices.Contains(datastoreEngines, validEngine) {
		return nil, fmt.Errorf("invalid datastore engine '(%s)'", engine)
	}
	return &validEngine, nil
}

// VerifyDatastoreEngine rejects a postgres uri handed to another engine.
func VerifyDatastoreEngine(uri string, engine DatastoreEngine) error {
	scheme, _, found := strings.Cut(uri, ":")
	if found && (scheme == "postgresql" || scheme == "postgres") && engine != Postgres {
		return fmt.Errorf("config 'Engine' must be (%s)", Postgres.String())
	}
	return nil
}

// OpenDatastore opens the relational store named by cfg.Datastore.
func OpenDatastore(cfg *config.Config, l logger.Logger) (storage.TagDatastore, error) {
	engine, err := NewDatastoreEngine(cfg.Datastore.Engine)
	if err != nil {
		return nil, err
	}
	if err := VerifyDatastoreEngine(cfg.Datastore.URI, *engine); err != nil {
		return nil, err
	}

	dsOptions := []sqlcommon.DatastoreOption{
		sqlcommon.WithUsername(cfg.Datastore.Username),
		sqlcommon.WithPassword(cfg.Datastore.Password),
		sqlcommon.WithLogger(l),
		sqlcommon.WithMaxOpenConns(cfg.Datastore.MaxOpenConns),
		sqlcommon.WithMaxIdleConns(cfg.Datastore.MaxIdleConns),
		sqlcommon.WithConnMaxIdleTime(cfg.Datastore.ConnMaxIdleTime),
		sqlcommon.WithConnMaxLifetime(cfg.Datastore.ConnMaxLifetime),
	}
	if cfg.Datastore.Metrics.Enabled {
		dsOptions = append(dsOptions, sqlcommon.WithMetrics())
	}
	dsCfg := sqlcommon.NewConfig(dsOptions...)

	var ds storage.TagDatastore
	switch *engine {
	case Memory:
		ds = memory.New()
	case Postgres:
		ds, err = postgres.New(cfg.Datastore.URI, dsCfg)
	case MySQL:
		ds, err = mysql.New(cfg.Datastore.URI, dsCfg)
	case SQLite:
		ds, err = sqlite.New(cfg.Datastore.URI, dsCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("initialize %s datastore: %w", engine, err)
	}

	l.Info(fmt.Sprintf("using '%v' storage engine", engine))

	return ds, nil
}

// OpenIndex opens the search index named by cfg.Search. An elastic cluster is pinged
// with backoff until it answers or the context ends.
func OpenIndex(ctx context.Context, cfg *config.Config, l logger.Logger) (search.Index, error) {
	switch cfg.Search.Engine {
	case "memory":
		return searchmemory.New(cfg.Search.Index, searchmemory.WithMaxResultWindow(cfg.Search.MaxResultWindow)), nil
	case "elastic":
		idx, err := elastic.New(cfg.Search.Index,
			elastic.Config{
				Addresses:  cfg.Search.Addresses,
				Username:   cfg.Search.Username,
				Password:   cfg.Search.Password,
				MaxRetries: cfg.Search.MaxRetries,
			},
			elastic.WithLogger(l),
			elastic.WithMaxResultWindow(cfg.Search.MaxResultWindow),
			elastic.WithRefresh(cfg.Search.Refresh),
			elastic.WithScrollKeepAlive(cfg.Search.ScrollKeepAlive),
		)
		if err != nil {
			return nil, err
		}

		policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
		err = backoff.RetryNotify(func() error {
			return idx.Ping(ctx)
		}, policy, func(err error, next time.Duration) {
			l.Warn("waiting for search cluster", zap.Error(err), zap.Duration("retry_in", next))
		})
		if err != nil {
			return nil, fmt.Errorf("search cluster unreachable: %w", err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown search engine type: %s", cfg.Search.Engine)
	}
}

// ServiceOptions maps the tag section of cfg onto service options.
func ServiceOptions(cfg *config.Config, l logger.Logger) ([]tag.ServiceOption, error) {
	boolOp, err := query.ParseBoolOp(cfg.Tag.Query.BoolOp)
	if err != nil {
		return nil, err
	}

	return []tag.ServiceOption{
		tag.WithLogger(l),
		tag.WithBatchSize(cfg.Tag.BatchSize),
		tag.WithListLimit(cfg.Tag.ListLimit),
		tag.WithConcurrency(cfg.Tag.Concurrency),
		tag.WithQueryOptions(
			query.WithPageSize(cfg.Tag.Query.PageSize),
			query.WithWindow(cfg.Search.MaxResultWindow),
			query.WithFuzziness(cfg.Tag.Query.Fuzziness),
			query.WithBoolOp(boolOp),
			query.WithFieldNameTTL(cfg.Tag.Query.FieldNameTTL),
		),
	}, nil
}

// Runtime holds everything a tag command needs. Close releases it.
type Runtime struct {
	Config    *config.Config
	Logger    logger.Logger
	Datastore storage.TagDatastore
	Index     search.Index
	Service   *tag.Service

	tracer telemetry.TracerProvider
}

// Bootstrap reads nothing from viper: cfg must already be verified.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	l, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg, Logger: l, tracer: telemetry.Noop()}
	if cfg.Trace.Enabled {
		opts := []telemetry.TracerOption{
			telemetry.WithOTLPEndpoint(cfg.Trace.OTLP.Endpoint),
			telemetry.WithServiceName(cfg.Trace.ServiceName),
			telemetry.WithSamplingRatio(cfg.Trace.SampleRatio),
		}
		if !cfg.Trace.OTLP.TLS.Enabled {
			opts = append(opts, telemetry.WithOTLPInsecure())
		}
		rt.tracer = telemetry.MustNewTracerProvider(opts...)
		l.Info(fmt.Sprintf("tracing enabled, exporting to %s", cfg.Trace.OTLP.Endpoint))
	}

	rt.Datastore, err = OpenDatastore(cfg, l)
	if err != nil {
		rt.Close()
		return nil, err
	}

	status, err := rt.Datastore.IsReady(ctx)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("datastore readiness: %w", err)
	}
	if !status.IsReady {
		rt.Close()
		return nil, fmt.Errorf("datastore is not ready: %s", status.Message)
	}

	rt.Index, err = OpenIndex(ctx, cfg, l)
	if err != nil {
		rt.Close()
		return nil, err
	}

	opts, err := ServiceOptions(cfg, l)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service, err = tag.NewService(rt.Datastore, rt.Index, opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}

	l.Debug("runtime ready", zap.String("version", build.Version))

	return rt, nil
}

// Close releases the service, the datastore and the tracer provider.
func (r *Runtime) Close() {
	if r.Service != nil {
		r.Service.Close()
	}
	if r.Datastore != nil {
		r.Datastore.Close()
	}
	if r.tracer != nil {
		if err := r.tracer.Close(context.Background()); err != nil {
			r.Logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
}
