// Package config contains all knobs and defaults used to configure the tagstore
// binary.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zetsubou/tagstore/internal/query"
	"github.com/zetsubou/tagstore/internal/tag"
	"github.com/zetsubou/tagstore/pkg/search"
	"github.com/zetsubou/tagstore/pkg/storage"
)

const (
	DefaultSearchIndex        = "tags"
	DefaultScrollKeepAlive    = time.Minute
	DefaultFieldNameTTL       = time.Minute
	DefaultSearchMaxRetries   = 3
	DefaultDatastoreOpenConns = 30
	DefaultDatastoreIdleConns = 10
)

var (
	datastoreEngines = []string{"memory", "postgres", "mysql", "sqlite"}
	searchEngines    = []string{"memory", "elastic"}
	logFormats       = []string{"text", "json"}
	logLevels        = []string{"none", "debug", "info", "warn", "error", "panic", "fatal"}
)

type DatastoreMetricsConfig struct {
	// Enabled enables export of the connection pool metrics.
	Enabled bool
}

// DatastoreConfig configures the relational store of tokens and edges.
type DatastoreConfig struct {
	// Engine is the datastore engine to use (e.g. 'memory', 'postgres', 'mysql', 'sqlite')
	Engine   string
	URI      string
	Username string
	Password string

	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of connections to the datastore in the idle connection
	// pool.
	MaxIdleConns int

	// ConnMaxIdleTime is the maximum amount of time a connection to the datastore may be idle.
	ConnMaxIdleTime time.Duration

	// ConnMaxLifetime is the maximum amount of time a connection to the datastore may be reused.
	ConnMaxLifetime time.Duration

	Metrics DatastoreMetricsConfig
}

// SearchConfig configures the index holding the tag projections.
type SearchConfig struct {
	// Engine is 'memory' or 'elastic'.
	Engine    string
	Addresses []string
	Username  string
	Password  string

	// Index is the name of the tag index.
	Index string

	// MaxResultWindow must match the index.max_result_window setting of the index.
	MaxResultWindow int
	MaxRetries      int

	// Refresh is the refresh parameter of writes, e.g. 'wait_for'. Empty leaves it
	// to the cluster.
	Refresh         string
	ScrollKeepAlive time.Duration
}

// QueryConfig holds the defaults of tag searches.
type QueryConfig struct {
	PageSize     int
	Fuzziness    int
	BoolOp       string
	FieldNameTTL time.Duration
}

// TagConfig configures the tag graph engine.
type TagConfig struct {
	BatchSize   int
	ListLimit   int
	Concurrency int
	Query       QueryConfig
}

// LogConfig defines log specific settings. For production we recommend using the
// 'json' log format.
type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string
}

type TraceConfig struct {
	Enabled     bool
	OTLP        OTLPTraceConfig `mapstructure:"otlp"`
	SampleRatio float64
	ServiceName string
}

type OTLPTraceConfig struct {
	Endpoint string
	TLS      OTLPTraceTLSConfig
}

type OTLPTraceTLSConfig struct {
	Enabled bool
}

type Config struct {
	Datastore DatastoreConfig
	Search    SearchConfig
	Tag       TagConfig
	Log       LogConfig
	Trace     TraceConfig
}

func (cfg *Config) Verify() error {
	if !slices.Contains(datastoreEngines, cfg.Datastore.Engine) {
		return fmt.Errorf("config 'datastore.engine' must be one of %q", datastoreEngines)
	}
	if cfg.Datastore.Engine != "memory" && cfg.Datastore.URI == "" {
		return fmt.Errorf("config 'datastore.uri' is required for the %s engine", cfg.Datastore.Engine)
	}

	if !slices.Contains(searchEngines, cfg.Search.Engine) {
		return fmt.Errorf("config 'search.engine' must be one of %q", searchEngines)
	}
	if cfg.Search.Engine == "elastic" && len(cfg.Search.Addresses) == 0 {
		return errors.New("config 'search.addresses' is required for the elastic engine")
	}
	if cfg.Search.Index == "" {
		return errors.New("config 'search.index' cannot be empty")
	}
	if cfg.Search.MaxResultWindow <= 0 {
		return fmt.Errorf("config 'search.maxResultWindow' must be positive, got %d", cfg.Search.MaxResultWindow)
	}

	if cfg.Tag.BatchSize <= 0 {
		return fmt.Errorf("config 'tag.batchSize' must be positive, got %d", cfg.Tag.BatchSize)
	}
	if cfg.Tag.Concurrency <= 0 {
		return fmt.Errorf("config 'tag.concurrency' must be positive, got %d", cfg.Tag.Concurrency)
	}
	if cfg.Tag.Query.PageSize <= 0 || cfg.Tag.Query.PageSize > cfg.Search.MaxResultWindow {
		return fmt.Errorf(
			"config 'tag.query.pageSize' (%d) must be between 1 and 'search.maxResultWindow' (%d)",
			cfg.Tag.Query.PageSize,
			cfg.Search.MaxResultWindow,
		)
	}
	if _, err := query.ParseBoolOp(cfg.Tag.Query.BoolOp); err != nil {
		return fmt.Errorf("config 'tag.query.boolOp': %w", err)
	}

	if !slices.Contains(logFormats, cfg.Log.Format) {
		return fmt.Errorf("config 'log.format' must be one of %q", logFormats)
	}
	if !slices.Contains(logLevels, cfg.Log.Level) {
		return fmt.Errorf("config 'log.level' must be one of %q", logLevels)
	}

	if cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1 {
		return errors.New("config 'trace.sampleRatio' must be between 0 and 1")
	}

	return nil
}

// DefaultConfig is the configuration used when nothing is overridden: both stores
// in memory.
func DefaultConfig() *Config {
	return &Config{
		Datastore: DatastoreConfig{
			Engine:       "memory",
			MaxIdleConns: DefaultDatastoreIdleConns,
			MaxOpenConns: DefaultDatastoreOpenConns,
		},
		Search: SearchConfig{
			Engine:          "memory",
			Addresses:       []string{},
			Index:           DefaultSearchIndex,
			MaxResultWindow: search.DefaultMaxResultWindow,
			MaxRetries:      DefaultSearchMaxRetries,
			ScrollKeepAlive: DefaultScrollKeepAlive,
		},
		Tag: TagConfig{
			BatchSize:   tag.DefaultBatchSize,
			ListLimit:   storage.DefaultListLimit,
			Concurrency: tag.DefaultConcurrency,
			Query: QueryConfig{
				PageSize:     query.DefaultPageSize,
				BoolOp:       query.BoolShould.String(),
				FieldNameTTL: DefaultFieldNameTTL,
			},
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Trace: TraceConfig{
			Enabled:     false,
			OTLP:        OTLPTraceConfig{Endpoint: "0.0.0.0:4317"},
			SampleRatio: 0.2,
			ServiceName: "tagstore",
		},
	}
}

// MustDefaultConfig returns the DefaultConfig and panics if it does not verify.
func MustDefaultConfig() *Config {
	cfg := DefaultConfig()
	if err := cfg.Verify(); err != nil {
		panic(err)
	}
	return cfg
}
