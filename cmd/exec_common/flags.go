package exec_common

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/zetsubou/tagstore/cmd/util"
	"github.com/zetsubou/tagstore/pkg/config"
)

// AddServiceFlags registers the flags shared by the commands acting on the tag graph.
// Their defaults come from [config.DefaultConfig].
func AddServiceFlags(flags *pflag.FlagSet) {
	defaultConfig := config.DefaultConfig()

	flags.String("datastore-engine", defaultConfig.Datastore.Engine, "the datastore engine that will be used for persistence")
	flags.String("datastore-uri", defaultConfig.Datastore.URI, "the connection uri to use to connect to the datastore (for any engine other than 'memory')")
	flags.String("datastore-username", "", "the connection username to use to connect to the datastore (overwrites any username provided in the connection uri)")
	flags.String("datastore-password", "", "the connection password to use to connect to the datastore (overwrites any password provided in the connection uri)")
	flags.Bool("datastore-metrics-enabled", defaultConfig.Datastore.Metrics.Enabled, "enable/disable sql metrics")

	flags.String("search-engine", defaultConfig.Search.Engine, "the search index engine ('memory' or 'elastic')")
	flags.StringSlice("search-addresses", defaultConfig.Search.Addresses, "the addresses of the elastic cluster")
	flags.String("search-index", defaultConfig.Search.Index, "the name of the index holding the tag projections")
	flags.Int("search-max-result-window", defaultConfig.Search.MaxResultWindow, "the deepest offset the index serves with from+size")

	flags.Int("tag-batch-size", defaultConfig.Tag.BatchSize, "the number of projections rewritten per bulk request when a tag is deleted")
	flags.Int("tag-concurrency", defaultConfig.Tag.Concurrency, "the number of tags interpreted or repaired in parallel")
	flags.Int("tag-query-page-size", defaultConfig.Tag.Query.PageSize, "the default size of a result page")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in ('text' or 'json')")
	flags.String("log-level", defaultConfig.Log.Level, "the log level to use ('none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal')")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable tracing")
	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLP.Endpoint, "the endpoint of the trace collector")
	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample. 1 means all, 0 means none.")
}

// BindServiceFlagsFunc binds the cobra cmd flags to the equivalent config value being managed
// by viper. This bridges the config between cobra flags and viper flags.
func BindServiceFlagsFunc(flags *pflag.FlagSet) func(*cobra.Command, []string) {
	return func(command *cobra.Command, args []string) {
		bind(flags, "datastore.engine", "datastore-engine")
		bind(flags, "datastore.uri", "datastore-uri")
		bind(flags, "datastore.username", "datastore-username")
		bind(flags, "datastore.password", "datastore-password")
		bind(flags, "datastore.metrics.enabled", "datastore-metrics-enabled")

		bind(flags, "search.engine", "search-engine")
		bind(flags, "search.addresses", "search-addresses")
		bind(flags, "search.index", "search-index")
		bind(flags, "search.maxResultWindow", "search-max-result-window")

		bind(flags, "tag.batchSize", "tag-batch-size")
		bind(flags, "tag.concurrency", "tag-concurrency")
		bind(flags, "tag.query.pageSize", "tag-query-page-size")

		bind(flags, "log.format", "log-format")
		bind(flags, "log.level", "log-level")

		bind(flags, "trace.enabled", "trace-enabled")
		bind(flags, "trace.otlp.endpoint", "trace-otlp-endpoint")
		bind(flags, "trace.sampleRatio", "trace-sample-ratio")
	}
}

func bind(flags *pflag.FlagSet, key, flag string) {
	util.MustBindPFlag(key, flags.Lookup(flag))
	util.MustBindEnv(key, "TAGSTORE_"+strings.ToUpper(strings.ReplaceAll(flag, "-", "_")))
}
