package util

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zetsubou/tagstore/pkg/config"
)

func TestReadConfigDefaults(t *testing.T) {
	PrepareTempConfigDir(t)

	cfg, err := ReadConfig()
	require.NoError(t, err)
	require.Equal(t, config.MustDefaultConfig(), cfg)
}

func TestReadConfigFromFile(t *testing.T) {
	PrepareTempConfigFile(t, `datastore:
  engine: sqlite
  uri: file:tags.db
search:
  index: pictures
  maxResultWindow: 500
tag:
  batchSize: 50
  query:
    pageSize: 25
    fieldNameTTL: 30s
log:
  format: json
`)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.tagstore")

	cfg, err := ReadConfig()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Datastore.Engine)
	require.Equal(t, "file:tags.db", cfg.Datastore.URI)
	require.Equal(t, "pictures", cfg.Search.Index)
	require.Equal(t, 500, cfg.Search.MaxResultWindow)
	require.Equal(t, 50, cfg.Tag.BatchSize)
	require.Equal(t, 25, cfg.Tag.Query.PageSize)
	require.Equal(t, 30*time.Second, cfg.Tag.Query.FieldNameTTL)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestReadConfigRejectsInvalid(t *testing.T) {
	PrepareTempConfigFile(t, `datastore:
  engine: postgres
`)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.tagstore")

	_, err := ReadConfig()
	require.EqualError(t, err, "config 'datastore.uri' is required for the postgres engine")
}

func TestReadConfigFlagOverridesFile(t *testing.T) {
	PrepareTempConfigFile(t, `log:
  level: warn
`)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.tagstore")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--log-level", "debug"}))
	MustBindPFlag("log.level", flags.Lookup("log-level"))

	cfg, err := ReadConfig()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestMustBindPFlagPanicsOnNilFlag(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.Panics(t, func() {
		MustBindPFlag("log.level", nil)
	})
}
