package repair

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zetsubou/tagstore/cmd"
	"github.com/zetsubou/tagstore/cmd/util"
	"github.com/zetsubou/tagstore/internal/tag"
)

func TestRepairCommandFlags(t *testing.T) {
	util.PrepareTempConfigFile(t, `tag:
  concurrency: 2
`)
	t.Setenv("TAGSTORE_LOG_LEVEL", "debug")

	repairCmd := NewRepairCommand()
	repairCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		require.Equal(t, int64(42), viper.GetInt64(idFlag))
		require.Equal(t, 2, viper.GetInt("tag.concurrency"))
		require.Equal(t, "debug", viper.GetString("log.level"))
		require.Equal(t, "memory", viper.GetString("datastore.engine"))
		return nil
	}

	root := cmd.NewRootCommand()
	root.AddCommand(repairCmd)
	root.SetArgs([]string{"repair", "--id", "42"})
	require.NoError(t, root.Execute())
}

func TestRepairCommandRunsOverEmptyStores(t *testing.T) {
	util.PrepareTempConfigDir(t)

	var out bytes.Buffer
	root := cmd.NewRootCommand()
	root.AddCommand(NewRepairCommand())
	root.SetOut(&out)
	root.SetArgs([]string{"repair", "--log-level", "none"})
	require.NoError(t, root.Execute())

	var summary tag.RepairSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	require.NotEmpty(t, summary.RunID)
	require.Zero(t, summary.Checked)
}

func TestRepairCommandSingleAbsentTag(t *testing.T) {
	util.PrepareTempConfigDir(t)

	var out bytes.Buffer
	root := cmd.NewRootCommand()
	root.AddCommand(NewRepairCommand())
	root.SetOut(&out)
	root.SetArgs([]string{"repair", "--id", "7", "--log-level", "none"})
	require.NoError(t, root.Execute())

	var got result
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Equal(t, result{ID: 7, Outcome: "unchanged"}, got)
}

func TestRepairCommandRejectsInvalidConfig(t *testing.T) {
	util.PrepareTempConfigDir(t)

	root := cmd.NewRootCommand()
	root.AddCommand(NewRepairCommand())
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"repair", "--datastore-engine", "postgres"})
	require.EqualError(t, root.Execute(), "config 'datastore.uri' is required for the postgres engine")
}
