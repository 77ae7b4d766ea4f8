// Package repair contains the command that reconciles tag projections with the datastore.
package repair

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zetsubou/tagstore/cmd/exec_common"
	"github.com/zetsubou/tagstore/cmd/util"
)

const idFlag = "id"

func NewRepairCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Rebuild tag projections from the datastore",
		Long: `Rebuild tag projections from the datastore.

With --id only that tag is repaired. Otherwise every tag known to either store is
checked, and projections of tags missing from the datastore are removed.`,
		RunE: runRepair,
		Args: cobra.NoArgs,
	}

	flags := cmd.Flags()
	flags.Int64(idFlag, 0, "repair only the tag with this id")
	exec_common.AddServiceFlags(flags)

	// NOTE: if you add a new flag here, update the function below, too

	bindServiceFlags := exec_common.BindServiceFlagsFunc(flags)
	cmd.PreRun = func(command *cobra.Command, args []string) {
		util.MustBindPFlag(idFlag, flags.Lookup(idFlag))
		bindServiceFlags(command, args)
	}

	return cmd
}

type result struct {
	ID      int64  `json:"id"`
	Outcome string `json:"outcome"`
}

func runRepair(cmd *cobra.Command, _ []string) error {
	cfg, err := util.ReadConfig()
	if err != nil {
		return err
	}

	rt, err := exec_common.Bootstrap(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	var out any
	if cmd.Flags().Changed(idFlag) {
		tagID := viper.GetInt64(idFlag)
		outcome, err := rt.Service.Repair(cmd.Context(), tagID)
		if err != nil {
			return fmt.Errorf("repair tag %d: %w", tagID, err)
		}
		out = result{ID: tagID, Outcome: outcome.String()}
	} else {
		summary, err := rt.Service.RepairAll(cmd.Context())
		if err != nil {
			return err
		}
		out = summary
	}

	marshalled, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(marshalled))
	return err
}
