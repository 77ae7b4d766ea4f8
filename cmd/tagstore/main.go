package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/zetsubou/tagstore/cmd"
	"github.com/zetsubou/tagstore/cmd/importer"
	"github.com/zetsubou/tagstore/cmd/migrate"
	"github.com/zetsubou/tagstore/cmd/repair"
	"github.com/zetsubou/tagstore/cmd/searchtags"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	migrateCmd := migrate.NewMigrateCommand()
	rootCmd.AddCommand(migrateCmd)

	importCmd := importer.NewImportCommand()
	rootCmd.AddCommand(importCmd)

	repairCmd := repair.NewRepairCommand()
	rootCmd.AddCommand(repairCmd)

	searchCmd := searchtags.NewSearchCommand()
	rootCmd.AddCommand(searchCmd)

	versionCmd := cmd.NewVersionCommand()
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
