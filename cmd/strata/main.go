package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strata-systems/strata/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "strata",
		Short: "Versioned tabular datasets with full transformation lineage",
		Long: `Strata tracks tabular datasets as immutable snapshots linked by
preprocesses. Every execution records exactly what it did, so any
snapshot's full transformation history can be reconstructed, and any
derived dataset can be rebuilt from its roots.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewUploadCmd(),
		commands.NewDefineCmd(),
		commands.NewExecuteCmd(),
		commands.NewMaterializeCmd(),
		commands.NewLineageCmd(),
		commands.NewStatusCmd(),
		commands.NewServeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
