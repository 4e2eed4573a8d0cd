package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewMaterializeCmd creates the materialize command.
func NewMaterializeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "materialize [datasource-id]",
		Short: "Rebuild the current snapshot of a derived datasource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMaterialize(args[0])
		},
	}
	return cmd
}

func runMaterialize(dataSourceID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), executeTimeout)
	defer cancel()

	svc, _, closer, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	snapID, err := svc.Materialize(ctx, dataSourceID)
	if err != nil {
		return fmt.Errorf("materializing: %w", err)
	}
	color.Green("  ✓ Materialized: %s", snapID)
	return nil
}
