package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/strata-systems/strata/pkg/types"
)

// NewLineageCmd creates the lineage command.
func NewLineageCmd() *cobra.Command {
	var roots string

	cmd := &cobra.Command{
		Use:   "lineage [snapshot-id]",
		Short: "Show the transformation history behind a snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if roots != "" {
				return runRoots(roots)
			}
			if len(args) == 0 {
				return fmt.Errorf("a snapshot id or --roots is required")
			}
			return runLineage(args[0])
		},
	}

	cmd.Flags().StringVar(&roots, "roots", "", "List root snapshots of a datasource instead")
	return cmd
}

func runLineage(snapshotID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	svc, _, closer, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	details, err := svc.ReconstructSteps(ctx, snapshotID)
	if err != nil {
		return fmt.Errorf("reconstructing lineage: %w", err)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("Lineage of %s (%d steps):\n", snapshotID, len(details))
	for i, d := range details {
		fmt.Printf("  %2d. %s\n", i+1, describeDetail(d))
	}
	return nil
}

func runRoots(dataSourceID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	svc, _, closer, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	ids, err := svc.CollectRootSnapshots(ctx, dataSourceID)
	if err != nil {
		return fmt.Errorf("collecting roots: %w", err)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func describeDetail(d types.StepDetail) string {
	switch {
	case d.Join != nil:
		return fmt.Sprintf("join %s: %s ⋈ %s", d.Join.How, d.Join.LeftSnapshotID, d.Join.RightSnapshotID)
	case d.Rename != nil:
		return fmt.Sprintf("rename_column: %s → %s", d.Rename.From, d.Rename.To)
	case d.Impute != nil:
		return fmt.Sprintf("impute_missing %s (%s): filled with %q", d.Impute.Column, d.Impute.Strategy, d.Impute.ImputedValue)
	case d.Label != nil:
		keys := make([]string, 0, len(d.Label.Mapping))
		for k := range d.Label.Mapping {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("label_encode %s: %d categories %v", d.Label.Column, len(keys), keys)
	case d.OneHot != nil:
		return fmt.Sprintf("one_hot_encode %s: %v", d.OneHot.Column, d.OneHot.Categories)
	case d.Custom != nil:
		return fmt.Sprintf("%s (custom code %s)", d.Op, d.Custom.CodeHash)
	case d.Generic != nil:
		return fmt.Sprintf("%s %v", d.Op, d.Generic.Params)
	default:
		return string(d.Op)
	}
}
