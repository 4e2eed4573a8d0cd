package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/strata-systems/strata/pkg/types"
)

const executeTimeout = 5 * time.Minute

// NewExecuteCmd creates the execute command.
func NewExecuteCmd() *cobra.Command {
	var snapshotID string
	var snapshots map[string]string
	var preview bool
	var previewRows int

	cmd := &cobra.Command{
		Use:   "execute [preprocess-id]",
		Short: "Execute a preprocess against its resolved inputs",
		Long: `Runs a preprocess. Single-parent preprocesses need their input named
with --snapshot; join inputs default to each parent's active snapshot
and can be pinned with repeated --input datasource-id=snapshot-id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := types.ExecuteRequest{SnapshotID: snapshotID, Snapshots: snapshots}
			return runExecute(args[0], req, preview, previewRows)
		},
	}

	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "Input snapshot id for single-parent preprocesses")
	cmd.Flags().StringToStringVar(&snapshots, "input", nil, "Input snapshot per parent datasource (id=snapshot)")
	cmd.Flags().BoolVar(&preview, "preview", false, "Apply the steps without persisting anything")
	cmd.Flags().IntVar(&previewRows, "rows", 10, "Rows to show with --preview")
	return cmd
}

func runExecute(preprocessID string, req types.ExecuteRequest, preview bool, previewRows int) error {
	ctx, cancel := context.WithTimeout(context.Background(), executeTimeout)
	defer cancel()

	svc, _, closer, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	if preview {
		t, err := svc.Preview(ctx, preprocessID, req, previewRows)
		if err != nil {
			return fmt.Errorf("previewing: %w", err)
		}
		printTable(t.Columns, t.Rows)
		return nil
	}

	exec, err := svc.Execute(ctx, preprocessID, req)
	if err != nil {
		return fmt.Errorf("executing: %w", err)
	}

	color.Green("  ✓ Execution complete: %s", exec.ID)
	fmt.Printf("  Inputs: %v\n", exec.InputSnapshotIDs)
	fmt.Printf("  Output: %s\n", exec.OutputSnapshotID)
	return nil
}

func printTable(columns []string, rows [][]string) {
	bold := color.New(color.Bold)
	for i, col := range columns {
		if i > 0 {
			fmt.Print("  ")
		}
		_, _ = bold.Print(col)
	}
	fmt.Println()
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Print("  ")
			}
			if cell == "" {
				cell = "·"
			}
			fmt.Print(cell)
		}
		fmt.Println()
	}
}
