package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/strata-systems/strata/internal/service"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var dataSourceID string

	cmd := &cobra.Command{
		Use:   "status [datasource-id]",
		Short: "Show datasources, snapshots and recent executions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				dataSourceID = args[0]
			}
			return runStatus(dataSourceID)
		},
	}
	return cmd
}

func runStatus(dataSourceID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	svc, _, closer, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	if dataSourceID != "" {
		return showDataSource(ctx, svc, dataSourceID)
	}
	return showAllDataSources(ctx, svc)
}

func showAllDataSources(ctx context.Context, svc *service.Service) error {
	dss, err := svc.ListDataSources(ctx)
	if err != nil {
		return fmt.Errorf("listing datasources: %w", err)
	}
	if len(dss) == 0 {
		fmt.Println("No datasources registered.")
		return nil
	}

	bold := color.New(color.Bold)
	_, _ = bold.Println("Datasources:")
	fmt.Println()
	for _, ds := range dss {
		activeStr := color.YellowString("no active snapshot")
		if ds.ActiveSnapshotID != "" {
			activeStr = color.GreenString(ds.ActiveSnapshotID)
		}
		fmt.Printf("  %-28s %-24s active=%s\n", ds.ID, ds.Name, activeStr)
	}
	fmt.Println()
	return nil
}

func showDataSource(ctx context.Context, svc *service.Service, id string) error {
	ds, err := svc.GetDataSource(ctx, id)
	if err != nil {
		return fmt.Errorf("datasource not found: %w", err)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("Datasource: %s\n", ds.Name)
	fmt.Printf("  ID:      %s\n", ds.ID)
	fmt.Printf("  Created: %s\n", ds.CreatedAt.Format(time.RFC3339))
	if ds.ActiveSnapshotID != "" {
		color.Green("  Active:  %s", ds.ActiveSnapshotID)
	} else {
		color.Yellow("  Active:  none")
	}

	if len(ds.Schema) > 0 {
		fmt.Println()
		_, _ = bold.Println("  Schema:")
		for _, col := range ds.Schema {
			fmt.Printf("    %-24s %-12s nulls=%d\n", col.Name, col.Dtype, col.NullCount)
		}
	}

	snaps, _ := svc.ListSnapshots(ctx, id)
	if len(snaps) > 0 {
		fmt.Println()
		_, _ = bold.Println("  Snapshots:")
		for _, s := range snaps {
			marker := " "
			if s.ID == ds.ActiveSnapshotID {
				marker = color.GreenString("*")
			}
			size, err := svc.SnapshotSize(ctx, s.ID)
			sizeStr := "?"
			if err == nil {
				sizeStr = fmt.Sprintf("%d B", size)
			}
			fmt.Printf("  %s %s  %s  %s\n", marker, s.ID, s.CreatedAt.Format(time.RFC3339), sizeStr)
		}
	}

	fmt.Println()
	return nil
}
