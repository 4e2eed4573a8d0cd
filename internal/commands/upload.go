package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewUploadCmd creates the upload command.
func NewUploadCmd() *cobra.Command {
	var name string
	var dataSourceID string

	cmd := &cobra.Command{
		Use:   "upload [csv-file]",
		Short: "Upload a CSV snapshot to a datasource",
		Long: `Uploads a CSV file as a new active snapshot. With --name a new root
datasource is created; with --datasource the snapshot is added to an
existing one and must match its recorded schema.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(name, dataSourceID, args[0])
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Create a new datasource with this name")
	cmd.Flags().StringVar(&dataSourceID, "datasource", "", "Upload to an existing datasource id")
	return cmd
}

func runUpload(name, dataSourceID, file string) error {
	if (name == "") == (dataSourceID == "") {
		return fmt.Errorf("exactly one of --name or --datasource is required")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	svc, _, closer, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	if name != "" {
		ds, err := svc.DefineDatasetUpload(ctx, name)
		if err != nil {
			return fmt.Errorf("creating datasource: %w", err)
		}
		dataSourceID = ds.ID
		color.Green("  ✓ Datasource created: %s", ds.ID)
	}

	snap, err := svc.UploadSnapshot(ctx, dataSourceID, data)
	if err != nil {
		return fmt.Errorf("uploading snapshot: %w", err)
	}
	color.Green("  ✓ Snapshot uploaded: %s", snap.ID)

	ds, err := svc.GetDataSource(ctx, dataSourceID)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Printf("Schema of %s:\n", ds.Name)
	for _, col := range ds.Schema {
		fmt.Printf("  %-24s %-12s nulls=%d\n", col.Name, col.Dtype, col.NullCount)
	}
	return nil
}
