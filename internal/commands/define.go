package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/strata-systems/strata/pkg/types"
)

// preprocessFile is the YAML shape of a preprocess definition.
type preprocessFile struct {
	Name    string       `yaml:"name"`
	Parents []string     `yaml:"parents"`
	Steps   []types.Step `yaml:"steps"`
}

// NewDefineCmd creates the define command.
func NewDefineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "define [preprocess-yaml]",
		Short: "Define a preprocess from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefine(args[0])
		},
	}
	return cmd
}

func runDefine(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}
	var pf preprocessFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parsing %s: %w", file, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	svc, _, closer, err := newService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	pp, err := svc.DefinePreprocess(ctx, pf.Name, pf.Parents, pf.Steps)
	if err != nil {
		return fmt.Errorf("defining preprocess: %w", err)
	}

	color.Green("  ✓ Preprocess defined: %s", pp.ID)
	fmt.Printf("  Child datasource: %s\n", pp.ChildID)
	fmt.Printf("  Steps: %d\n", len(pp.Steps))
	return nil
}
