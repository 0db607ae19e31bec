package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rollgate/rollgate-go/internal/adminclient"
)

var importDryRun bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import flags and segments from a YAML file",
	Long: `Import flags and segments from a YAML file produced by export.
Existing flags with the same key are overwritten.

Examples:
  rollgate import flags.yaml
  rollgate import flags.yaml --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read import file: %w", err)
		}

		var payload flagExport
		if err := yaml.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("failed to parse import file: %w", err)
		}

		if importDryRun {
			fmt.Printf("Would import %d flags and %d segments\n", len(payload.Flags), len(payload.Segments))
			return nil
		}

		c, err := newClientFromFlags()
		if err != nil {
			return err
		}

		ctx := context.Background()
		for _, segment := range payload.Segments {
			if err := c.UpsertSegment(ctx, segment.ID, segment.Conditions); err != nil {
				return fmt.Errorf("failed to import segment %q: %w", segment.ID, err)
			}
		}
		for _, flag := range payload.Flags {
			params := adminclient.UpsertFlagParams{
				Description:       flag.Description,
				Enabled:           flag.Enabled,
				RolloutPercentage: flag.RolloutPercentage,
				TargetUsers:       flag.TargetUsers,
				Rules:             flag.Rules,
				Variations:        flag.Variations,
				DefaultVariation:  flag.DefaultVariation,
				Env:               flag.Env,
			}
			if err := c.UpsertFlag(ctx, flag.Key, params); err != nil {
				return fmt.Errorf("failed to import flag %q: %w", flag.Key, err)
			}
		}

		if !quiet {
			fmt.Printf("Imported %d flags and %d segments\n", len(payload.Flags), len(payload.Segments))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Parse and report without writing")
}
