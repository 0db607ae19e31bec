package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rollgate/rollgate-go/internal/rules"
)

var exportOutput string

type flagExport struct {
	Flags    []rules.Flag    `yaml:"flags"`
	Segments []rules.Segment `yaml:"segments,omitempty"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export flags and segments to a YAML file",
	Long: `Export all flags and segments to a YAML file, or stdout when no
output file is given.

Examples:
  rollgate export --output flags.yaml
  rollgate export > flags.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClientFromFlags()
		if err != nil {
			return err
		}

		ctx := context.Background()
		flags, err := c.ListFlags(ctx)
		if err != nil {
			return fmt.Errorf("failed to list flags: %w", err)
		}
		segments, err := c.ListSegments(ctx)
		if err != nil {
			return fmt.Errorf("failed to list segments: %w", err)
		}

		data, err := yaml.Marshal(flagExport{Flags: flags, Segments: segments})
		if err != nil {
			return fmt.Errorf("failed to marshal export: %w", err)
		}

		if exportOutput == "" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(exportOutput, data, 0644); err != nil {
			return fmt.Errorf("failed to write export file: %w", err)
		}
		if !quiet {
			fmt.Printf("Exported %d flags and %d segments to %s\n", len(flags), len(segments), exportOutput)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Output file (default stdout)")
}
