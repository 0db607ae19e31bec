package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rollgate/rollgate-go/internal/cli"
	"github.com/rollgate/rollgate-go/internal/rules"
)

var segmentConditions string

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Manage user segments",
}

var segmentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all segments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClientFromFlags()
		if err != nil {
			return err
		}
		segments, err := c.ListSegments(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list segments: %w", err)
		}
		if !quiet {
			return cli.PrintSegments(segments, cli.OutputFormat(format))
		}
		return nil
	},
}

var segmentSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Create or update a segment",
	Long: `Create or update a segment from a JSON condition list.

Examples:
  rollgate segment set beta-testers --conditions '[{"attribute":"email","operator":"ends_with","value":"@corp.com"}]'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		var conditions []rules.Condition
		if err := json.Unmarshal([]byte(segmentConditions), &conditions); err != nil {
			return fmt.Errorf("invalid conditions JSON: %w", err)
		}

		c, err := newClientFromFlags()
		if err != nil {
			return err
		}
		if err := c.UpsertSegment(context.Background(), id, conditions); err != nil {
			return fmt.Errorf("failed to set segment: %w", err)
		}
		if !quiet {
			fmt.Printf("Successfully set segment '%s'\n", id)
		}
		return nil
	},
}

var segmentDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a segment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		c, err := newClientFromFlags()
		if err != nil {
			return err
		}
		if err := c.DeleteSegment(context.Background(), id); err != nil {
			return fmt.Errorf("failed to delete segment: %w", err)
		}
		if !quiet {
			fmt.Printf("Successfully deleted segment '%s'\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(segmentCmd)
	segmentCmd.AddCommand(segmentListCmd)
	segmentCmd.AddCommand(segmentSetCmd)
	segmentCmd.AddCommand(segmentDeleteCmd)

	segmentSetCmd.Flags().StringVar(&segmentConditions, "conditions", "[]", "Segment conditions as JSON")
}
