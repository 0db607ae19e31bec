package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rollgate/rollgate-go/internal/cli"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a feature flag",
	Long: `Get details of a specific feature flag.

Examples:
  rollgate get feature_x
  rollgate get feature_x --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		c, err := newClientFromFlags()
		if err != nil {
			return err
		}

		flag, err := c.GetFlag(context.Background(), key)
		if err != nil {
			return fmt.Errorf("failed to get flag: %w", err)
		}

		if !quiet {
			return cli.PrintFlag(flag, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
