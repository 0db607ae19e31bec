package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	baseURL     string
	apiKey      string
	contextName string
	format      string
	quiet       bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rollgate",
	Short: "CLI tool for managing rollgate feature flags",
	Long: `Rollgate is a command-line tool for administering flags and segments
on a rollgate server.

Examples:
  rollgate list
  rollgate set my_flag --enabled --rollout 50
  rollgate get my_flag --format json
  rollgate segment set beta-testers --conditions '[{"attribute":"email","operator":"ends_with","value":"@corp.com"}]'
  rollgate export --output flags.yaml
  rollgate import flags.yaml`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the rollgate admin API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key for authentication")
	rootCmd.PersistentFlags().StringVar(&contextName, "context", "", "Named context from the config file")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
}
