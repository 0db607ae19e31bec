package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rollgate/rollgate-go/internal/cli"
)

var (
	configSetBaseURL string
	configSetAPIKey  string
	configSetDefault bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
}

var configSetCmd = &cobra.Command{
	Use:   "set <context>",
	Short: "Save connection settings for a named context",
	Long: `Save connection settings for a named context in ~/.rollgate/config.yaml.

Examples:
  rollgate config set prod --base-url https://flags.example.com --api-key admin-xyz --default
  rollgate config set local --base-url http://localhost:8080 --api-key admin-123`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if configSetBaseURL == "" || configSetAPIKey == "" {
			return fmt.Errorf("--base-url and --api-key are required")
		}

		cfg, err := cli.LoadConfig()
		if err != nil {
			return err
		}
		if cfg.Contexts == nil {
			cfg.Contexts = make(map[string]cli.ContextConfig)
		}
		cfg.Contexts[name] = cli.ContextConfig{BaseURL: configSetBaseURL, APIKey: configSetAPIKey}
		if configSetDefault || cfg.DefaultContext == "" {
			cfg.DefaultContext = name
		}
		if err := cli.SaveConfig(cfg); err != nil {
			return err
		}

		if !quiet {
			fmt.Printf("Saved context '%s'\n", name)
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured contexts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return err
		}
		for name, ctx := range cfg.Contexts {
			marker := " "
			if name == cfg.DefaultContext {
				marker = "*"
			}
			fmt.Printf("%s %s\t%s\n", marker, name, ctx.BaseURL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)

	configSetCmd.Flags().StringVar(&configSetBaseURL, "base-url", "", "Base URL of the rollgate admin API")
	configSetCmd.Flags().StringVar(&configSetAPIKey, "api-key", "", "Admin API key")
	configSetCmd.Flags().BoolVar(&configSetDefault, "default", false, "Make this the default context")
}
