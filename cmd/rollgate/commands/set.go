package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rollgate/rollgate-go/internal/adminclient"
	"github.com/rollgate/rollgate-go/internal/rules"
)

var (
	setEnabled     bool
	setRollout     int
	setTargets     []string
	setRules       string
	setVariations  string
	setDefaultVar  string
	setDescription string
	setEnv         string
)

var setCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Create or update a feature flag",
	Long: `Create or update a feature flag with the specified key and options.

Examples:
  rollgate set feature_x --enabled --rollout 50
  rollgate set feature_y --enabled --targets alice,bob --description "Beta of feature Y"
  rollgate set theme --enabled --variations '{"on":"dark","off":"light"}' --default-variation on
  rollgate set pro_only --enabled --rules '[{"id":"r1","enabled":true,"conditions":[{"attribute":"plan","operator":"eq","value":"pro"}],"rolloutPercentage":100}]'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		var flagRules []rules.Rule
		if setRules != "" {
			if err := json.Unmarshal([]byte(setRules), &flagRules); err != nil {
				return fmt.Errorf("invalid rules JSON: %w", err)
			}
		}
		var variations map[string]any
		if setVariations != "" {
			if err := json.Unmarshal([]byte(setVariations), &variations); err != nil {
				return fmt.Errorf("invalid variations JSON: %w", err)
			}
		}

		c, err := newClientFromFlags()
		if err != nil {
			return err
		}

		params := adminclient.UpsertFlagParams{
			Description:       setDescription,
			Enabled:           setEnabled,
			RolloutPercentage: setRollout,
			TargetUsers:       setTargets,
			Rules:             flagRules,
			Variations:        variations,
			DefaultVariation:  setDefaultVar,
			Env:               setEnv,
		}
		if err := c.UpsertFlag(context.Background(), key, params); err != nil {
			return fmt.Errorf("failed to set flag: %w", err)
		}

		if !quiet {
			fmt.Printf("Successfully set flag '%s'\n", key)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setCmd)

	setCmd.Flags().BoolVar(&setEnabled, "enabled", false, "Enable the flag")
	setCmd.Flags().IntVar(&setRollout, "rollout", 100, "Rollout percentage (0-100)")
	setCmd.Flags().StringSliceVar(&setTargets, "targets", nil, "User IDs always served the flag")
	setCmd.Flags().StringVar(&setRules, "rules", "", "Targeting rules as JSON")
	setCmd.Flags().StringVar(&setVariations, "variations", "", "Variation values as JSON")
	setCmd.Flags().StringVar(&setDefaultVar, "default-variation", "", "Variation served on fallthrough")
	setCmd.Flags().StringVar(&setDescription, "description", "", "Flag description")
	setCmd.Flags().StringVar(&setEnv, "env", "", "Environment (defaults to the server's)")
}
