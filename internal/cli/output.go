package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/rollgate/rollgate-go/internal/rules"
)

// OutputFormat specifies the output format for CLI commands.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintFlags outputs flags in the specified format.
func PrintFlags(flags []rules.Flag, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]rules.Flag{"flags": flags})
	case FormatYAML:
		return printYAML(flags)
	case FormatTable:
		return printFlagTable(flags)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintFlag outputs a single flag in the specified format.
func PrintFlag(flag *rules.Flag, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(flag)
	case FormatYAML:
		return printYAML(flag)
	case FormatTable:
		return printFlagTable([]rules.Flag{*flag})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintSegments outputs segments in the specified format.
func PrintSegments(segments []rules.Segment, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]rules.Segment{"segments": segments})
	case FormatYAML:
		return printYAML(segments)
	case FormatTable:
		return printSegmentTable(segments)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(data any) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printFlagTable(flags []rules.Flag) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Key", "Enabled", "Rollout", "Rules", "Env", "Description", "Updated At")

	for _, flag := range flags {
		description := flag.Description
		if len(description) > 40 {
			description = description[:37] + "..."
		}
		table.Append(
			flag.Key,
			fmt.Sprintf("%t", flag.Enabled),
			fmt.Sprintf("%d%%", flag.RolloutPercentage),
			fmt.Sprintf("%d", len(flag.Rules)),
			flag.Env,
			description,
			flag.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	return table.Render()
}

func printSegmentTable(segments []rules.Segment) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Conditions")

	for _, segment := range segments {
		conds := make([]string, 0, len(segment.Conditions))
		for _, c := range segment.Conditions {
			conds = append(conds, fmt.Sprintf("%s %s %v", c.Attribute, c.Operator, c.Value))
		}
		table.Append(segment.ID, strings.Join(conds, ", "))
	}
	return table.Render()
}
