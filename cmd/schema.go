package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/goccy/go-yaml"
	"github.com/rustup-plus-plus/distpack/schema"
	"github.com/spf13/cobra"
)

// SchemaCommand represents the schema command
var SchemaCommand = &cobra.Command{
	Use:   "schema",
	Short: "Display configuration schema",
	Long: `Display the JSON schema of distpack configuration files in YAML or
JSON, optionally narrowed to one definition.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		typeFilter, _ := cmd.Flags().GetString("type")
		list, _ := cmd.Flags().GetBool("list")

		return RunSchema(format, typeFilter, list, cmd.OutOrStdout())
	},
}

// RunSchema executes the schema command with the given parameters
func RunSchema(format, typeFilter string, list bool, w io.Writer) error {
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unsupported format: %s", format)
	}

	// The whole document in JSON is the embedded file as written.
	if format == "json" && typeFilter == "" && !list {
		_, err := w.Write(schema.ConfigSchemaRaw())
		return err
	}

	doc, err := schema.ConfigSchema()
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}
	defs, _ := doc["$defs"].(map[string]any)

	if list {
		names := make([]string, 0, len(defs))
		for name := range defs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintln(w, name)
		}
		return nil
	}

	var out any = doc
	if typeFilter != "" {
		def, ok := defs[typeFilter]
		if !ok {
			return fmt.Errorf("unknown schema type %q (use --list)", typeFilter)
		}
		out = def
	}

	data, err := convertSchemaToFormat(out, format)
	if err != nil {
		return fmt.Errorf("failed to convert to %s: %w", format, err)
	}
	_, err = w.Write(data)
	return err
}

// convertSchemaToFormat converts schema to the specified format
func convertSchemaToFormat(schema any, format string) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(schema)
	case "json":
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func init() {
	SchemaCommand.Flags().StringP("format", "f", "yaml", "Output format (yaml, json)")
	SchemaCommand.Flags().StringP("type", "t", "", "Display a single schema definition")
	SchemaCommand.Flags().BoolP("list", "l", false, "List available schema definitions")
}
