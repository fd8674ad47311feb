// Package schema embeds the JSON schema of the distpack config file.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed config.schema.json
var configSchema []byte

// ConfigSchema returns the parsed config JSON schema
func ConfigSchema() (map[string]any, error) {
	var jsonSchema map[string]any
	if err := json.Unmarshal(configSchema, &jsonSchema); err != nil {
		return nil, fmt.Errorf("failed to parse JSON schema: %w", err)
	}
	return jsonSchema, nil
}

// ConfigSchemaRaw returns the raw config JSON schema bytes
func ConfigSchemaRaw() []byte {
	return configSchema
}
