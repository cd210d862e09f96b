package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"

	"github.com/oliver-os/conductor/core"
)

// schemaFor reflects a JSON schema from an args struct. The struct's
// jsonschema tags drive descriptions and required fields.
func schemaFor(v any) map[string]any {
	r := jsonschema.Reflector{
		Anonymous:                  true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	s := r.Reflect(v)
	data, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	// The envelope fields are noise for tool consumers.
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// decodeArgs validates required fields against the schema and decodes the
// raw argument map into a typed args struct.
func decodeArgs(tool string, schema map[string]any, args map[string]any, out any) error {
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			field, ok := r.(string)
			if !ok {
				continue
			}
			if _, present := args[field]; !present {
				return core.NewValidationError("tools", field,
					fmt.Sprintf("missing required argument for tool %q", tool))
			}
		}
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build argument decoder: %w", err)
	}
	if err := decoder.Decode(args); err != nil {
		return core.NewValidationError("tools", "args",
			fmt.Sprintf("invalid arguments for tool %q: %v", tool, err))
	}
	return nil
}
