package vision

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hericlibong/Infograph2Data/constants"
)

// identificationSchema constrains the phase-1 response shape.
func identificationSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"detected_items"},
		"properties": map[string]any{
			"detected_items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"type", "bbox"},
					"properties": map[string]any{
						"type":         map[string]any{"type": "string"},
						"title":        map[string]any{"type": []any{"string", "null"}},
						"description":  map[string]any{"type": "string"},
						"data_preview": map[string]any{"type": "string"},
						"bbox": map[string]any{
							"type":     "object",
							"required": []string{"x", "y", "width", "height"},
							"properties": map[string]any{
								"x":      map[string]any{"type": "integer"},
								"y":      map[string]any{"type": "integer"},
								"width":  map[string]any{"type": "integer"},
								"height": map[string]any{"type": "integer"},
							},
						},
						"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
						"warnings":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
				},
			},
			"image_width":  map[string]any{"type": "integer"},
			"image_height": map[string]any{"type": "integer"},
		},
	}
}

// extractionSchema constrains the phase-2 response shape. For the
// full_with_source granularity, every row must carry a source tag.
func extractionSchema(granularity constants.Granularity) map[string]any {
	rowSchema := map[string]any{"type": "object"}
	if granularity == constants.GranularityFullWithSource {
		rowSchema = map[string]any{
			"type":     "object",
			"required": []string{"source"},
			"properties": map[string]any{
				"source": map[string]any{
					"type": "string",
					"enum": []any{"annotated", "estimated"},
				},
			},
		}
	}

	return map[string]any{
		"type":     "object",
		"required": []string{"extractions"},
		"properties": map[string]any{
			"extractions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"item_id", "columns", "rows"},
					"properties": map[string]any{
						"item_id": map[string]any{"type": "string"},
						"title":   map[string]any{"type": []any{"string", "null"}},
						"columns": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
						"rows":       map[string]any{"type": "array", "items": rowSchema},
						"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
						"notes":      map[string]any{"type": []any{"string", "null"}},
					},
				},
			},
		},
	}
}

// validateAgainstSchema validates data against the given schema map.
func validateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
