package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaVersion participates in the cache fingerprint: bumping it invalidates
// every cached entry produced under the previous extraction contract.
const SchemaVersion = "v1"

// extractionClasses is the closed set of section classes the prompt asks
// for. Legacy radiology classes are accepted for prebuilt sample caches.
var extractionClasses = []string{
	"document_header",
	"methodology_body",
	"results_body",
	"conclusions_suffix",
	"findings_prefix",
	"findings_body",
	"findings_suffix",
}

// BuildExtractionSchema returns the JSON Schema (draft 2020-12 subset) that
// model output must satisfy before it is decoded.
func BuildExtractionSchema() map[string]any {
	intervalProps := map[string]any{
		"start_pos": map[string]any{"type": "integer", "minimum": 0},
		"end_pos":   map[string]any{"type": "integer", "minimum": 0},
	}
	extractionProps := map[string]any{
		"extraction_class": map[string]any{"type": "string", "enum": extractionClasses},
		"extraction_text":  map[string]any{"type": "string"},
		"attributes": map[string]any{
			"type":                 "object",
			"additionalProperties": map[string]any{"type": "string"},
		},
		"char_interval": map[string]any{
			"type":       "object",
			"properties": intervalProps,
			"required":   []string{"start_pos", "end_pos"},
		},
		"alignment_status": map[string]any{"type": "string"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"extractions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties":           extractionProps,
					"required":             []string{"extraction_class", "extraction_text"},
				},
			},
		},
		"required": []string{"extractions"},
	}
}

// ValidateAgainstSchema validates data against schemaMap.
func ValidateAgainstSchema(schemaMap map[string]any, data []byte) error {
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
