package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ClassificationSchema constrains the classification triple: type,
// confidence in [0,1], reasoning.
func ClassificationSchema(allowedTypes []string) map[string]any {
	typeProp := map[string]any{"type": "string", "minLength": 1}
	if len(allowedTypes) > 0 {
		typeProp = map[string]any{"type": "string", "enum": allowedTypes}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type":       typeProp,
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"reasoning":  map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"type", "confidence", "reasoning"},
	}
}

// ExtractionEnvelopeSchema constrains the extraction envelope: a non-empty
// documentType tag and a data payload. The per-type payload shape is the
// normalizer's concern, not the schema's.
func ExtractionEnvelopeSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"documentType": map[string]any{"type": "string", "minLength": 1},
			"metadata":     map[string]any{"type": "object"},
			"data":         map[string]any{"type": "object"},
		},
		"required": []string{"documentType", "data"},
	}
}

// ValidateJSONAgainstSchema validates a decoded JSON document against a
// schema expressed as a generic map.
func ValidateJSONAgainstSchema(schema map[string]any, doc []byte) error {
	sb, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(sb)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var value any
	if err := json.Unmarshal(doc, &value); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := compiled.Validate(value); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}
