package validator

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/roach88/querier/internal/ordmap"
)

// rootField is how gojsonschema names the document root.
const rootField = "(root)"

// JSONSchema is a FlatValidator expressed as a JSON Schema document whose
// properties are canonical keys. additionalProperties defaults to true in
// JSON Schema, so unlisted keys are allowed. Values are checked, never
// rewritten.
type JSONSchema struct {
	schema *gojsonschema.Schema
}

// NewJSONSchema compiles doc.
func NewJSONSchema(doc string) (*JSONSchema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("compile consumer schema: %w", err)
	}
	return &JSONSchema{schema: s}, nil
}

// ValidateFlat implements FlatValidator.
func (s *JSONSchema) ValidateFlat(values *ordmap.Map[any]) (*ordmap.Map[any], error) {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(ordmap.Plain(values)))
	if err != nil {
		return nil, fmt.Errorf("json schema validation: %w", err)
	}
	if result.Valid() {
		return values, nil
	}

	first := result.Errors()[0]
	return nil, NewValidationError(LayerConsumer, jsonSchemaPath(first.Field(), values.Keys()), first.Description())
}

// jsonSchemaPath converts gojsonschema's dotted field ("filter:a[in].0")
// into our path form ("filter:a[in][0]"). Canonical keys may contain dots,
// so the longest key the field starts with stays whole and only the rest is
// split.
func jsonSchemaPath(field string, keys []string) string {
	if field == "" || field == rootField {
		return ""
	}
	field = strings.TrimPrefix(field, rootField+".")

	head := ""
	for _, key := range keys {
		if len(key) > len(head) && (field == key || strings.HasPrefix(field, key+".")) {
			head = key
		}
	}
	if head == "" {
		return JoinPath("", strings.Split(field, "."))
	}
	segments := []string{head}
	if rest := strings.TrimPrefix(field[len(head):], "."); rest != "" {
		segments = append(segments, strings.Split(rest, ".")...)
	}
	return JoinPath("", segments)
}
