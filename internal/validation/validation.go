// Package validation checks simulated payloads against the schema attached to
// an endpoint.
//
// Two schema flavours are supported. A type map is a flat JSON object naming
// the expected runtime type of each top-level field:
//
//	{"id": "number", "name": "string", "tags": "object"}
//
// A response schema is a full JSON Schema document (draft 2020-12).
package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/funnyzak/mockflow/pkg/jsonvalue"
)

// InvalidSchema is the single violation reported for an unusable schema.
const InvalidSchema = "Invalid schema format"

// NotJSON is the single violation reported when a response schema is set but
// the body did not parse as JSON.
const NotJSON = "Response body is not valid JSON"

// Validate checks the top-level fields of data against a type map. An empty
// schema yields no violations. Nested values are not inspected.
//
// Only objects and arrays have fields; array fields are their indices and
// "length". Any other data yields InvalidSchema once the schema names a field.
// A number or boolean schema names no fields; any other non-object schema is
// invalid.
func Validate(data jsonvalue.Value, schemaText string) []string {
	if schemaText == "" {
		return nil
	}

	schema, err := jsonvalue.Parse(schemaText)
	if err != nil {
		return []string{InvalidSchema}
	}
	switch schema.Kind() {
	case jsonvalue.Object:
	case jsonvalue.Bool, jsonvalue.Number:
		return nil
	default:
		return []string{InvalidSchema}
	}

	fields := schema.Members()
	if len(fields) == 0 {
		return nil
	}
	if k := data.Kind(); k != jsonvalue.Object && k != jsonvalue.Array {
		return []string{InvalidSchema}
	}

	var violations []string
	for _, field := range fields {
		actual, ok := lookup(data, field.Key)
		if !ok {
			violations = append(violations, fmt.Sprintf("Missing field: %s", field.Key))
			continue
		}
		expected := expectedType(field.Value)
		if got := jsonvalue.TypeName(actual); got != expected {
			violations = append(violations, fmt.Sprintf("Field '%s' type mismatch: expected %s, got %s", field.Key, expected, got))
		}
	}
	return violations
}

// lookup resolves a top-level field of an object or array.
func lookup(data jsonvalue.Value, key string) (jsonvalue.Value, bool) {
	if data.Kind() != jsonvalue.Array {
		return data.Get(key)
	}
	items := data.Items()
	if key == "length" {
		return jsonvalue.NumberValue(float64(len(items))), true
	}
	idx, err := strconv.Atoi(key)
	if err != nil || idx < 0 || idx >= len(items) || strconv.Itoa(idx) != key {
		return jsonvalue.Value{}, false
	}
	return items[idx], true
}

// expectedType renders a type-map entry. Entries that are not strings can
// never match a type name and are shown as their JSON text.
func expectedType(v jsonvalue.Value) string {
	if s, ok := v.Str(); ok {
		return s
	}
	return v.String()
}

// ValidateJSONSchema checks data against a JSON Schema document. An empty
// document yields no violations; a document that fails to compile yields
// InvalidSchema.
func ValidateJSONSchema(data jsonvalue.Value, schemaDoc string) []string {
	if strings.TrimSpace(schemaDoc) == "" {
		return nil
	}

	schema, err := compileSchema(schemaDoc)
	if err != nil {
		return []string{InvalidSchema}
	}

	err = schema.Validate(data.Interface())
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	var violations []string
	collectCauses(verr, &violations)
	return violations
}

func compileSchema(doc string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("response.json", strings.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return compiler.Compile("response.json")
}

func collectCauses(err *jsonschema.ValidationError, out *[]string) {
	if len(err.Causes) == 0 {
		field := strings.ReplaceAll(strings.TrimPrefix(err.InstanceLocation, "/"), "/", ".")
		if field == "" {
			*out = append(*out, err.Message)
			return
		}
		*out = append(*out, fmt.Sprintf("%s: %s", field, err.Message))
		return
	}
	for _, cause := range err.Causes {
		collectCauses(cause, out)
	}
}

// Check runs both validators configured on an endpoint against data. parsed
// reports whether the body was JSON; raw text is never handed to the JSON
// Schema validator.
func Check(data jsonvalue.Value, parsed bool, typeMap, responseSchema string) []string {
	violations := Validate(data, typeMap)
	if !parsed {
		if strings.TrimSpace(responseSchema) != "" {
			violations = append(violations, NotJSON)
		}
		return violations
	}
	return append(violations, ValidateJSONSchema(data, responseSchema)...)
}
