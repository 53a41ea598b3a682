// Package schema derives JSON schema objects for tool definitions from Go
// structs and validates raw tool-call arguments against them. It lives in
// internal to avoid committing to public API stability prematurely.
package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// ValidationError describes one argument that failed schema validation.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Message)
}

// FromStruct derives a JSON schema object from a struct's exported fields.
// Property names follow json tags, `description` tags become property
// descriptions, and fields that are neither omitempty nor pointers are
// required.
func FromStruct(v any) map[string]any {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	properties := make(map[string]any)
	required := make([]string, 0)

	if t != nil && t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}

			jsonTag := field.Tag.Get("json")
			if jsonTag == "-" {
				continue
			}

			name := field.Name
			if jsonTag != "" {
				if tagName := strings.Split(jsonTag, ",")[0]; tagName != "" {
					name = tagName
				}
			}

			property := map[string]any{
				"type": jsonType(field.Type),
			}
			if description := field.Tag.Get("description"); description != "" {
				property["description"] = description
			}

			properties[name] = property

			if !hasOmitEmpty(jsonTag) && field.Type.Kind() != reflect.Ptr {
				required = append(required, name)
			}
		}
	}

	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}

	return out
}

// Validate checks raw arguments against a schema produced by FromStruct:
// required properties must be present and present values must match their
// declared type. Unknown extra arguments pass through untouched.
func Validate(args map[string]any, schema map[string]any) error {
	for _, name := range requiredNames(schema) {
		if _, ok := args[name]; !ok {
			return &ValidationError{Field: name, Message: "required argument is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, value := range args {
		property, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}

		declared, _ := property["type"].(string)
		if !matchesType(value, declared) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", declared, value),
			}
		}
	}

	return nil
}

// requiredNames extracts the required property list, accepting both the
// []string shape FromStruct emits and the []any shape a JSON round trip
// produces.
func requiredNames(schema map[string]any) []string {
	switch required := schema["required"].(type) {
	case []string:
		return required
	case []any:
		names := make([]string, 0, len(required))
		for _, v := range required {
			if name, ok := v.(string); ok {
				names = append(names, name)
			}
		}
		return names
	default:
		return nil
	}
}

// jsonType maps a Go type onto its JSON schema type name.
func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "string"
	}
}

// hasOmitEmpty reports whether a json tag carries the omitempty option.
func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}

	return false
}

// matchesType reports whether a decoded JSON value satisfies the declared
// schema type. Numbers decode as float64, so integer checks accept whole
// floats.
func matchesType(value any, declared string) bool {
	if value == nil {
		return true
	}

	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return v == float64(int64(v))
		}

		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		}

		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
