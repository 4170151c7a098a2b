package schema

import (
	"fmt"
	"math"

	"samplecore/pkg/domain"
)

// Validate checks the field set against the named kind schema. It verifies
// required-property presence, type conformance, enum membership, and minimum
// string lengths. Validation is all-or-nothing and has no side effects; the
// first violation found is returned as a domain.ValidationError.
func (r *Registry) Validate(kind domain.Kind, fields domain.Fields) error {
	def, ok := r.defs[kind]
	if !ok {
		return domain.ValidationError{Kind: kind, Constraint: "schema", Message: fmt.Sprintf("no schema registered for kind %q", kind)}
	}
	for _, name := range def.Required {
		if _, present := fields[name]; !present {
			return domain.ValidationError{Kind: kind, Field: name, Constraint: "required", Message: "required field is missing"}
		}
	}
	for name, value := range fields {
		prop, declared := def.Properties[name]
		if !declared {
			// Open extension attributes are allowed; only declared
			// properties carry constraints.
			continue
		}
		if err := checkProperty(kind, name, prop, value); err != nil {
			return err
		}
	}
	return nil
}

func checkProperty(kind domain.Kind, path string, prop Property, value any) error {
	switch prop.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			return typeError(kind, path, "string", value)
		}
		if prop.MinLength > 0 && len(s) < prop.MinLength {
			return domain.ValidationError{Kind: kind, Field: path, Constraint: "minLength",
				Message: fmt.Sprintf("length %d is below minimum %d", len(s), prop.MinLength)}
		}
		if len(prop.Enum) > 0 && !containsString(prop.Enum, s) {
			return domain.ValidationError{Kind: kind, Field: path, Constraint: "enum",
				Message: fmt.Sprintf("%q is not one of %v", s, prop.Enum)}
		}
	case "number":
		if _, ok := asNumber(value); !ok {
			return typeError(kind, path, "number", value)
		}
	case "integer":
		n, ok := asNumber(value)
		if !ok || n != math.Trunc(n) {
			return typeError(kind, path, "integer", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return typeError(kind, path, "boolean", value)
		}
	case "array":
		items, ok := asSlice(value)
		if !ok {
			return typeError(kind, path, "array", value)
		}
		if prop.Items != nil {
			for i, item := range items {
				if err := checkProperty(kind, fmt.Sprintf("%s[%d]", path, i), *prop.Items, item); err != nil {
					return err
				}
			}
		}
	case "object":
		entries, ok := asMap(value)
		if !ok {
			return typeError(kind, path, "object", value)
		}
		if prop.AdditionalProperties != nil {
			for key, entry := range entries {
				if err := checkProperty(kind, fmt.Sprintf("%s.%s", path, key), *prop.AdditionalProperties, entry); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func typeError(kind domain.Kind, path, want string, got any) error {
	return domain.ValidationError{Kind: kind, Field: path, Constraint: "type",
		Message: fmt.Sprintf("expected %s, got %T", want, got)}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func asNumber(v any) (float64, bool) {
	switch tv := v.(type) {
	case int:
		return float64(tv), true
	case int32:
		return float64(tv), true
	case int64:
		return float64(tv), true
	case float32:
		return float64(tv), true
	case float64:
		return tv, true
	}
	return 0, false
}

func asSlice(v any) ([]any, bool) {
	switch tv := v.(type) {
	case []any:
		return tv, true
	case []string:
		out := make([]any, len(tv))
		for i, s := range tv {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func asMap(v any) (map[string]any, bool) {
	switch tv := v.(type) {
	case map[string]any:
		return tv, true
	case domain.Fields:
		return tv, true
	case map[string]string:
		out := make(map[string]any, len(tv))
		for k, s := range tv {
			out[k] = s
		}
		return out, true
	}
	return nil, false
}
