package schema

import "sort"

// Schema is a map of property names to their expected types.
// Example: {"value": Any(), "path": Slice(String()), "label": Optional(String())}
type Schema map[string]Type

// Validate checks if data conforms to the schema.
// Properties not declared in the schema are rejected, and missing properties
// are rejected unless their type is optional.
// Returns an error with all validation failures found, in key order.
func Validate(schema Schema, data map[string]any) error {
	if schema == nil {
		// No schema = no validation
		return nil
	}

	var errs []error

	for _, fieldName := range sortedKeys(schema) {
		fieldType := schema[fieldName]
		value, exists := data[fieldName]
		if !exists || value == nil {
			if IsOptional(fieldType) {
				continue
			}
			errs = append(errs, &ValidationError{
				Key:      fieldName,
				Reason:   "required",
				Expected: fieldType.Name(),
			})
			continue
		}

		// Validate the value against the type
		if err := fieldType.Validate(value); err != nil {
			errs = append(errs, &ValidationError{
				Key:      fieldName,
				Reason:   err.Error(),
				Expected: fieldType.Name(),
				Value:    value,
			})
		}
	}

	unknown := make([]string, 0)
	for key := range data {
		if _, ok := schema[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		errs = append(errs, &ValidationError{
			Key:    key,
			Reason: "not defined in schema",
			Value:  data[key],
		})
	}

	// If there are errors, aggregate them
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}

	return nil
}

// Describe returns the expected type name of every property, keyed by property name.
func (s Schema) Describe() map[string]string {
	out := make(map[string]string, len(s))
	for key, typ := range s {
		out[key] = typ.Name()
	}
	return out
}

func sortedKeys(s Schema) []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
