// Package schema validates the property maps of node definitions.
//
// A Schema maps property names to types. Built-in types cover strings,
// containers (slices and string-keyed maps), functions and optional
// properties. Node catalogues add their own types through Custom.
//
//	shape := schema.Schema{
//	    "value": schema.Any(),
//	    "path":  schema.Slice(schema.String()),
//	    "label": schema.Optional(schema.String()),
//	}
//
//	if err := schema.Validate(shape, props); err != nil {
//	    // err is an *AggregateError listing every failing property
//	}
//
// Validation is strict: undeclared properties are rejected and missing
// properties are rejected unless their type is Optional (or Any).
//
// This package has no dependencies beyond the Go standard library.
package schema
