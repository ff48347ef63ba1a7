package schema

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the schema as property names mapped to type names, e.g.
// {"path":"[any]","value":"any"}. A nil schema encodes as null.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	for key, typ := range s {
		if typ == nil {
			return nil, fmt.Errorf("property %s: type is nil", key)
		}
	}
	return json.Marshal(s.Describe())
}
