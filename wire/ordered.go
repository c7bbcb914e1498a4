package wire

import (
	"bytes"
	"encoding/json"
)

// orderedFields is a JSON object that marshals its keys in insertion order
// instead of the alphabetical order encoding/json imposes on map[string]any.
// The property-order invariant (§3: alphabetical within a class, base before
// derived) is enforced by the caller supplying fields in metadata order —
// this type only guarantees that order survives marshaling.
type orderedFields struct {
	keys []string
	vals []any
}

func newOrderedFields(n int) *orderedFields {
	return &orderedFields{keys: make([]string, 0, n), vals: make([]any, 0, n)}
}

func (o *orderedFields) set(key string, val any) {
	o.keys = append(o.keys, key)
	o.vals = append(o.vals, val)
}

func (o *orderedFields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valJSON, err := json.Marshal(o.vals[i])
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
