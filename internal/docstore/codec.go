package docstore

import (
	"encoding/json"
	"fmt"
)

// toFields converts doc to its JSON field map with "id" forced to id.
func toFields[T any](id string, doc T) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("document is not an object: %w", err)
	}
	fields["id"] = id
	return fields, nil
}

// fromFields decodes a field map back into T.
func fromFields[T any](fields map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(fields)
	if err != nil {
		return out, fmt.Errorf("marshal fields: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("unmarshal document: %w", err)
	}
	return out, nil
}

// normalize gives v the shape it has after a JSON round trip, so that
// time.Time, typed strings and ints compare equal to stored values.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return out, nil
}
