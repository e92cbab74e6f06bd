package stac

import (
	"bytes"
	"encoding/json"
)

// marshal encodes v like json.Marshal without escaping HTML characters.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// foreignMembers decodes every top-level member of data whose key is not in
// known. Members that fail to decode are skipped.
func foreignMembers(data []byte, known map[string]bool) (map[string]any, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	for key, val := range raw {
		if known[key] {
			continue
		}
		var decoded any
		if err := json.Unmarshal(val, &decoded); err != nil {
			continue
		}
		fields[key] = decoded
	}
	return fields, nil
}

// mergeForeignMembers encodes v and adds the extra members to the resulting
// JSON object. Extra members never replace a known field.
func mergeForeignMembers(v any, extra map[string]any) ([]byte, error) {
	data, err := marshal(v)
	if err != nil {
		return nil, err
	}

	if len(extra) == 0 {
		return data, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}

	for key, val := range extra {
		if _, exists := obj[key]; exists {
			continue
		}
		encoded, err := marshal(val)
		if err != nil {
			return nil, err
		}
		obj[key] = encoded
	}

	return marshal(obj)
}
