package fetcher

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSONItems decodes the list found by walking path through nested
// objects. Open-data gateways wrap records in envelopes such as
// response.body.items.item, and collapse a one-element list to a bare
// object, so both an array and a single object are accepted at the end of
// the path. An empty or null value yields no items.
func DecodeJSONItems[T any](r io.Reader, path ...string) ([]T, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "json: decode document")
	}

	for i, key := range path {
		if isEmptyJSON(raw) {
			return nil, nil
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, eris.Wrapf(err, "json: %q is not an object", pathString(path[:i]))
		}
		next, ok := obj[key]
		if !ok {
			return nil, eris.Errorf("json: key %q not found", pathString(path[:i+1]))
		}
		raw = next
	}

	if isEmptyJSON(raw) {
		return nil, nil
	}

	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, eris.Wrap(err, "json: decode items")
		}
		return items, nil
	}

	var item T
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, eris.Wrap(err, "json: decode item")
	}
	return []T{item}, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null")) || bytes.Equal(t, []byte(`""`))
}

func pathString(path []string) string {
	var b bytes.Buffer
	for i, p := range path {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(p)
	}
	return b.String()
}
