package docstore

import (
	"bytes"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

const delimiter = "---"

var bom = []byte{0xEF, 0xBB, 0xBF}

// encode renders metadata as YAML front matter followed by the body.
func encode(meta map[string]any, body string) ([]byte, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	header, err := yaml.Marshal(meta)
	if err != nil {
		return nil, eris.Wrap(err, "docstore: marshal front matter")
	}

	var buf bytes.Buffer
	buf.Grow(len(header) + len(body) + 8)
	buf.WriteString(delimiter + "\n")
	buf.Write(header)
	buf.WriteString(delimiter + "\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// decode splits a file into its front matter map and body. A file without a
// leading delimiter is treated as body-only.
func decode(data []byte) (map[string]any, string, error) {
	data = bytes.TrimPrefix(data, bom)
	if bytes.Contains(data, []byte("\r\n")) {
		data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	}

	meta := map[string]any{}
	if !bytes.HasPrefix(data, []byte(delimiter+"\n")) {
		return meta, string(data), nil
	}

	rest := data[len(delimiter)+1:]
	var header, body []byte
	switch {
	case bytes.HasPrefix(rest, []byte(delimiter+"\n")):
		body = rest[len(delimiter)+1:]
	case bytes.Equal(rest, []byte(delimiter)):
	default:
		end := bytes.Index(rest, []byte("\n"+delimiter+"\n"))
		if end >= 0 {
			header = rest[:end+1]
			body = rest[end+len(delimiter)+2:]
		} else if bytes.HasSuffix(rest, []byte("\n"+delimiter)) {
			header = rest[:len(rest)-len(delimiter)]
		} else {
			return nil, "", eris.New("docstore: unterminated front matter")
		}
	}

	if len(bytes.TrimSpace(header)) > 0 {
		if err := yaml.Unmarshal(header, &meta); err != nil {
			return nil, "", eris.Wrap(err, "docstore: parse front matter")
		}
		if meta == nil {
			meta = map[string]any{}
		}
	}
	return meta, string(body), nil
}
