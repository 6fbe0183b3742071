package extract

import (
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/grant-cli/internal/fetcher"
)

// Office documents are zip containers of XML parts. Text lives in "t" runs
// (w:t, a:t, hp:t) and paragraphs end at "p".
var partPatterns = map[string]*regexp.Regexp{
	TypeDOCX: regexp.MustCompile(`^word/document\.xml$`),
	TypePPTX: regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`),
	TypeHWPX: regexp.MustCompile(`^Contents/section(\d+)\.xml$`),
}

func officeText(kind string, data []byte) (string, error) {
	entries, err := fetcher.ReadZIP(data, fetcher.ZIPLimits{MaxEntries: 2000})
	if err != nil {
		return "", err
	}
	re := partPatterns[kind]

	type part struct {
		order int
		data  []byte
	}
	var parts []part
	for _, e := range entries {
		m := re.FindStringSubmatch(e.Name)
		if m == nil {
			continue
		}
		order := 0
		if len(m) > 1 {
			order, _ = strconv.Atoi(m[1])
		}
		parts = append(parts, part{order: order, data: e.Data})
	}
	if len(parts) == 0 {
		return "", eris.Errorf("extract: %s has no content parts", kind)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].order < parts[j].order })

	var b strings.Builder
	for _, p := range parts {
		text, err := xmlRunText(p.data)
		if err != nil {
			return "", eris.Wrapf(err, "extract: parse %s part", kind)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// xmlRunText concatenates the character data of "t" elements, breaking lines
// at paragraph ends and keeping tabs.
func xmlRunText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	var (
		b     strings.Builder
		inRun int
		line  bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inRun++
			case "tab":
				b.WriteString("\t")
			case "br":
				b.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				if inRun > 0 {
					inRun--
				}
			case "p":
				if line {
					b.WriteString("\n")
					line = false
				}
			}
		case xml.CharData:
			if inRun > 0 && len(t) > 0 {
				b.Write(t)
				line = true
			}
		}
	}
	return b.String(), nil
}
