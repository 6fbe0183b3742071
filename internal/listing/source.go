// Package listing pulls grant announcements from configured sources (open
// data APIs, RSS feeds, portal board pages and spreadsheet exports) and
// normalizes them into candidates for the ingest stage.
package listing

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// Kind selects how a source's payload is decoded.
type Kind string

const (
	KindJSON Kind = "json" // object envelope or array of records
	KindXML  Kind = "xml"  // repeated record element, e.g. open-data XML
	KindRSS  Kind = "rss"  // RSS <item> elements with default field mapping
	KindCSV  Kind = "csv"
	KindXLSX Kind = "xlsx"
	KindHTML Kind = "html" // board page; records and fields are CSS selectors
)

// PagePlaceholder in a source URL is replaced by the page number.
const PagePlaceholder = "{page}"

// SourceConfig describes one listing source.
type SourceConfig struct {
	Name string `mapstructure:"name" validate:"required"`
	Kind Kind   `mapstructure:"kind" validate:"required,oneof=json xml rss csv xlsx html"`
	// URL is an http(s) URL or a local file path.
	URL string `mapstructure:"url" validate:"required"`
	// Path walks a JSON envelope (json) or names the record element (xml).
	Path []string `mapstructure:"path"`
	// Items is the CSS selector of one record on an html board page.
	Items string `mapstructure:"items" validate:"required_if=Kind html"`
	// Fields maps candidate fields to source keys: JSON keys, XML child
	// elements, spreadsheet headers or CSS selectors ("a@href" reads an
	// attribute).
	Fields  map[string]string `mapstructure:"fields"`
	Charset string            `mapstructure:"charset"`
	Sheet   string            `mapstructure:"sheet"`
	// Pages is how many pages to request when URL contains {page}.
	Pages int `mapstructure:"pages" validate:"gte=0,lte=100"`
}

var validate = validator.New()

// Validate checks a source definition.
func (s SourceConfig) Validate() error {
	if err := validate.Struct(s); err != nil {
		return eris.Wrapf(err, "listing: source %q", s.Name)
	}
	for field := range s.Fields {
		if !knownField(field) {
			return eris.Errorf("listing: source %q maps unknown field %q", s.Name, field)
		}
	}
	if s.Kind != KindRSS && s.Fields[FieldName] == "" {
		return eris.Errorf("listing: source %q has no mapping for %q", s.Name, FieldName)
	}
	if strings.Contains(s.URL, PagePlaceholder) && s.Pages == 0 {
		return eris.Errorf("listing: source %q uses %s but pages is 0", s.Name, PagePlaceholder)
	}
	return nil
}

// fieldMap returns the source's field mapping over the kind's defaults.
func (s SourceConfig) fieldMap() map[string]string {
	out := make(map[string]string, len(s.Fields)+4)
	if s.Kind == KindRSS {
		out[FieldName] = "title"
		out[FieldDetailURL] = "link"
		out[FieldDescription] = "description"
		out[FieldSourceID] = "guid"
		out[FieldSupportType] = "category"
	}
	for k, v := range s.Fields {
		out[k] = v
	}
	return out
}

func (s SourceConfig) recordElement() string {
	if len(s.Path) > 0 {
		return s.Path[len(s.Path)-1]
	}
	return "item"
}
