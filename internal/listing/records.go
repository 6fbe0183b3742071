package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/grant-cli/internal/fetcher"
	"github.com/sells-group/grant-cli/internal/scrape"
)

// decodeRecords turns one payload into records according to the source kind.
// base resolves relative links on html pages.
func decodeRecords(ctx context.Context, src SourceConfig, body []byte, base *url.URL) ([]Record, error) {
	switch src.Kind {
	case KindJSON:
		return jsonRecords(body, src.Path)
	case KindXML, KindRSS:
		return xmlRecords(ctx, body, src.recordElement())
	case KindCSV:
		rows, err := fetcher.ReadCSVRecords(ctx, bytes.NewReader(body), fetcher.CSVOptions{Charset: src.Charset, LazyQuotes: true})
		return asRecords(rows), err
	case KindXLSX:
		rows, err := fetcher.ReadXLSXRecords(body, fetcher.XLSXOptions{SheetName: src.Sheet})
		return asRecords(rows), err
	case KindHTML:
		return htmlRecords(src, body, base)
	}
	return nil, eris.Errorf("listing: unknown source kind %q", src.Kind)
}

func asRecords(rows []map[string]string) []Record {
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

func jsonRecords(body []byte, path []string) ([]Record, error) {
	items, err := fetcher.DecodeJSONItems[map[string]any](bytes.NewReader(body), path...)
	if err != nil {
		return nil, eris.Wrap(err, "listing: decode json")
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		rec := make(Record, len(item))
		for k, v := range item {
			rec[k] = jsonString(v)
		}
		out = append(out, rec)
	}
	return out, nil
}

func jsonString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := jsonString(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// xmlRecord collects the text of each child element of a record. Repeated
// children are joined with newlines.
type xmlRecord Record

func (r *xmlRecord) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	rec := xmlRecord{}
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var text string
			if err := d.DecodeElement(&text, &t); err != nil {
				return err
			}
			key := t.Name.Local
			text = strings.TrimSpace(text)
			if prev, ok := rec[key]; ok && prev != "" {
				text = prev + "\n" + text
			}
			rec[key] = text
		case xml.EndElement:
			*r = rec
			return nil
		}
	}
	*r = rec
	return nil
}

func xmlRecords(ctx context.Context, body []byte, element string) ([]Record, error) {
	items, err := fetcher.CollectXML[xmlRecord](ctx, bytes.NewReader(body), element)
	if err != nil {
		return nil, eris.Wrap(err, "listing: decode xml")
	}
	out := make([]Record, len(items))
	for i, it := range items {
		out[i] = Record(it)
	}
	return out, nil
}

// htmlRecords reads a board page: each element matching src.Items is a
// record, and each field selector is evaluated inside it.
func htmlRecords(src SourceConfig, body []byte, base *url.URL) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(scrape.DecodeHTML(body, "text/html; charset="+src.Charset)))
	if err != nil {
		return nil, eris.Wrap(err, "listing: parse html")
	}

	var out []Record
	doc.Find(src.Items).Each(func(_ int, row *goquery.Selection) {
		rec := make(Record, len(src.Fields))
		for _, selector := range src.Fields {
			rec[selector] = selectValue(row, selector, base)
		}
		out = append(out, rec)
	})
	return out, nil
}

// selectValue evaluates "css" (text) or "css@attr" (attribute) against row.
// Attributes named href or src are resolved to absolute URLs.
func selectValue(row *goquery.Selection, selector string, base *url.URL) string {
	css, attr, hasAttr := strings.Cut(selector, "@")
	sel := row
	if css = strings.TrimSpace(css); css != "" {
		sel = row.Find(css).First()
	}
	if !hasAttr {
		return strings.Join(strings.Fields(sel.Text()), " ")
	}
	v, _ := sel.Attr(attr)
	v = strings.TrimSpace(v)
	if (attr == "href" || attr == "src") && v != "" && base != nil {
		if u, err := url.Parse(v); err == nil {
			v = base.ResolveReference(u).String()
		}
	}
	return v
}
