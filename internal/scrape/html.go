package scrape

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/sells-group/grant-cli/internal/fetcher"
	"github.com/sells-group/grant-cli/internal/model"
)

const (
	defaultTimeout  = 20 * time.Second
	defaultMaxRunes = 50000
)

// noise is removed before text extraction.
const noise = "script, style, noscript, iframe, nav, header, footer, svg"

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "li": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "tr": true, "ul": true,
}

// HTTPOptions configures the HTTPScraper.
type HTTPOptions struct {
	Timeout  time.Duration // per page, default 20s
	MaxRunes int           // text kept per page, default 50000
}

// HTTPScraper fetches HTML through a Fetcher, decodes legacy charsets
// (EUC-KR is still common on public portals) and extracts readable text
// and links with goquery.
type HTTPScraper struct {
	fetcher fetcher.Fetcher
	opts    HTTPOptions
}

// NewHTTPScraper creates an HTTPScraper.
func NewHTTPScraper(f fetcher.Fetcher, opts HTTPOptions) *HTTPScraper {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRunes <= 0 {
		opts.MaxRunes = defaultMaxRunes
	}
	return &HTTPScraper{fetcher: f, opts: opts}
}

// Name implements Scraper.
func (h *HTTPScraper) Name() string { return "http" }

// Scrape fetches a URL, detects blocks and extracts the page.
func (h *HTTPScraper) Scrape(ctx context.Context, targetURL string) (*model.CrawledPage, error) {
	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()

	resp, err := h.fetcher.Get(ctx, targetURL)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: fetch")
	}

	if blocked, kind := DetectBlock(resp.StatusCode, resp.Header, resp.Body); blocked {
		return nil, eris.Wrapf(ErrBlocked, "scrape: %s (%s)", targetURL, kind)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, eris.Errorf("scrape: status %d from %s", resp.StatusCode, targetURL)
	}

	base, err := url.Parse(resp.URL)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse final url")
	}

	page, err := ParseHTML(DecodeHTML(resp.Body, resp.ContentType()), base)
	if err != nil {
		return nil, err
	}
	if page.Text == "" {
		return nil, eris.Errorf("scrape: empty page %s", targetURL)
	}
	page.URL = targetURL
	page.StatusCode = resp.StatusCode
	page.Text = truncateRunes(page.Text, h.opts.MaxRunes)
	return page, nil
}

// DecodeHTML converts body to UTF-8 using the Content-Type charset, a
// <meta charset> declaration or content sniffing, in that order.
func DecodeHTML(body []byte, contentType string) []byte {
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}

// ParseHTML extracts the title, visible text and absolute links of a UTF-8
// HTML document. Relative links are resolved against base when it is set.
func ParseHTML(body []byte, base *url.URL) (*model.CrawledPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse html")
	}

	page := &model.CrawledPage{Title: pageTitle(doc)}
	page.Links = pageLinks(doc, base)

	doc.Find(noise).Remove()
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	var b strings.Builder
	nodeText(root, &b)
	page.Text = normalizeText(b.String())
	return page, nil
}

func pageTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return collapseSpaces(t)
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		return collapseSpaces(og)
	}
	return collapseSpaces(doc.Find("h1").First().Text())
}

func pageLinks(doc *goquery.Document, base *url.URL) []model.Link {
	var links []model.Link
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		u.Fragment = ""
		abs := u.String()
		if seen[abs] {
			return
		}
		seen[abs] = true

		text := collapseSpaces(a.Text())
		if text == "" {
			text, _ = a.Attr("title")
			text = collapseSpaces(text)
		}
		links = append(links, model.Link{URL: abs, Text: text})
	})
	return links
}

// nodeText writes the text under s, breaking lines at block elements and
// separating table cells.
func nodeText(s *goquery.Selection, b *strings.Builder) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		n := c.Get(0)
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			block := blockTags[n.Data]
			if block {
				b.WriteByte('\n')
			}
			nodeText(c, b)
			switch {
			case block:
				b.WriteByte('\n')
			case n.Data == "td" || n.Data == "th":
				b.WriteByte(' ')
			}
		}
	})
}

func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = collapseSpaces(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}
