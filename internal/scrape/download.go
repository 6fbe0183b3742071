package scrape

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/korean"

	"github.com/sells-group/grant-cli/internal/fetcher"
	"github.com/sells-group/grant-cli/internal/model"
)

// Downloader fetches attachment binaries. The fetcher's body limit bounds
// the size of a single file.
type Downloader struct {
	fetcher fetcher.Fetcher
}

// NewDownloader creates a Downloader.
func NewDownloader(f fetcher.Fetcher) *Downloader {
	return &Downloader{fetcher: f}
}

// Download fetches rawURL. The file name comes from Content-Disposition
// when present and from the final URL path otherwise.
func (d *Downloader) Download(ctx context.Context, rawURL string) (*model.Download, error) {
	resp, err := d.fetcher.Get(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: download")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("scrape: download status %d from %s", resp.StatusCode, rawURL)
	}

	contentType, _, _ := mime.ParseMediaType(resp.ContentType())
	if contentType == "text/html" {
		// Portals answer expired download links with an HTML error page.
		return nil, eris.Errorf("scrape: %s returned an html page, not a file", rawURL)
	}

	name := DispositionFileName(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = urlFileName(resp.URL)
	}

	return &model.Download{
		URL:         rawURL,
		FileName:    name,
		ContentType: contentType,
		Data:        resp.Body,
	}, nil
}

// DispositionFileName extracts the file name from a Content-Disposition
// header. Besides RFC 6266 it accepts the two forms Korean portals send in
// practice: a percent-encoded UTF-8 filename and raw EUC-KR bytes.
func DispositionFileName(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := params["filename"]
	if name == "" {
		return ""
	}
	if strings.Contains(name, "%") {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	if !utf8.ValidString(name) {
		if decoded, err := korean.EUCKR.NewDecoder().String(name); err == nil {
			name = decoded
		}
	}
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimSpace(path.Base(name))
}

func urlFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		return ""
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		return unescaped
	}
	return base
}
