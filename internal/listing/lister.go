package listing

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/grant-cli/internal/fetcher"
	"github.com/sells-group/grant-cli/internal/model"
)

const defaultConcurrency = 4

// Lister fetches every configured source concurrently. It satisfies the
// pipeline's listing collaborator.
type Lister struct {
	sources     []SourceConfig
	fetch       fetcher.Fetcher
	concurrency int
}

// New validates sources and builds a Lister.
func New(sources []SourceConfig, f fetcher.Fetcher) (*Lister, error) {
	if len(sources) == 0 {
		return nil, eris.New("listing: no sources configured")
	}
	for _, s := range sources {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return &Lister{sources: sources, fetch: f, concurrency: defaultConcurrency}, nil
}

type sourceResult struct {
	candidates []model.Candidate
	err        error
}

// List returns the candidates of all sources in source order. A failing
// source is logged and skipped; List fails only when every source fails,
// since an empty listing would make the run meaningless.
func (l *Lister) List(ctx context.Context) ([]model.Candidate, error) {
	results := make([]sourceResult, len(l.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, src := range l.sources {
		g.Go(func() error {
			cands, err := l.listSource(gctx, src)
			results[i] = sourceResult{candidates: cands, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "listing: canceled")
	}

	var (
		out    []model.Candidate
		failed int
		errs   []string
	)
	seen := make(map[string]bool)
	for i, r := range results {
		src := l.sources[i]
		if r.err != nil {
			failed++
			errs = append(errs, r.err.Error())
			zap.L().Warn("listing: source failed",
				zap.String("source", src.Name),
				zap.Error(r.err),
			)
			continue
		}
		for _, c := range r.candidates {
			key := candidateKey(c)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}
		zap.L().Info("listing: source fetched",
			zap.String("source", src.Name),
			zap.Int("candidates", len(r.candidates)),
		)
	}

	if failed == len(l.sources) {
		return nil, eris.Errorf("listing: all %d sources failed: %s", failed, strings.Join(errs, "; "))
	}
	return out, nil
}

func candidateKey(c model.Candidate) string {
	switch {
	case c.SourceID != "":
		return c.Source + "\x00id\x00" + c.SourceID
	case c.DetailURL != "":
		return c.Source + "\x00url\x00" + c.DetailURL
	default:
		return c.Source + "\x00name\x00" + c.Name
	}
}

// listSource reads every page of one source. Paging stops early at the
// first page that yields no records.
func (l *Lister) listSource(ctx context.Context, src SourceConfig) ([]model.Candidate, error) {
	fields := src.fieldMap()
	pages := 1
	if strings.Contains(src.URL, PagePlaceholder) {
		pages = src.Pages
	}

	var out []model.Candidate
	for page := 1; page <= pages; page++ {
		target := strings.ReplaceAll(src.URL, PagePlaceholder, strconv.Itoa(page))
		body, base, err := l.load(ctx, target)
		if err != nil {
			return nil, eris.Wrapf(err, "listing: source %q page %d", src.Name, page)
		}
		records, err := decodeRecords(ctx, src, body, base)
		if err != nil {
			return nil, eris.Wrapf(err, "listing: source %q page %d", src.Name, page)
		}
		if len(records) == 0 {
			break
		}
		for _, rec := range records {
			if c, ok := toCandidate(src.Name, fields, rec); ok {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

// load reads an http(s) URL through the fetcher or a local file.
func (l *Lister) load(ctx context.Context, target string) ([]byte, *url.URL, error) {
	u, err := url.Parse(target)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if l.fetch == nil {
			return nil, nil, eris.New("listing: no http fetcher configured")
		}
		resp, err := l.fetch.Get(ctx, target)
		if err != nil {
			return nil, nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, nil, eris.Errorf("listing: status %d from %s", resp.StatusCode, target)
		}
		base, _ := url.Parse(resp.URL)
		return resp.Body, base, nil
	}

	path := strings.TrimPrefix(target, "file://")
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "listing: read %s", path)
	}
	return body, nil, nil
}
