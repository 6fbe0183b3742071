// Package docstore persists documents as markdown files with YAML front matter,
// one directory per collection and one file per slug.
package docstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/model"
)

const (
	fileExt      = ".md"
	maxSlugBytes = 240
	dirPerm      = 0o755
	filePerm     = 0o644
)

var collectionPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// Config configures a Store.
type Config struct {
	// Root is the directory holding one subdirectory per collection.
	Root string
}

// Document is a single stored record.
type Document struct {
	Collection string
	Slug       string
	Meta       map[string]any
	Body       string
}

// Store is a file-backed document store. It assumes a single writer.
type Store struct {
	root string
}

// New returns a Store rooted at cfg.Root, creating the directory if needed.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, model.Invalidf("docstore: root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, eris.Wrap(err, "docstore: resolve root")
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, eris.Wrap(err, "docstore: create root")
	}
	return &Store{root: root}, nil
}

// Root returns the absolute store directory.
func (s *Store) Root() string { return s.root }

// Write creates or replaces a document atomically.
func (s *Store) Write(ctx context.Context, collection, slug string, meta map[string]any, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.docPath(collection, slug)
	if err != nil {
		return err
	}
	data, err := encode(meta, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return eris.Wrapf(err, "docstore: create collection %s", collection)
	}
	if err := writeAtomic(path, data); err != nil {
		return eris.Wrapf(err, "docstore: write %s/%s", collection, slug)
	}
	return nil
}

// Read returns a document or an error wrapping model.ErrNotFound.
func (s *Store) Read(ctx context.Context, collection, slug string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.docPath(collection, slug)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.NotFoundf("docstore: %s/%s", collection, slug)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "docstore: read %s/%s", collection, slug)
	}
	meta, body, err := decode(data)
	if err != nil {
		return nil, eris.Wrapf(err, "docstore: decode %s/%s", collection, slug)
	}
	return &Document{Collection: collection, Slug: slug, Meta: meta, Body: body}, nil
}

// Exists reports whether a document is present.
func (s *Store) Exists(ctx context.Context, collection, slug string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := s.docPath(collection, slug)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, eris.Wrapf(err, "docstore: stat %s/%s", collection, slug)
	}
}

// List returns every document in a collection sorted by slug. A missing
// collection yields an empty list. Files that fail to parse are skipped.
func (s *Store) List(ctx context.Context, collection string) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, collection)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "docstore: list %s", collection)
	}

	docs := make([]*Document, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slug := strings.TrimSuffix(name, fileExt)
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, eris.Wrapf(err, "docstore: read %s/%s", collection, slug)
		}
		meta, body, err := decode(data)
		if err != nil {
			zap.L().Warn("docstore: skipping unreadable document",
				zap.String("collection", collection),
				zap.String("slug", slug),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, &Document{Collection: collection, Slug: slug, Meta: meta, Body: body})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Slug < docs[j].Slug })
	return docs, nil
}

// Delete physically removes a document.
func (s *Store) Delete(ctx context.Context, collection, slug string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.docPath(collection, slug)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.NotFoundf("docstore: %s/%s", collection, slug)
	}
	return eris.Wrapf(err, "docstore: delete %s/%s", collection, slug)
}

func (s *Store) docPath(collection, slug string) (string, error) {
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}
	if err := ValidateSlug(slug); err != nil {
		return "", err
	}
	return filepath.Join(s.root, collection, slug+fileExt), nil
}

// ValidateCollection rejects collection names that are not lower-case identifiers.
func ValidateCollection(collection string) error {
	if !collectionPattern.MatchString(collection) {
		return model.Invalidf("docstore: invalid collection %q", collection)
	}
	return nil
}

// ValidateSlug rejects slugs that could escape the collection directory or
// cannot be stored as a file name.
func ValidateSlug(slug string) error {
	switch {
	case slug == "":
		return model.Invalidf("docstore: empty slug")
	case len(slug) > maxSlugBytes:
		return model.Invalidf("docstore: slug too long (%d bytes)", len(slug))
	case !utf8.ValidString(slug):
		return model.Invalidf("docstore: slug is not valid UTF-8")
	case strings.HasPrefix(slug, "."):
		return model.Invalidf("docstore: invalid slug %q", slug)
	}
	for _, r := range slug {
		if r == '/' || r == '\\' || r == ':' || unicode.IsControl(r) || unicode.IsSpace(r) {
			return model.Invalidf("docstore: invalid slug %q", slug)
		}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
