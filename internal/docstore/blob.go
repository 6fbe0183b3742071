package docstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/grant-cli/internal/model"
)

// BlobPath resolves a store-relative blob path such as
// "attachments/<slug>/<file>" to an absolute file path.
func (s *Store) BlobPath(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" || strings.HasPrefix(rel, "/") || strings.Contains(rel, "\\") {
		return "", model.Invalidf("docstore: invalid blob path %q", rel)
	}
	parts := strings.Split(rel, "/")
	if len(parts) < 2 {
		return "", model.Invalidf("docstore: blob path %q has no collection", rel)
	}
	if err := ValidateCollection(parts[0]); err != nil {
		return "", err
	}
	for _, p := range parts[1:] {
		if err := ValidateSlug(p); err != nil {
			return "", model.Invalidf("docstore: invalid blob path %q", rel)
		}
	}
	return filepath.Join(append([]string{s.root}, parts...)...), nil
}

// WriteBlob atomically stores binary data at a store-relative path.
func (s *Store) WriteBlob(ctx context.Context, rel string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.BlobPath(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), dirPerm); err != nil {
		return eris.Wrapf(err, "docstore: create blob dir for %s", rel)
	}
	return eris.Wrapf(writeAtomic(p, data), "docstore: write blob %s", rel)
}

// ReadBlob returns the contents of a stored blob.
func (s *Store) ReadBlob(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.BlobPath(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.NotFoundf("docstore: blob %s", rel)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "docstore: read blob %s", rel)
	}
	return data, nil
}

// BlobExists reports whether a blob is present.
func (s *Store) BlobExists(ctx context.Context, rel string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := s.BlobPath(rel)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, eris.Wrapf(err, "docstore: stat blob %s", rel)
	}
}
