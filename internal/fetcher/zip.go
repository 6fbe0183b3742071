package fetcher

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/korean"
)

// ZIPLimits bounds what ReadZIP will inflate.
type ZIPLimits struct {
	MaxEntries    int   // default 50
	MaxEntryBytes int64 // default 20 MiB
	MaxTotalBytes int64 // default 100 MiB
}

// ZIPEntry is one regular file from an archive.
type ZIPEntry struct {
	Name string
	Data []byte
}

func (l ZIPLimits) withDefaults() ZIPLimits {
	if l.MaxEntries == 0 {
		l.MaxEntries = 50
	}
	if l.MaxEntryBytes == 0 {
		l.MaxEntryBytes = 20 << 20
	}
	if l.MaxTotalBytes == 0 {
		l.MaxTotalBytes = 100 << 20
	}
	return l
}

// ReadZIP inflates the regular files of an in-memory archive. Entries with
// absolute or parent-relative paths are rejected, and entries larger than
// the per-entry limit are skipped. Names written by Korean Windows tools
// are stored in CP949; names that are not valid UTF-8 are decoded as such.
func ReadZIP(data []byte, limits ZIPLimits) ([]ZIPEntry, error) {
	limits = limits.withDefaults()

	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}

	var (
		entries []ZIPEntry
		total   int64
	)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := entryName(f)
		if !safeEntryName(name) {
			return entries, eris.Errorf("zip: illegal path %q (zip slip attempt)", name)
		}
		if len(entries) >= limits.MaxEntries {
			break
		}
		if int64(f.UncompressedSize64) > limits.MaxEntryBytes {
			continue
		}

		body, err := readZIPEntry(f, limits.MaxEntryBytes)
		if err != nil {
			if eris.Is(err, ErrTooLarge) {
				continue
			}
			return entries, err
		}
		total += int64(len(body))
		if total > limits.MaxTotalBytes {
			return entries, eris.Wrap(ErrTooLarge, "zip: archive exceeds total size limit")
		}
		entries = append(entries, ZIPEntry{Name: name, Data: body})
	}

	return entries, nil
}

func readZIPEntry(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	body, err := ReadLimited(rc, limit)
	if err != nil {
		if err == ErrTooLarge {
			return nil, err
		}
		return nil, eris.Wrapf(err, "zip: read entry %q", f.Name)
	}
	return body, nil
}

func entryName(f *zip.File) string {
	if !utf8.ValidString(f.Name) {
		if decoded, err := io.ReadAll(korean.EUCKR.NewDecoder().Reader(strings.NewReader(f.Name))); err == nil {
			return string(decoded)
		}
	}
	return f.Name
}

func safeEntryName(name string) bool {
	name = strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(name, "/") {
		return false
	}
	clean := path.Clean(name)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}
