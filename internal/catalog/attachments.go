package catalog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/grant-cli/internal/model"
)

const (
	sidecarSuffix    = ".extracted.txt"
	maxFileNameBytes = 120
)

// AttachmentPath returns the store-relative path of an attachment file.
func AttachmentPath(slug, fileName string) string {
	return path.Join(model.CollectionAttachments, slug, SanitizeFileName(fileName))
}

// SidecarPath returns the text sidecar path for an attachment; it shares the
// attachment's base name.
func SidecarPath(attachmentPath string) string {
	return strings.TrimSuffix(attachmentPath, path.Ext(attachmentPath)) + sidecarSuffix
}

// SanitizeFileName makes a downloaded or user-supplied file name safe to store.
func SanitizeFileName(name string) string {
	name = norm.NFKC.String(strings.TrimSpace(name))
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), "._")
	if out == "" {
		out = "attachment"
	}
	if len(out) > maxFileNameBytes {
		ext := path.Ext(out)
		if len(ext) > 16 {
			ext = ""
		}
		stem := []rune(strings.TrimSuffix(out, ext))
		for len(string(stem))+len(ext) > maxFileNameBytes {
			stem = stem[:len(stem)-1]
		}
		out = string(stem) + ext
	}
	return out
}

// SaveAttachment stores an attachment binary for a program and returns its
// unanalyzed descriptor. The caller records it on the program.
func (c *Catalog) SaveAttachment(ctx context.Context, slug, fileName, sourceURL string, data []byte) (model.Attachment, error) {
	rel := AttachmentPath(slug, fileName)
	if strings.HasSuffix(rel, sidecarSuffix) {
		return model.Attachment{}, model.Invalidf("catalog: attachment name %q collides with a text sidecar", fileName)
	}
	if err := c.docs.WriteBlob(ctx, rel, data); err != nil {
		return model.Attachment{}, err
	}
	return model.Attachment{
		Path:        rel,
		DisplayName: strings.TrimSpace(fileName),
		SourceURL:   sourceURL,
		ContentType: http.DetectContentType(data),
	}, nil
}

// ReadAttachment returns the stored binary of an attachment.
func (c *Catalog) ReadAttachment(ctx context.Context, a model.Attachment) ([]byte, error) {
	return c.docs.ReadBlob(ctx, a.Path)
}

// AttachmentText returns the extracted text sidecar of an attachment, or ""
// when it has not been extracted.
func (c *Catalog) AttachmentText(ctx context.Context, a model.Attachment) (string, error) {
	data, err := c.docs.ReadBlob(ctx, SidecarPath(a.Path))
	if errors.Is(err, model.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SaveAttachmentText writes the text sidecar and marks the attachment analyzed.
// Empty text is stored too, so unsupported formats are not retried.
func (c *Catalog) SaveAttachmentText(ctx context.Context, a *model.Attachment, text string) error {
	if err := c.docs.WriteBlob(ctx, SidecarPath(a.Path), []byte(text)); err != nil {
		return err
	}
	a.Analyzed = true
	return nil
}

// AddAttachment records a on p, replacing any entry with the same path.
func AddAttachment(p *model.Program, a model.Attachment) {
	for i := range p.Attachments {
		if p.Attachments[i].Path == a.Path {
			analyzed := p.Attachments[i].Analyzed
			p.Attachments[i] = a
			p.Attachments[i].Analyzed = a.Analyzed || analyzed
			return
		}
	}
	p.Attachments = append(p.Attachments, a)
}

// HasAttachmentFrom reports whether p already holds an attachment downloaded from url.
func HasAttachmentFrom(p *model.Program, url string) bool {
	for _, a := range p.Attachments {
		if a.SourceURL == url {
			return true
		}
	}
	return false
}

func (c *Catalog) removeAttachments(slug string) error {
	dir := filepath.Join(c.docs.Root(), model.CollectionAttachments, slug)
	if err := os.RemoveAll(dir); err != nil {
		return eris.Wrapf(err, "catalog: remove attachments of %s", slug)
	}
	return nil
}
