package extract

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/rotisserie/eris"

	"github.com/sells-group/grant-cli/internal/config"
)

// PDFReader extracts the text of a PDF document.
type PDFReader interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// NewFromConfig builds an Extractor with pdftotext as the primary PDF reader
// and, for the "mistral" provider, Mistral OCR as the scanned-PDF fallback.
func NewFromConfig(cfg config.OCRConfig, mistralKey string) (*Extractor, error) {
	opts := Options{MaxRunes: cfg.MaxRunes}
	pdf := NewPdfToText(cfg.PdfToTextPath)
	switch cfg.Provider {
	case "local", "":
		return New(pdf, nil, opts), nil
	case "mistral":
		if mistralKey == "" {
			return nil, eris.New("extract: mistral provider requires mistral_api_key")
		}
		return New(pdf, NewMistralOCR(mistralKey, cfg.MistralModel), opts), nil
	default:
		return nil, eris.Errorf("extract: unknown ocr provider %q", cfg.Provider)
	}
}

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText reader. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText spools the PDF to a temp file and runs pdftotext -layout on it.
func (p *PdfToText) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	f, err := os.CreateTemp("", "grant-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "extract: create temp pdf")
	}
	defer os.Remove(f.Name()) //nolint:errcheck

	if _, err := f.Write(pdf); err != nil {
		f.Close() //nolint:errcheck
		return "", eris.Wrap(err, "extract: write temp pdf")
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrap(err, "extract: close temp pdf")
	}

	cmd := exec.CommandContext(ctx, p.binPath, "-layout", f.Name(), "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "extract: pdftotext failed: %s", stderr.String())
	}
	return stdout.String(), nil
}
