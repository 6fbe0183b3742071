// Package extract turns attachment binaries into plain text for the
// enrichment stage. Formats it cannot read (images, legacy HWP, unknown
// binaries) yield an empty text, never an error.
package extract

import (
	"bytes"
	"context"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/korean"

	"github.com/sells-group/grant-cli/internal/fetcher"
	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/scrape"
)

// Content types reported in model.Extraction.Type.
const (
	TypePDF         = "pdf"
	TypeXLSX        = "xlsx"
	TypeDOCX        = "docx"
	TypePPTX        = "pptx"
	TypeHWPX        = "hwpx"
	TypeHWP         = "hwp"
	TypeHTML        = "html"
	TypeText        = "text"
	TypeZIP         = "zip"
	TypeImage       = "image"
	TypeUnsupported = "unsupported"
)

var extTypes = map[string]string{
	".pdf":  TypePDF,
	".xlsx": TypeXLSX,
	".docx": TypeDOCX,
	".pptx": TypePPTX,
	".hwpx": TypeHWPX,
	".hwp":  TypeHWP,
	".html": TypeHTML,
	".htm":  TypeHTML,
	".txt":  TypeText,
	".csv":  TypeText,
	".md":   TypeText,
	".zip":  TypeZIP,
	".png":  TypeImage,
	".jpg":  TypeImage,
	".jpeg": TypeImage,
	".gif":  TypeImage,
	".bmp":  TypeImage,
	".webp": TypeImage,
}

// Options configures an Extractor.
type Options struct {
	// MaxRunes caps the text kept per file. Zero keeps everything.
	MaxRunes int
	// ZIP bounds archive inflation.
	ZIP fetcher.ZIPLimits
}

// Extractor dispatches on file type. It satisfies the pipeline's content
// extractor collaborator.
type Extractor struct {
	pdf  PDFReader
	ocr  PDFReader
	opts Options
}

// New creates an Extractor. ocr is an optional fallback for PDFs whose text
// layer is empty (scanned documents); it may be nil.
func New(pdf, ocr PDFReader, opts Options) *Extractor {
	return &Extractor{pdf: pdf, ocr: ocr, opts: opts}
}

// Extract returns the text of one file.
func (e *Extractor) Extract(ctx context.Context, fileName string, data []byte) (model.Extraction, error) {
	return e.extract(ctx, fileName, data, 0)
}

func (e *Extractor) extract(ctx context.Context, fileName string, data []byte, depth int) (model.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return model.Extraction{}, err
	}

	kind := DetectType(fileName, data)
	var (
		text string
		err  error
	)
	switch kind {
	case TypePDF:
		text, err = e.pdfText(ctx, fileName, data)
	case TypeXLSX:
		text, err = xlsxText(data)
	case TypeDOCX, TypePPTX, TypeHWPX:
		text, err = officeText(kind, data)
	case TypeHTML:
		var page *model.CrawledPage
		page, err = scrape.ParseHTML(scrape.DecodeHTML(data, ""), nil)
		if err == nil {
			text = page.Text
		}
	case TypeText:
		text = decodeText(data)
	case TypeZIP:
		if depth > 0 {
			return model.Extraction{Type: kind}, nil
		}
		text, err = e.zipText(ctx, data, depth)
	}
	if err != nil {
		return model.Extraction{Type: kind}, err
	}

	return model.Extraction{Type: kind, Text: e.bound(strings.TrimSpace(text))}, nil
}

// DetectType classifies a file by extension, falling back to its leading
// bytes when the extension is missing or unknown.
func DetectType(fileName string, data []byte) string {
	if t, ok := extTypes[strings.ToLower(path.Ext(fileName))]; ok {
		return t
	}
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return TypePDF
	case bytes.HasPrefix(data, []byte{0xD0, 0xCF, 0x11, 0xE0}):
		// OLE compound file: legacy HWP, DOC or XLS, none of which we read.
		return TypeHWP
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return TypeZIP
	}
	sniffed := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(sniffed, "image/"):
		return TypeImage
	case strings.HasPrefix(sniffed, "text/html"):
		return TypeHTML
	case strings.HasPrefix(sniffed, "text/"):
		return TypeText
	}
	return TypeUnsupported
}

func (e *Extractor) pdfText(ctx context.Context, fileName string, data []byte) (string, error) {
	var text string
	if e.pdf != nil {
		var err error
		if text, err = e.pdf.ExtractText(ctx, data); err != nil {
			return "", err
		}
	}
	if strings.TrimSpace(text) != "" || e.ocr == nil {
		return text, nil
	}
	zap.L().Debug("extract: pdf has no text layer, using ocr", zap.String("file", fileName))
	return e.ocr.ExtractText(ctx, data)
}

func xlsxText(data []byte) (string, error) {
	sheets, err := fetcher.ReadXLSXSheets(data)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, s := range sheets {
		if len(s.Rows) == 0 {
			continue
		}
		b.WriteString("## " + s.Name + "\n")
		for _, row := range s.Rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if line != "" {
				b.WriteString(line + "\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (e *Extractor) zipText(ctx context.Context, data []byte, depth int) (string, error) {
	entries, err := fetcher.ReadZIP(data, e.opts.ZIP)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, entry := range entries {
		ext, err := e.extract(ctx, entry.Name, entry.Data, depth+1)
		if err != nil {
			zap.L().Debug("extract: zip entry failed", zap.String("entry", entry.Name), zap.Error(err))
			continue
		}
		if ext.Text == "" {
			continue
		}
		b.WriteString("#### " + entry.Name + "\n\n" + ext.Text + "\n\n")
	}
	return b.String(), nil
}

// decodeText returns data as UTF-8, treating invalid UTF-8 as EUC-KR.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := korean.EUCKR.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

func (e *Extractor) bound(s string) string {
	if e.opts.MaxRunes <= 0 || utf8.RuneCountInString(s) <= e.opts.MaxRunes {
		return s
	}
	return string([]rune(s)[:e.opts.MaxRunes])
}
