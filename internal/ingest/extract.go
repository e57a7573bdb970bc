package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultOCRThreshold is the direct-text length below which a page is
	// treated as a scan.
	DefaultOCRThreshold = 100
	// DefaultOCRDPI is the resolution pages are rendered at for recognition.
	DefaultOCRDPI = 300
)

// ErrOCRUnavailable means pages that look scanned were kept as direct text
// because no recognizer is configured.
var ErrOCRUnavailable = errors.New("text recognition unavailable")

// Document is an opened source document addressed by zero-based page index.
type Document interface {
	NumPages() int
	PageText(page int) (string, error)
	RenderPage(page int, dpi float64) ([]byte, error)
	Close() error
}

// Opener opens the document at path.
type Opener func(path string) (Document, error)

// Recognizer turns a rendered page image into text.
type Recognizer interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// Extractor pulls text out of documents, falling back to text recognition
// for pages that look scanned.
type Extractor struct {
	open       Opener
	recognizer Recognizer
	threshold  int
	dpi        float64
	log        *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithRecognizer enables the text-recognition fallback.
func WithRecognizer(r Recognizer) ExtractorOption {
	return func(e *Extractor) { e.recognizer = r }
}

// WithOCRThreshold sets the direct-text length under which recognition runs.
func WithOCRThreshold(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.threshold = n
		}
	}
}

// WithOCRDPI sets the render resolution used for recognition.
func WithOCRDPI(dpi float64) ExtractorOption {
	return func(e *Extractor) {
		if dpi > 0 {
			e.dpi = dpi
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ExtractorOption {
	return func(e *Extractor) { e.log = l }
}

// NewExtractor creates an Extractor. A nil opener opens PDFs from disk.
func NewExtractor(open Opener, opts ...ExtractorOption) *Extractor {
	if open == nil {
		open = OpenPDF
	}
	e := &Extractor{
		open:      open,
		threshold: DefaultOCRThreshold,
		dpi:       DefaultOCRDPI,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the normalized text of the document at path. A page that
// fails to extract contributes no text. When scanned-looking pages could not
// be recognized for lack of a recognizer, the text is still returned along
// with an error wrapping ErrOCRUnavailable.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	doc, err := e.open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open document %s: %w", path, err)
	}
	defer doc.Close()

	n := doc.NumPages()
	e.log.Info("Extracting document", "path", path, "pages", n)

	var (
		sb      strings.Builder
		skipped int
	)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, scanned := e.page(ctx, doc, i)
		if scanned {
			skipped++
		}
		sb.WriteString(text)
		sb.WriteString(paragraphBreak)
	}

	text := Normalize(sb.String())
	e.log.Info("Extraction complete", "path", path, "characters", utf8.RuneCountInString(text))
	if skipped > 0 {
		e.log.Warn("Scanned pages were not recognized: no recognizer configured", "path", path, "pages", skipped)
		return text, fmt.Errorf("%w: %d of %d pages of %s look scanned", ErrOCRUnavailable, skipped, n, path)
	}
	return text, nil
}

// page returns the text of page i. scanned reports a short page left
// unrecognized because no recognizer is configured.
func (e *Extractor) page(ctx context.Context, doc Document, i int) (text string, scanned bool) {
	text, err := doc.PageText(i)
	if err != nil {
		e.log.Warn("Failed to extract page text", "page", i+1, "error", err)
		text = ""
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) >= e.threshold {
		return text, false
	}
	if e.recognizer == nil {
		e.log.Debug("Page looks scanned but no recognizer is configured", "page", i+1)
		return text, true
	}

	e.log.Info("Page seems to be a scan, running OCR", "page", i+1)
	img, err := doc.RenderPage(i, e.dpi)
	if err != nil {
		e.log.Warn("Failed to render page", "page", i+1, "error", err)
		return "", false
	}
	recognized, err := e.recognizer.Recognize(ctx, img)
	if err != nil {
		e.log.Warn("OCR failed", "page", i+1, "error", err)
		return "", false
	}
	return recognized, false
}
