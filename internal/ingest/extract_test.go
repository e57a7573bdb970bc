package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type fakePage struct {
	text    string
	textErr error
	image   []byte
}

type fakeDocument struct {
	pages    []fakePage
	rendered []int
	closed   bool
}

func (d *fakeDocument) NumPages() int { return len(d.pages) }

func (d *fakeDocument) PageText(page int) (string, error) {
	return d.pages[page].text, d.pages[page].textErr
}

func (d *fakeDocument) RenderPage(page int, dpi float64) ([]byte, error) {
	d.rendered = append(d.rendered, page)
	if d.pages[page].image == nil {
		return nil, errors.New("render failed")
	}
	return d.pages[page].image, nil
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}

type fakeRecognizer struct {
	results map[string]string
	calls   int
}

func (r *fakeRecognizer) Recognize(ctx context.Context, png []byte) (string, error) {
	r.calls++
	text, ok := r.results[string(png)]
	if !ok {
		return "", errors.New("unreadable image")
	}
	return text, nil
}

func openerFor(doc *fakeDocument) Opener {
	return func(path string) (Document, error) { return doc, nil }
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractUsesDirectTextForTextPages(t *testing.T) {
	body := strings.Repeat("Virtual memory maps pages to frames. ", 5)
	doc := &fakeDocument{pages: []fakePage{{text: body}, {text: body}}}
	rec := &fakeRecognizer{}

	text, err := NewExtractor(openerFor(doc), WithRecognizer(rec), WithLogger(quietLogger())).
		Extract(context.Background(), "notes.pdf")
	if err != nil {
		t.Fatalf("Extract() returned an unexpected error: %v", err)
	}
	if rec.calls != 0 {
		t.Errorf("Expected no OCR calls, got %d", rec.calls)
	}
	if strings.Count(text, "\n\n") != 1 {
		t.Errorf("Expected pages separated by one paragraph break, got %q", text)
	}
	if !doc.closed {
		t.Error("Expected document to be closed")
	}
}

func TestExtractFallsBackToOCR(t *testing.T) {
	scanned := strings.Repeat("Recognized words from a scanned page. ", 4)
	doc := &fakeDocument{pages: []fakePage{
		{text: "  ", image: []byte("page-1")},
		{text: "Fig. 2", image: []byte("page-2")},
	}}
	rec := &fakeRecognizer{results: map[string]string{"page-1": scanned}}

	text, err := NewExtractor(openerFor(doc), WithRecognizer(rec), WithLogger(quietLogger())).
		Extract(context.Background(), "scan.pdf")
	if err != nil {
		t.Fatalf("Extract() returned an unexpected error: %v", err)
	}
	if rec.calls != 2 {
		t.Errorf("Expected 2 OCR calls, got %d", rec.calls)
	}
	if !strings.Contains(text, "Recognized words") {
		t.Errorf("Expected OCR text in output, got %q", text)
	}
	// A failed recognition degrades the page to no text at all.
	if strings.Contains(text, "Fig. 2") {
		t.Errorf("Expected failed OCR page to be empty, got %q", text)
	}
}

func TestExtractPageFailuresDegrade(t *testing.T) {
	good := strings.Repeat("This page extracted fine. ", 6)
	doc := &fakeDocument{pages: []fakePage{
		{textErr: errors.New("bad content stream")},
		{text: good},
	}}

	text, err := NewExtractor(openerFor(doc), WithRecognizer(&fakeRecognizer{}), WithLogger(quietLogger())).
		Extract(context.Background(), "mixed.pdf")
	if err != nil {
		t.Fatalf("Extract() returned an unexpected error: %v", err)
	}
	if text != strings.TrimSpace(good) {
		t.Errorf("Expected only the good page, got %q", text)
	}
}

func TestExtractWithoutRecognizerKeepsShortText(t *testing.T) {
	body := strings.Repeat("Virtual memory maps pages to frames. ", 5)
	doc := &fakeDocument{pages: []fakePage{{text: "Short caption"}, {text: body}}}

	text, err := NewExtractor(openerFor(doc), WithLogger(quietLogger())).
		Extract(context.Background(), "short.pdf")
	if !errors.Is(err, ErrOCRUnavailable) {
		t.Fatalf("Expected ErrOCRUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "1 of 2 pages") {
		t.Errorf("Expected the skipped page count in %q", err)
	}
	if !strings.HasPrefix(text, "Short caption\n\n") {
		t.Errorf("Expected direct text to be kept, got %q", text)
	}
	if len(doc.rendered) != 0 {
		t.Errorf("Expected no page renders, got %v", doc.rendered)
	}
}

func TestExtractOpenError(t *testing.T) {
	open := func(path string) (Document, error) { return nil, errors.New("not a pdf") }

	_, err := NewExtractor(open, WithLogger(quietLogger())).Extract(context.Background(), "x.txt")
	if err == nil {
		t.Fatal("Expected an error for an unreadable document")
	}
}

func TestExtractThresholdOption(t *testing.T) {
	doc := &fakeDocument{pages: []fakePage{{text: "twelve chars", image: []byte("p")}}}
	rec := &fakeRecognizer{results: map[string]string{"p": "ocr"}}

	text, err := NewExtractor(openerFor(doc), WithRecognizer(rec), WithOCRThreshold(5), WithLogger(quietLogger())).
		Extract(context.Background(), "a.pdf")
	if err != nil {
		t.Fatalf("Extract() returned an unexpected error: %v", err)
	}
	if text != "twelve chars" || rec.calls != 0 {
		t.Errorf("Expected direct text above a lowered threshold, got %q after %d OCR calls", text, rec.calls)
	}
}
