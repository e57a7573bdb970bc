package ingest

import (
	"fmt"
	"os"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// pdfDocument reads text with ledongthuc/pdf and renders pages with MuPDF.
// The renderer is only opened once a page needs recognition.
type pdfDocument struct {
	path   string
	file   *os.File
	reader *pdf.Reader
	fitz   *fitz.Document
}

// OpenPDF opens a PDF file for extraction.
func OpenPDF(path string) (Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not read PDF %s: %w", path, err)
	}
	return &pdfDocument{path: path, file: f, reader: r}, nil
}

func (d *pdfDocument) NumPages() int {
	return d.reader.NumPage()
}

// PageText returns the plain text of a page. Malformed content streams can
// panic inside the reader; those are reported as errors.
func (d *pdfDocument) PageText(page int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", page+1, r)
		}
	}()

	p := d.reader.Page(page + 1)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

func (d *pdfDocument) RenderPage(page int, dpi float64) ([]byte, error) {
	if d.fitz == nil {
		doc, err := fitz.New(d.path)
		if err != nil {
			return nil, fmt.Errorf("failed to open PDF renderer: %w", err)
		}
		d.fitz = doc
	}
	img, err := d.fitz.ImagePNG(page, dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page+1, err)
	}
	return img, nil
}

func (d *pdfDocument) Close() error {
	if d.fitz != nil {
		d.fitz.Close()
	}
	return d.file.Close()
}
