// Package pdftext reads page text and the information dictionary out of PDF
// bytes.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/docpipe/core"
)

// ErrInvalidPDF is returned for bytes the parser cannot read, including inputs
// that make it panic.
var ErrInvalidPDF = errors.New("invalid pdf")

// Document is the parsed content of a PDF. Pages holds one entry per page in
// order; pages without a content stream are empty strings.
type Document struct {
	Pages    []string
	Metadata core.DocumentMetadata
}

// Extractor turns PDF bytes into page text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (*Document, error)
}

// PDFExtractor implements Extractor with github.com/ledongthuc/pdf.
type PDFExtractor struct {
	logger *slog.Logger
}

// Option configures a PDFExtractor.
type Option func(*PDFExtractor)

// WithLogger sets the logger used for per-page warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(e *PDFExtractor) {
		e.logger = logger
	}
}

// NewExtractor creates a PDFExtractor.
func NewExtractor(opts ...Option) *PDFExtractor {
	e := &PDFExtractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "pdftext")
	return e
}

// Extract parses data. A page whose text cannot be decoded is logged and
// recorded as empty; a document that cannot be opened fails with ErrInvalidPDF.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("%w: parser panic: %v", ErrInvalidPDF, r)
		}
	}()

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidPDF)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPDF, err)
	}

	numPages := reader.NumPage()
	doc = &Document{
		Pages:    make([]string, numPages),
		Metadata: readMetadata(reader.Trailer().Key("Info")),
	}

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("failed to read page text", "page", i, "err", err)
			continue
		}
		doc.Pages[i-1] = text
	}

	return doc, nil
}

func readMetadata(info pdf.Value) core.DocumentMetadata {
	if info.IsNull() {
		return core.DocumentMetadata{}
	}
	return core.DocumentMetadata{
		Title:            info.Key("Title").Text(),
		Author:           info.Key("Author").Text(),
		Subject:          info.Key("Subject").Text(),
		Creator:          info.Key("Creator").Text(),
		Producer:         info.Key("Producer").Text(),
		CreationDate:     info.Key("CreationDate").Text(),
		ModificationDate: info.Key("ModDate").Text(),
	}
}
