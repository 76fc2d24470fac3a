package pdftext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_RejectsGarbage(t *testing.T) {
	e := NewExtractor()

	for name, data := range map[string][]byte{
		"empty":     nil,
		"not a pdf": []byte("hello, world"),
		"truncated": []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog"),
	} {
		t.Run(name, func(t *testing.T) {
			doc, err := e.Extract(context.Background(), data)
			assert.ErrorIs(t, err, ErrInvalidPDF)
			assert.Nil(t, doc)
		})
	}
}
