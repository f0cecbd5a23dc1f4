// Package doctext converts stored source documents into linear text. PDFs go
// through the pdf parser; anything else must already be valid UTF-8 text.
package doctext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/vgrishin/docextract/internal/core/domain"
	"github.com/vgrishin/docextract/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	if isPDF(doc, raw) {
		return extractPDFText(raw)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("unsupported binary format: %s: %w", doc.Filename, domain.ErrInvalidInput)
	}
	return strings.TrimSpace(string(raw)), nil
}

func isPDF(doc *domain.Document, raw []byte) bool {
	if doc.MimeType == "application/pdf" {
		return true
	}
	if strings.HasSuffix(strings.ToLower(doc.Filename), ".pdf") {
		return true
	}
	return bytes.HasPrefix(raw, []byte("%PDF-"))
}

func extractPDFText(raw []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %s: %w", err, domain.ErrInvalidInput)
	}

	textReader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %s: %w", err, domain.ErrInvalidInput)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
