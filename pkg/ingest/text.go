package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedFormat is returned for file types that cannot be read
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptyTable is returned when a financial table has no data rows
	ErrEmptyTable = errors.New("financial table has no data rows")
)

var pdfMagic = []byte("%PDF-")

// LoadDocumentText reads an agreement from disk and returns its plain text
func LoadDocumentText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DocumentText(data, filepath.Base(path))
}

// DocumentText extracts plain text from an uploaded agreement. PDFs are
// recognised by extension or by their header; everything else is treated as
// UTF-8 text with invalid byte sequences dropped.
func DocumentText(data []byte, filename string) (string, error) {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") || bytes.HasPrefix(data, pdfMagic) {
		return pdfText(data)
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}
	return string(text), nil
}
