// Package pdftext reads the embedded text layer of PDF documents.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Reader implements port.TextLayerReader.
type Reader struct{}

// New creates a Reader.
func New() *Reader { return &Reader{} }

// ReadText returns the plain text of up to maxPages leading pages, one page per line group.
// Scanned documents without a text layer yield an empty string.
func (r *Reader) ReadText(ctx context.Context, document []byte, maxPages int) (text string, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("pdftext: malformed document: %v", p)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(document), int64(len(document)))
	if err != nil {
		return "", fmt.Errorf("pdftext: opening document: %w", err)
	}
	n := doc.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}

	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("pdftext: reading page %d: %w", i, err)
		}
		if content = strings.TrimSpace(content); content != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, "\n"), nil
}
