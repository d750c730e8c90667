package pdftext_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitflow/internal/ocr/pdftext"
)

// buildPDF writes a minimal document with one Helvetica text line per page.
func buildPDF(pages ...string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"", // page tree, filled below
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}
	var kids []string
	for _, text := range pages {
		pageNum := len(objects) + 1
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>", pageNum+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
		kids = append(kids, fmt.Sprintf("%d 0 R", pageNum))
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", joinRefs(kids), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func joinRefs(refs []string) string {
	var b bytes.Buffer
	for i, r := range refs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(r)
	}
	return b.String()
}

func TestReadText(t *testing.T) {
	text, err := pdftext.New().ReadText(context.Background(), buildPDF("Barangay Clearance"), 3)
	require.NoError(t, err)
	assert.Contains(t, text, "Barangay Clearance")
}

func TestReadText_StopsAtMaxPages(t *testing.T) {
	text, err := pdftext.New().ReadText(context.Background(), buildPDF("First Page", "Second Page"), 1)
	require.NoError(t, err)
	assert.Contains(t, text, "First Page")
	assert.NotContains(t, text, "Second Page")
}

func TestReadText_NotAPDF(t *testing.T) {
	_, err := pdftext.New().ReadText(context.Background(), []byte("plain text"), 3)
	assert.Error(t, err)
}

func TestReadText_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pdftext.New().ReadText(ctx, buildPDF("Barangay Clearance"), 3)
	assert.ErrorIs(t, err, context.Canceled)
}
