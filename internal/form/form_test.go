package form_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitflow/internal/domain"
	"permitflow/internal/form"
)

func pngBytes() []byte {
	header := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	return append(header, bytes.Repeat([]byte{0x00}, 100)...)
}

func TestForm_ValuesAndFlags(t *testing.T) {
	f := form.New()
	f.Set("business_name", "Sari-Sari")
	f.SetFlag("agreed_declaration", true)

	assert.Equal(t, "Sari-Sari", f.Value("business_name"))
	assert.Empty(t, f.Value("missing"))
	assert.True(t, f.Flag("agreed_declaration"))
	assert.False(t, f.Flag("unset"))
	assert.Equal(t, []string{"business_name"}, f.ValueKeys())
	assert.Equal(t, []string{"agreed_declaration"}, f.FlagKeys())
}

func TestForm_SetIfEmpty(t *testing.T) {
	f := form.New()
	f.Set("first_name", "Maria")

	assert.False(t, f.SetIfEmpty("first_name", "Jose"))
	assert.Equal(t, "Maria", f.Value("first_name"))

	f.Set("last_name", "  ")
	assert.True(t, f.SetIfEmpty("last_name", "Santos"))
	assert.Equal(t, "Santos", f.Value("last_name"))
}

func TestForm_Files(t *testing.T) {
	f := form.New()
	file := &form.File{Name: "clearance.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
	f.SetFile("barangay_clearance", file)

	assert.True(t, f.HasFile("barangay_clearance"))
	assert.True(t, f.File("barangay_clearance").IsPDF())

	snap := f.Snapshot()
	require.Contains(t, snap.Files, "barangay_clearance")
	assert.Equal(t, int64(8), snap.Files["barangay_clearance"].Size)

	f.RemoveFile("barangay_clearance")
	assert.False(t, f.HasFile("barangay_clearance"))
	assert.Empty(t, f.FileKeys())
}

func TestReadFile(t *testing.T) {
	t.Run("png", func(t *testing.T) {
		file, err := form.ReadFile("/tmp/id.png", bytes.NewReader(pngBytes()), 1024)
		require.NoError(t, err)
		assert.Equal(t, "image/png", file.ContentType)
		assert.Equal(t, "id.png", file.Name)
	})

	t.Run("pdf", func(t *testing.T) {
		file, err := form.ReadFile("c.pdf", strings.NewReader("%PDF-1.4 some content"), 1024)
		require.NoError(t, err)
		assert.True(t, file.IsPDF())
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := form.ReadFile("notes.txt", strings.NewReader("hello world"), 1024)
		assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
	})

	t.Run("too_large", func(t *testing.T) {
		_, err := form.ReadFile("big.png", bytes.NewReader(pngBytes()), 10)
		assert.ErrorIs(t, err, domain.ErrFileTooLarge)
	})
}

func TestParseFlag(t *testing.T) {
	for _, s := range []string{"1", "true", "YES", " on "} {
		assert.True(t, form.ParseFlag(s), s)
	}
	for _, s := range []string{"0", "false", "", "nope"} {
		assert.False(t, form.ParseFlag(s), s)
	}
}
