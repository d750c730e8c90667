package form_test

import (
	"bytes"
	"encoding/base64"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitflow/internal/form"
)

func TestDecodeDataURL_RoundTripSize(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for _, mediaType := range []string{"image/png", "image/jpeg", "image/webp"} {
		for n := 1; n < 64; n++ {
			data := make([]byte, n)
			r.Read(data)
			encoded := base64.StdEncoding.EncodeToString(data)

			f, err := form.DecodeDataURL("data:" + mediaType + ";base64," + encoded)
			require.NoError(t, err)

			expected := len(encoded) * 3 / 4
			assert.InDelta(t, expected, len(f.Data), 2, "size for %d bytes", n)
			assert.True(t, bytes.Equal(data, f.Data))
			assert.Equal(t, mediaType, f.ContentType)
		}
	}
}

func TestDecodeDataURL_Names(t *testing.T) {
	tests := []struct {
		url  string
		name string
	}{
		{"data:image/png;base64,AAEC", "signature.png"},
		{"data:image/jpeg;base64,AAEC", "signature.jpg"},
		{"data:image/svg+xml;base64,AAEC", "signature.svg"},
		{"data:application/x-thing;base64,AAEC", "signature.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := form.DecodeDataURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.name, f.Name)
		})
	}
}

func TestDecodeDataURL_Unpadded(t *testing.T) {
	f, err := form.DecodeDataURL("data:image/png;base64,AAECAw")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, f.Data)
}

func TestDecodeDataURL_Rejects(t *testing.T) {
	for _, in := range []string{
		"",
		"Nena Reyes",
		"data:image/png,plain-text",
		"data:image/png;base64",
		"data:image/png;base64,***",
	} {
		_, err := form.DecodeDataURL(in)
		assert.Error(t, err, in)
	}
}

func TestHasSignature(t *testing.T) {
	tests := []struct {
		name  string
		value string
		file  *form.File
		want  bool
	}{
		{"drawn", "data:image/png;base64,AAECAw==", nil, true},
		{"typed name", "Nena Reyes", nil, false},
		{"blank", "  ", nil, false},
		{"uploaded image", "", &form.File{Name: "sig.jpg", ContentType: "image/jpeg", Data: []byte{0xff}}, true},
		{"uploaded pdf", "", &form.File{Name: "sig.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := form.New()
			f.Set("signature", tt.value)
			if tt.file != nil {
				f.SetFile("signature", tt.file)
			}
			assert.Equal(t, tt.want, f.HasSignature("signature"))
		})
	}
}
