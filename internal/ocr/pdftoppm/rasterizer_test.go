package pdftoppm_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitflow/internal/ocr/pdftoppm"
)

// fakeBinary writes a shell script that mimics pdftoppm: it records its arguments and emits
// the given number of pages for the output prefix (the last argument).
func fakeBinary(t *testing.T, pages int) (binary, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args")
	script := `#!/bin/sh
echo "$@" > "` + argsFile + `"
for last; do :; done
i=1
while [ $i -le ` + strconv.Itoa(pages) + ` ]; do
  printf 'png-%s' "$i" > "$last-$i.png"
  i=$((i+1))
done
`
	binary = filepath.Join(dir, "pdftoppm")
	require.NoError(t, os.WriteFile(binary, []byte(script), 0o755))
	return binary, argsFile
}

func TestRasterize_PagesInOrder(t *testing.T) {
	bin, argsFile := fakeBinary(t, 3)
	r := pdftoppm.New(bin)

	images, err := r.Rasterize(context.Background(), []byte("%PDF-1.4"), 3, 2)

	require.NoError(t, err)
	require.Len(t, images, 3)
	for i, img := range images {
		assert.Equal(t, i+1, img.Page)
		assert.Equal(t, "image/png", img.ContentType)
		assert.Equal(t, "png-"+strconv.Itoa(i+1), string(img.Data))
	}

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "-r 144")
	assert.Contains(t, string(args), "-l 3")
}

func TestRasterize_CapsPages(t *testing.T) {
	bin, _ := fakeBinary(t, 5)
	r := pdftoppm.New(bin)

	images, err := r.Rasterize(context.Background(), []byte("%PDF-1.4"), 3, 2)
	require.NoError(t, err)
	assert.Len(t, images, 3)
}

func TestRasterize_BinaryFails(t *testing.T) {
	r := pdftoppm.New(filepath.Join(t.TempDir(), "missing-binary"))
	_, err := r.Rasterize(context.Background(), []byte("%PDF-1.4"), 3, 2)
	assert.Error(t, err)
}

func TestRasterize_EmptyDocument(t *testing.T) {
	r := pdftoppm.New("")
	_, err := r.Rasterize(context.Background(), nil, 3, 2)
	assert.ErrorContains(t, err, "empty document")
}
