// Package pdftoppm rasterizes PDF pages by shelling out to poppler's pdftoppm.
package pdftoppm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"permitflow/internal/port"
)

// baseDPI is the resolution of a page rendered at scale 1.
const baseDPI = 72

// Rasterizer implements port.Rasterizer.
type Rasterizer struct {
	binary string
}

// New creates a Rasterizer. An empty binary defaults to "pdftoppm" on PATH.
func New(binary string) *Rasterizer {
	if binary == "" {
		binary = "pdftoppm"
	}
	return &Rasterizer{binary: binary}
}

// Rasterize renders up to maxPages leading pages of document as PNG images at scale×72 dpi.
func (r *Rasterizer) Rasterize(ctx context.Context, document []byte, maxPages, scale int) ([]port.Image, error) {
	if len(document) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if maxPages < 1 {
		maxPages = 1
	}
	if scale < 1 {
		scale = 1
	}

	dir, err := os.MkdirTemp("", "permitflow-raster-")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	input := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(input, document, 0o600); err != nil {
		return nil, fmt.Errorf("writing document: %w", err)
	}
	prefix := filepath.Join(dir, "page")

	cmd := exec.CommandContext(ctx, r.binary,
		"-png",
		"-r", strconv.Itoa(baseDPI*scale),
		"-f", "1",
		"-l", strconv.Itoa(maxPages),
		input, prefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running %s: %w: %s", r.binary, err, strings.TrimSpace(stderr.String()))
	}

	paths, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s produced no pages", r.binary)
	}
	sort.Slice(paths, func(i, j int) bool { return pageNumber(paths[i]) < pageNumber(paths[j]) })
	if len(paths) > maxPages {
		paths = paths[:maxPages]
	}

	images := make([]port.Image, 0, len(paths))
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", i+1, err)
		}
		images = append(images, port.Image{Data: data, ContentType: "image/png", Page: i + 1})
	}
	return images, nil
}

// pageNumber extracts N from ".../page-N.png"; pdftoppm zero-pads N by document length.
func pageNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	idx := strings.LastIndex(base, "-")
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return 0
	}
	return n
}
