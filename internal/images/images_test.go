// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package images

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a_black.png"), 4, 4, color.NRGBA{A: 255})
	writePNG(t, filepath.Join(dir, "b_white.PNG"), 4, 4, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	writePNG(t, filepath.Join(dir, "c_gray.png"), 2, 2, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d_broken.png"), []byte("not a png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	a, err := Analyze(context.Background(), dir, DefaultBlackThreshold, 2)
	require.NoError(t, err)

	require.Len(t, a.Black, 1)
	assert.Equal(t, "a_black.png", a.Black[0].Name)
	assert.Zero(t, a.Black[0].Mean)

	require.Len(t, a.Valid, 2)
	assert.Equal(t, "b_white.PNG", a.Valid[0].Name)
	assert.InDelta(t, 255, a.Valid[0].Mean, 0.001)
	assert.InDelta(t, 100, a.Valid[1].Mean, 0.001)

	require.Len(t, a.Errors, 1)
	assert.Equal(t, "d_broken.png", a.Errors[0].Name)

	assert.Equal(t, 3, a.Total())
	assert.InDelta(t, 66.67, a.SuccessRate(), 0.01)
	assert.True(t, a.HasFailures())
}

func TestLuma(t *testing.T) {
	assert.Equal(t, uint8(255), luma(color.NRGBA{R: 255, G: 255, B: 255, A: 0}))
	assert.Equal(t, uint8(76), luma(color.NRGBA{R: 255, A: 255}))
	assert.Equal(t, uint8(42), luma(color.Gray{Y: 42}))
	assert.Equal(t, uint8(200), luma(color.Gray16{Y: 200}))
	assert.Equal(t, uint8(255), luma(color.Gray16{Y: 0x1234}))
}

func TestDimensions(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "fig1.png"), 30, 20, color.White)
	writePNG(t, filepath.Join(dir, "fig1_BACKUP.png"), 5, 5, color.White)
	writePNG(t, filepath.Join(dir, "upper.PNG"), 5, 5, color.White)

	dims, bad, err := Dimensions(dir)
	require.NoError(t, err)
	assert.Empty(t, bad)
	require.Len(t, dims, 1)
	assert.Equal(t, "fig1.png", dims[0].Name)
	assert.Equal(t, 30, dims[0].Width)
	assert.Equal(t, 20, dims[0].Height)
	assert.Greater(t, dims[0].SizeKB, 0.0)
}

func TestRenumberCatalog(t *testing.T) {
	in := "**Document Prefix**: P2\n\n## P2-001 Block diagram\nSee P2-014.\nImages P2-001 through P2-042\n"
	want := "**Document Prefix**: P2DS\n\n## P2DS-001 Block diagram\nSee P2DS-014.\nImages P2DS-001 through P2DS-042\n"
	assert.Equal(t, want, RenumberCatalog(in, DefaultOldPrefix, DefaultNewPrefix))
}

func TestRenumberCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.md")
	require.NoError(t, os.WriteFile(path, []byte("P2-003\n"), 0o644))

	changed, err := RenumberCatalogFile(path, DefaultOldPrefix, DefaultNewPrefix, nil)
	require.NoError(t, err)
	assert.True(t, changed)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "P2DS-003\n", string(data))

	changed, err = RenumberCatalogFile(path, DefaultOldPrefix, DefaultNewPrefix, nil)
	require.NoError(t, err)
	assert.False(t, changed)
}
