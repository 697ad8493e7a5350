package pdf

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/lectord/internal/ui"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	return path
}

func TestNormalizeAndBuild(t *testing.T) {
	dir := t.TempDir()
	log := ui.NewLogger(false)

	pages := []string{
		writePNG(t, dir, "001.png", 120, 200),
		writePNG(t, dir, "002.png", 120, 200),
	}

	jpegs, tmpDir, err := Normalize(pages, dir, log)
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)
	require.Len(t, jpegs, 2)
	for _, p := range jpegs {
		assert.Equal(t, ".jpg", filepath.Ext(p))
	}

	out := filepath.Join(dir, "chapter.pdf")
	require.NoError(t, Build(jpegs, out))

	assert.Equal(t, 2, PageCount(out))

	rep := Validate(out, 2, Limits{MinSizeBytes: 1, MinPageBytes: 1, MinTotalForMulti: 1, MultiPageThreshold: 100})
	assert.True(t, rep.OK)
	assert.Equal(t, 2, rep.Pages)
}

func TestNormalize_SkipsUndecodable(t *testing.T) {
	dir := t.TempDir()
	log := ui.NewLogger(false)

	good := writePNG(t, dir, "001.png", 50, 50)
	bad := filepath.Join(dir, "002.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))

	jpegs, tmpDir, err := Normalize([]string{good, bad}, dir, log)
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	assert.Len(t, jpegs, 1)
}

func TestBuild_NoImages(t *testing.T) {
	out := filepath.Join(t.TempDir(), "empty.pdf")

	assert.Error(t, Build(nil, out))
}
