package pdf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePDF writes a file the structural parser rejects but whose raw page
// markers still count, padded out to the requested size.
func fakePDF(t *testing.T, pages int, size int) string {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	for i := 0; i < pages; i++ {
		buf.WriteString("<< /Type /Page >>\n")
	}
	if buf.Len() < size {
		buf.Write(bytes.Repeat([]byte{' '}, size-buf.Len()))
	}

	path := filepath.Join(t.TempDir(), "chapter.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	return path
}

func TestValidate_MissingFile(t *testing.T) {
	rep := Validate(filepath.Join(t.TempDir(), "nope.pdf"), 0, Limits{})

	assert.False(t, rep.OK)
	assert.Zero(t, rep.Size)
}

func TestValidate_NoPages(t *testing.T) {
	path := fakePDF(t, 0, 4096)

	rep := Validate(path, 0, Limits{MinSizeBytes: 1})

	assert.False(t, rep.OK)
	assert.Zero(t, rep.Pages)
}

func TestValidate_SizeFloors(t *testing.T) {
	lim := Limits{
		MinSizeBytes:       2000,
		MinPageBytes:       1000,
		MinTotalForMulti:   10000,
		MultiPageThreshold: 2,
	}

	// single page, absolute floor applies
	rep := Validate(fakePDF(t, 1, 2500), 0, lim)
	assert.True(t, rep.OK)
	assert.Equal(t, 1, rep.Pages)

	rep = Validate(fakePDF(t, 1, 1500), 0, lim)
	assert.False(t, rep.OK)

	// two pages, still under the multi threshold, per-page floor wins
	rep = Validate(fakePDF(t, 2, 2500), 0, lim)
	assert.True(t, rep.OK)

	// three pages cross the threshold and need the multi floor
	rep = Validate(fakePDF(t, 3, 5000), 0, lim)
	assert.False(t, rep.OK)

	rep = Validate(fakePDF(t, 3, 12000), 0, lim)
	assert.True(t, rep.OK)
}

func TestValidate_ExpectedPages(t *testing.T) {
	lim := Limits{MinSizeBytes: 1}

	// lost more than half the chapter
	rep := Validate(fakePDF(t, 2, 1024), 10, lim)
	assert.False(t, rep.OK)
	assert.Equal(t, 2, rep.Pages)

	// exactly half survives
	rep = Validate(fakePDF(t, 5, 1024), 10, lim)
	assert.True(t, rep.OK)

	// no expectation, any positive count passes
	rep = Validate(fakePDF(t, 1, 1024), 0, lim)
	assert.True(t, rep.OK)
}

func TestPageCount_RawFallback(t *testing.T) {
	assert.Equal(t, 4, PageCount(fakePDF(t, 4, 0)))
	assert.Equal(t, 0, PageCount(filepath.Join(t.TempDir(), "absent.pdf")))
}
