package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalKey(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/img/001.jpg",
		CanonicalKey("https://cdn.example.com/img/001.jpg?token=abc#frag"))

	// idempotent
	key := CanonicalKey("https://cdn.example.com/img/001.jpg?x=1")
	assert.Equal(t, key, CanonicalKey(key))

	// percent-encoded paths stay encoded, matching the origin+pathname form
	// the injected scripts compare against
	assert.Equal(t, "https://cdn.example.com/solo%20leveling/001.jpg",
		CanonicalKey("https://cdn.example.com/solo%20leveling/001.jpg?tk=1"))

	assert.Equal(t, "", CanonicalKey(""))
	// unparseable input passes through untouched
	bad := "https://x.com/\x7f"
	assert.Equal(t, bad, CanonicalKey(bad))
}

func TestAbsURL(t *testing.T) {
	base := "https://site.example.com/leer/es/series/105/"

	assert.Equal(t, "https://site.example.com/img/a.jpg", AbsURL("/img/a.jpg", base))
	assert.Equal(t, "https://cdn.example.com/a.jpg", AbsURL("//cdn.example.com/a.jpg", base))
	assert.Equal(t, "https://other.com/b.png", AbsURL("https://other.com/b.png", base))
	assert.Equal(t, "", AbsURL("", base))
}

func TestWithPageFragment(t *testing.T) {
	assert.Equal(t, "https://x.com/leer/es/s/105/#1", WithPageFragment("https://x.com/leer/es/s/105"))
	assert.Equal(t, "https://x.com/leer/es/s/105/#1", WithPageFragment("https://x.com/leer/es/s/105/"))
	// existing fragments are rewritten to the first page
	assert.Equal(t, "https://x.com/leer/es/s/105/#1", WithPageFragment("https://x.com/leer/es/s/105/#4"))
}

func TestHasImageExt(t *testing.T) {
	assert.True(t, HasImageExt("https://c.com/p/001.jpg"))
	assert.True(t, HasImageExt("https://c.com/p/001.webp?x=1"))
	assert.True(t, HasImageExt("https://c.com/p/001.AVIF"))
	assert.False(t, HasImageExt("https://c.com/p/page.html"))
	assert.False(t, HasImageExt("https://c.com/p/001"))
}

func TestInferExt(t *testing.T) {
	assert.Equal(t, "png", InferExt("https://c.com/a.png", ""))
	assert.Equal(t, "webp", InferExt("https://c.com/a", "image/webp"))
	assert.Equal(t, "jpeg", InferExt("https://c.com/a", "image/jpeg"))
	// unknown falls back to jpg
	assert.Equal(t, "jpg", InferExt("https://c.com/a", "application/octet-stream"))
}

func TestIsChapterToken(t *testing.T) {
	assert.True(t, IsChapterToken("105"))
	assert.True(t, IsChapterToken("106.5"))
	assert.False(t, IsChapterToken(""))
	assert.False(t, IsChapterToken("105a"))
	assert.False(t, IsChapterToken("cap 105"))
	assert.False(t, IsChapterToken(".5"))
}

func TestIsIndexPath(t *testing.T) {
	assert.True(t, IsIndexPath("https://x.com/index"))
	assert.True(t, IsIndexPath("https://x.com/home/"))
	assert.False(t, IsIndexPath("https://x.com/leer/es/s/105/"))
	assert.False(t, IsIndexPath("https://x.com/indexed-page"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "Solo Leveling", SanitizeFilename("Solo Leveling"))
	assert.NotContains(t, SanitizeFilename(`a/b\c:d*e?f"g<h>i|j`), "/")
	assert.NotContains(t, SanitizeFilename(`a/b\c:d*e?f"g<h>i|j`), ":")
}

func TestUniquePreserve(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, UniquePreserve([]string{"1", "2", "1", "3", "2"}))
	assert.Empty(t, UniquePreserve([]string{"", ""}))
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", HumanBytes(512))
	assert.Equal(t, "1.00 KB", HumanBytes(1024))
	assert.Equal(t, "2.50 MB", HumanBytes(int64(2.5*(1<<20))))
	assert.Equal(t, "1.00 GB", HumanBytes(1<<30))
}
