package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupe_FirstKeyWinsPerPage(t *testing.T) {
	in := []Target{
		{Page: 1, Key: "https://cdn.example.com/a/001.jpg"},
		{Page: 1, Key: "https://cdn.example.com/b/001.jpg"},
		{Page: 2, Key: "https://cdn.example.com/a/002.jpg"},
	}

	out := Dedupe(in, 0)

	assert.Len(t, out, 2)
	assert.Equal(t, "https://cdn.example.com/a/001.jpg", out[0].Key)
	assert.Equal(t, 2, out[1].Page)
}

func TestDedupe_DropsInvalidEntries(t *testing.T) {
	in := []Target{
		{Page: 0, Key: "https://cdn.example.com/zero.jpg"},
		{Page: -3, Key: "https://cdn.example.com/neg.jpg"},
		{Page: 1, Key: ""},
		{Page: 2, Key: "https://cdn.example.com/002.jpg"},
	}

	out := Dedupe(in, 0)

	assert.Len(t, out, 1)
	assert.Equal(t, 2, out[0].Page)
}

func TestDedupe_Limit(t *testing.T) {
	in := []Target{
		{Page: 1, Key: "https://cdn.example.com/001.jpg"},
		{Page: 2, Key: "https://cdn.example.com/002.jpg"},
		{Page: 3, Key: "https://cdn.example.com/003.jpg"},
	}

	out := Dedupe(in, 2)

	assert.Len(t, out, 2)
	assert.Equal(t, 2, out[len(out)-1].Page)
}

func TestAnchorImgSelectors_OrderAndDedupe(t *testing.T) {
	sels := anchorImgSelectors([]string{"#viewer", "", "#viewer"}, 7)

	// container-scoped variants come before bare ones
	assert.Equal(t, "#viewer a[name='7'] img", sels[0])
	assert.Contains(t, sels, "a[name='7'] img")
	assert.Contains(t, sels, "#viewer img:nth-of-type(7)")
	assert.Contains(t, sels, "img:nth-of-type(7)")

	seen := make(map[string]bool)
	for _, s := range sels {
		assert.False(t, seen[s], "duplicate selector %s", s)
		seen[s] = true
	}
	// 7 variants per prefix, one container plus bare
	assert.Len(t, sels, 14)
}

func TestSelectTargets_OptionOrderBecomesPageOrder(t *testing.T) {
	opts := []string{
		"https://cdn.example.com/ch/001.jpg",
		"https://cdn.example.com/ch/002.jpg",
		"https://cdn.example.com/ch/003.jpg",
	}

	out := SelectTargets(opts, "https://site.example.com/leer/es/s/105/")

	assert.Equal(t, []Target{
		{Page: 1, Key: "https://cdn.example.com/ch/001.jpg"},
		{Page: 2, Key: "https://cdn.example.com/ch/002.jpg"},
		{Page: 3, Key: "https://cdn.example.com/ch/003.jpg"},
	}, out)
}

func TestSelectTargets_FiltersAndResolves(t *testing.T) {
	base := "https://site.example.com/leer/es/s/105/"
	opts := []string{
		"/img/001.jpg",                      // relative, resolved against base
		"https://cdn.example.com/page.html", // no image extension
		"",
		"https://cdn.example.com/002.png?tk=9", // query stripped by the key
		"/img/001.jpg",                         // duplicate key dropped
	}

	out := SelectTargets(opts, base)

	assert.Equal(t, []Target{
		{Page: 1, Key: "https://site.example.com/img/001.jpg"},
		{Page: 4, Key: "https://cdn.example.com/002.png"},
	}, out)
}

func TestSelectTargetsLoose_KeepsExtensionlessProxyURLs(t *testing.T) {
	base := "https://site.example.com/leer/es/s/105/"
	opts := []string{"/proxy?p=1", "", "/proxy?p=3"}

	out := SelectTargetsLoose(opts, base)

	assert.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Page)
	assert.Equal(t, 3, out[1].Page)
	assert.Equal(t, "https://site.example.com/proxy", out[0].Key)
}
