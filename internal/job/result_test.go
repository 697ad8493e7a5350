package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractChapterToken(t *testing.T) {
	assert.Equal(t, "105", ExtractChapterToken("https://leercapitulo.com/leer/es/solo-leveling/105/#1"))
	assert.Equal(t, "105.5", ExtractChapterToken("https://leercapitulo.com/leer/es/solo-leveling/105.5/"))
	assert.Equal(t, "84", ExtractChapterToken("https://reader.example.com/manga/tower/84"))
	assert.Equal(t, "", ExtractChapterToken("https://reader.example.com/manga/tower/"))
	assert.Equal(t, "", ExtractChapterToken("://bad"))
}

func TestLabelToToken(t *testing.T) {
	assert.Equal(t, "105.5", LabelToToken("Capítulo 105.5"))
	assert.Equal(t, "12", LabelToToken("Chapter 12 - The Fall"))
	assert.Equal(t, "", LabelToToken("Prologue"))
}

func TestDeriveSeriesBase(t *testing.T) {
	base := DeriveSeriesBase("https://leercapitulo.com/leer/es/solo-leveling/105/#1", nil)
	assert.Equal(t, "https://leercapitulo.com/leer/es/solo-leveling/", base)

	base = DeriveSeriesBase("https://reader.example.com/manga/tower/84", nil)
	assert.Equal(t, "https://reader.example.com/manga/tower/", base)

	// already a series URL, stays put
	base = DeriveSeriesBase("https://reader.example.com/manga/tower/", nil)
	assert.Equal(t, "https://reader.example.com/manga/tower/", base)
}

func TestBuildChapterURL(t *testing.T) {
	u := BuildChapterURL("https://leercapitulo.com/leer/es/solo-leveling/", "106", nil)
	assert.Equal(t, "https://leercapitulo.com/leer/es/solo-leveling/106/#1", u)

	// missing trailing slash gets repaired
	u = BuildChapterURL("https://reader.example.com/manga/tower", "85.5", nil)
	assert.Equal(t, "https://reader.example.com/manga/tower/85.5/#1", u)
}

func TestDeriveTitleFromURL(t *testing.T) {
	assert.Equal(t, "Solo Leveling", DeriveTitleFromURL("https://leercapitulo.com/leer/es/solo-leveling/105/"))
	assert.Equal(t, "Tower Of God", DeriveTitleFromURL("https://reader.example.com/tower_of-god/84"))
	assert.Equal(t, "Chapter", DeriveTitleFromURL(""))

	// bare host degrades to the hostname words
	assert.Equal(t, "Reader Example Com", DeriveTitleFromURL("https://reader.example.com/"))
}
