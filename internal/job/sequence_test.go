package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const startURL = "https://leercapitulo.com/leer/es/solo/105/#1"

func TestParseSequenceInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		mode    Mode
		payload []string
	}{
		{"empty is single", "", ModeSingle, []string{startURL}},
		{"whitespace is single", "   ", ModeSingle, []string{startURL}},
		{"plus shorthand", "+5", ModeNextN, []string{"5"}},
		{"spanish keyword", "siguientes: 5", ModeNextN, []string{"5"}},
		{"english keyword", "next 12", ModeNextN, []string{"12"}},
		{"token list", "105, 105.5 106", ModeList, []string{"105", "105.5", "106"}},
		{"garbage falls back", "what???", ModeSingle, []string{startURL}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, payload := ParseSequenceInput(tt.input, startURL)
			assert.Equal(t, tt.mode, mode)
			assert.Equal(t, tt.payload, payload)
		})
	}
}

func TestSortChapterTokens(t *testing.T) {
	sorted := SortChapterTokens([]string{"10", "2", "10", "2.5", "extra", "1"})

	assert.Equal(t, []string{"1", "2", "2.5", "10", "extra"}, sorted)
}

func TestForwardWindow(t *testing.T) {
	sorted := []string{"1", "2", "3", "4", "5"}

	assert.Equal(t, []string{"2", "3", "4"}, ForwardWindow(sorted, "2", 3))

	// wraps around past the tail
	assert.Equal(t, []string{"4", "5", "1", "2"}, ForwardWindow(sorted, "4", 4))

	// unknown start falls back to the head of the list
	assert.Equal(t, []string{"1", "2"}, ForwardWindow(sorted, "99", 2))

	// never repeats a token even when n exceeds the list
	assert.Equal(t, []string{"3", "4", "5", "1", "2"}, ForwardWindow(sorted, "3", 10))

	assert.Nil(t, ForwardWindow(sorted, "1", 0))
	assert.Nil(t, ForwardWindow(nil, "1", 3))
}

func TestNextNCount(t *testing.T) {
	n, err := nextNCount([]string{"5"})
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = nextNCount(nil)
	assert.Error(t, err)

	_, err = nextNCount([]string{""})
	assert.Error(t, err)

	_, err = nextNCount([]string{"0"})
	assert.Error(t, err)
}
