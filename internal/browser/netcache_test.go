package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseCache_FirstBodyWins(t *testing.T) {
	c := NewResponseCache()

	c.Observe("https://cdn.example.com/001.jpg", []byte("first"), "jpg")
	c.Observe("https://cdn.example.com/001.jpg", []byte("second"), "webp")

	img, ok := c.Get("https://cdn.example.com/001.jpg")
	assert.True(t, ok)
	assert.Equal(t, []byte("first"), img.Data)
	assert.Equal(t, "jpg", img.Ext)
	assert.Equal(t, StageNetworkCache, img.Stage)
	assert.Equal(t, 1, c.Len())
}

func TestResponseCache_IgnoresEmpty(t *testing.T) {
	c := NewResponseCache()

	c.Observe("", []byte("data"), "jpg")
	c.Observe("https://cdn.example.com/001.jpg", nil, "jpg")

	assert.Zero(t, c.Len())
	assert.False(t, c.Has("https://cdn.example.com/001.jpg"))
}

func TestResponseCache_Reset(t *testing.T) {
	c := NewResponseCache()
	c.Observe("https://cdn.example.com/001.jpg", []byte("data"), "jpg")

	c.Reset()

	assert.Zero(t, c.Len())
	_, ok := c.Get("https://cdn.example.com/001.jpg")
	assert.False(t, ok)
}
