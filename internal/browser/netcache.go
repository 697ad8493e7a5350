package browser

import (
	"sync"
)

// Stage tags which acquisition path produced an image, for diagnostics only.
type Stage string

const (
	StageNetworkCache Stage = "network-cache"
	StageDirectFetch  Stage = "direct-fetch"
	StageCapture      Stage = "visual-capture"
)

// CapturedImage owns the bytes of one acquired page image.
type CapturedImage struct {
	Data  []byte
	Ext   string
	Stage Stage
}

// ResponseCache holds image bodies observed passively on the wire during page
// rendering, keyed by canonical locator. First body per key wins. The cache is
// reset at the start of each chapter attempt so an attempt never reuses bytes
// captured by a previous one.
type ResponseCache struct {
	mu     sync.Mutex
	images map[string]CapturedImage
	order  []string
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{images: make(map[string]CapturedImage)}
}

func (c *ResponseCache) Observe(key string, data []byte, ext string) {
	if key == "" || len(data) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.images[key]; ok {
		return
	}
	c.images[key] = CapturedImage{Data: data, Ext: ext, Stage: StageNetworkCache}
	c.order = append(c.order, key)
}

func (c *ResponseCache) Has(key string) bool {
	c.mu.Lock()
	_, ok := c.images[key]
	c.mu.Unlock()

	return ok
}

func (c *ResponseCache) Get(key string) (CapturedImage, bool) {
	c.mu.Lock()
	img, ok := c.images[key]
	c.mu.Unlock()

	return img, ok
}

func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.order)
}

func (c *ResponseCache) Reset() {
	c.mu.Lock()
	c.images = make(map[string]CapturedImage)
	c.order = nil
	c.mu.Unlock()
}
