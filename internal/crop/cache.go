package crop

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// RenderFunc computes the pixels for a key on a cache miss.
type RenderFunc func(Key) (*image.RGBA, error)

// Cache is a two-tier crop cache: a bounded in-memory LRU in front of an
// optional content-addressed PNG directory. Concurrent misses for the same
// key share a single render. Safe for concurrent use.
type Cache struct {
	mem    *lru.Cache[Key, *image.RGBA]
	group  singleflight.Group
	render RenderFunc

	diskDir string
	mu      sync.Mutex
	onDisk  map[string][]string // image path -> blob files written or read
}

// NewCache creates a cache holding at most entries crops in memory.
// diskDir may be empty to disable the disk tier; otherwise it is created
// on demand.
func NewCache(entries int, diskDir string, render RenderFunc) (*Cache, error) {
	if entries < 1 {
		entries = 1
	}
	mem, err := lru.New[Key, *image.RGBA](entries)
	if err != nil {
		return nil, fmt.Errorf("crop cache: %w", err)
	}
	return &Cache{
		mem:     mem,
		render:  render,
		diskDir: diskDir,
		onDisk:  make(map[string][]string),
	}, nil
}

// Get returns the crop for key, consulting memory, then disk, then the
// render function. Renders and disk reads for the same key are collapsed
// so the work happens at most once regardless of caller count.
func (c *Cache) Get(key Key) (*image.RGBA, error) {
	if img, ok := c.mem.Get(key); ok {
		return img, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		if img, ok := c.mem.Get(key); ok {
			return img, nil
		}
		if img := c.readDisk(key); img != nil {
			c.mem.Add(key, img)
			return img, nil
		}
		img, err := c.render(key)
		if err != nil {
			return nil, err
		}
		c.mem.Add(key, img)
		c.writeDisk(key, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*image.RGBA), nil
}

// Invalidate drops every cached crop derived from the given image, in both
// tiers. Call it after a source image is evicted or replaced.
func (c *Cache) Invalidate(imagePath string) {
	for _, key := range c.mem.Keys() {
		if key.ImagePath == imagePath {
			c.mem.Remove(key)
		}
	}

	c.mu.Lock()
	blobs := c.onDisk[imagePath]
	delete(c.onDisk, imagePath)
	c.mu.Unlock()
	for _, blob := range blobs {
		_ = os.Remove(blob)
	}
}

// Clear empties both tiers.
func (c *Cache) Clear() {
	c.mem.Purge()

	c.mu.Lock()
	c.onDisk = make(map[string][]string)
	c.mu.Unlock()
	if c.diskDir == "" {
		return
	}
	entries, err := os.ReadDir(c.diskDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".png" {
			_ = os.Remove(filepath.Join(c.diskDir, e.Name()))
		}
	}
}

// Len returns the number of crops in the memory tier.
func (c *Cache) Len() int {
	return c.mem.Len()
}

func (c *Cache) blobPath(key Key) string {
	return filepath.Join(c.diskDir, key.Digest()+".png")
}

func (c *Cache) readDisk(key Key) *image.RGBA {
	if c.diskDir == "" {
		return nil
	}
	f, err := os.Open(c.blobPath(key))
	if err != nil {
		return nil
	}
	defer f.Close()

	decoded, err := png.Decode(f)
	if err != nil {
		return nil
	}
	img, ok := decoded.(*image.RGBA)
	if !ok {
		b := decoded.Bounds()
		img = image.NewRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				img.Set(x, y, decoded.At(x, y))
			}
		}
	}
	c.track(key)
	return img
}

func (c *Cache) writeDisk(key Key, img *image.RGBA) {
	if c.diskDir == "" {
		return
	}
	if err := os.MkdirAll(c.diskDir, 0o755); err != nil {
		return
	}
	// Write-then-rename so a crash never leaves a torn blob behind.
	tmp, err := os.CreateTemp(c.diskDir, "crop-*.tmp")
	if err != nil {
		return
	}
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return
	}
	if err := os.Rename(tmp.Name(), c.blobPath(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return
	}
	c.track(key)
}

func (c *Cache) track(key Key) {
	blob := c.blobPath(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.onDisk[key.ImagePath] {
		if b == blob {
			return
		}
	}
	c.onDisk[key.ImagePath] = append(c.onDisk[key.ImagePath], blob)
}
