package crop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cell-review/pkg/geometry"
)

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return img
}

func TestCrop_PadsAndFillsBlack(t *testing.T) {
	src := whiteImage(10, 10)

	// Box in the top-left corner; half the padded square lies outside.
	box := geometry.NewBox(0, 0, 4, 4)
	out, err := Crop(src, box, 0.5, 8)
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}

	b := out.Bounds()
	if b.Dx() != 8 || b.Dy() != 8 {
		t.Fatalf("output bounds: got %v, want 8x8", b)
	}

	// Region starts at (-2,-2), so the first output pixel is fill.
	if r, g, bl, a := out.At(0, 0).RGBA(); r != 0 || g != 0 || bl != 0 || a != 0xffff {
		t.Errorf("corner pixel: got (%d,%d,%d,%d), want opaque black", r, g, bl, a)
	}
	// The box interior maps to source pixels.
	if r, _, _, _ := out.At(4, 4).RGBA(); r != 0xffff {
		t.Errorf("interior pixel: got r=%d, want 65535", r)
	}
}

func TestCrop_InvalidBox(t *testing.T) {
	src := whiteImage(4, 4)
	if _, err := Crop(src, geometry.NewBox(5, 5, 5, 9), 0.1, 16); !errors.Is(err, ErrInvalidBox) {
		t.Errorf("error: got %v, want ErrInvalidBox", err)
	}
}

func TestCrop_Deterministic(t *testing.T) {
	src := whiteImage(20, 20)
	for x := 0; x < 20; x++ {
		src.Set(x, x, color.RGBA{R: uint8(x * 12), G: 30, B: 200, A: 255})
	}
	box := geometry.NewBox(3, 5, 14, 12)

	a, err := Crop(src, box, 0.25, 48)
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	b, err := Crop(src, box, 0.25, 48)
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("repeated crops of the same inputs differ")
	}
}

func testKey(i int) Key {
	return Key{ImagePath: "scan.tif", DetectionID: fmt.Sprintf("scan.tif_%d", i), Size: 16, Padding: 0.3}
}

func countingRender(n *atomic.Int32) RenderFunc {
	return func(Key) (*image.RGBA, error) {
		n.Add(1)
		return whiteImage(16, 16), nil
	}
}

func TestCache_ConcurrentGetRendersOnce(t *testing.T) {
	var calls atomic.Int32
	c, err := NewCache(8, "", countingRender(&calls))
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(testKey(0)); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("render calls: got %d, want 1", got)
	}
}

func TestCache_DiskTierSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	var calls1 atomic.Int32
	c1, err := NewCache(8, dir, countingRender(&calls1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c1.Get(testKey(1)); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if calls1.Load() != 1 {
		t.Fatalf("render calls: got %d, want 1", calls1.Load())
	}

	// A fresh cache over the same directory serves from disk.
	var calls2 atomic.Int32
	c2, err := NewCache(8, dir, countingRender(&calls2))
	if err != nil {
		t.Fatal(err)
	}
	img, err := c2.Get(testKey(1))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if img.Bounds().Dx() != 16 {
		t.Errorf("disk image bounds: got %v", img.Bounds())
	}
	if calls2.Load() != 0 {
		t.Errorf("render calls after disk hit: got %d, want 0", calls2.Load())
	}
}

func TestCache_InvalidateDropsBothTiers(t *testing.T) {
	dir := t.TempDir()
	var calls atomic.Int32
	c, err := NewCache(8, dir, countingRender(&calls))
	if err != nil {
		t.Fatal(err)
	}

	key := testKey(2)
	if _, err := c.Get(key); err != nil {
		t.Fatalf("Get: %v", err)
	}
	blob := c.blobPath(key)
	if _, err := os.Stat(blob); err != nil {
		t.Fatalf("blob missing after Get: %v", err)
	}

	c.Invalidate(key.ImagePath)
	if c.Len() != 0 {
		t.Errorf("memory tier after Invalidate: got %d entries", c.Len())
	}
	if _, err := os.Stat(blob); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("blob after Invalidate: %v", err)
	}

	if _, err := c.Get(key); err != nil {
		t.Fatalf("Get after Invalidate: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("render calls: got %d, want 2", got)
	}
}

func TestCache_EvictsBeyondCapacity(t *testing.T) {
	var calls atomic.Int32
	c, err := NewCache(2, "", countingRender(&calls))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := c.Get(testKey(i)); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len: got %d, want 2", c.Len())
	}
}

func TestPrefetcher_FetchesAllKeys(t *testing.T) {
	var calls atomic.Int32
	c, err := NewCache(32, "", countingRender(&calls))
	if err != nil {
		t.Fatal(err)
	}
	p := NewPrefetcher(c, 3)

	keys := make([]Key, 9)
	for i := range keys {
		keys[i] = testKey(i)
	}

	seen := make(map[string]bool)
	for res := range p.Fetch(context.Background(), keys) {
		if res.Err != nil {
			t.Errorf("fetch %s: %v", res.Key.DetectionID, res.Err)
		}
		seen[res.Key.DetectionID] = true
	}
	if len(seen) != len(keys) {
		t.Errorf("results: got %d keys, want %d", len(seen), len(keys))
	}
}

func TestPrefetcher_CancelStopsEarly(t *testing.T) {
	slow := func(Key) (*image.RGBA, error) {
		time.Sleep(5 * time.Millisecond)
		return whiteImage(4, 4), nil
	}
	c, err := NewCache(64, "", slow)
	if err != nil {
		t.Fatal(err)
	}
	p := NewPrefetcher(c, 1)

	keys := make([]Key, 40)
	for i := range keys {
		keys[i] = testKey(i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	got := 0
	for res := range p.Fetch(ctx, keys) {
		if res.Err != nil {
			t.Errorf("fetch: %v", res.Err)
		}
		got++
		if got == 1 {
			cancel()
		}
	}
	cancel()
	if got == len(keys) {
		t.Error("cancellation did not stop the prefetcher")
	}
}
