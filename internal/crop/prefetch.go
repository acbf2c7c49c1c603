package crop

import (
	"context"
	"image"
	"sync"
)

// Result carries the outcome of one prefetched crop.
type Result struct {
	Key   Key
	Image *image.RGBA
	Err   error
}

// Prefetcher warms the crop cache ahead of navigation using a small worker
// pool. It exists so page turns hit warm cache instead of rendering on the
// UI thread.
type Prefetcher struct {
	cache   *Cache
	workers int
}

// NewPrefetcher creates a prefetcher with the given worker count.
func NewPrefetcher(cache *Cache, workers int) *Prefetcher {
	if workers < 1 {
		workers = 1
	}
	return &Prefetcher{cache: cache, workers: workers}
}

// Fetch renders the given keys through the cache and streams results as
// they complete. The returned channel is closed once all keys are done or
// the context is cancelled; keys not yet started when cancellation arrives
// are skipped.
func (p *Prefetcher) Fetch(ctx context.Context, keys []Key) <-chan Result {
	tasks := make(chan Key)
	results := make(chan Result, len(keys))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range tasks {
				img, err := p.cache.Get(key)
				select {
				case results <- Result{Key: key, Image: img, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, key := range keys {
			select {
			case tasks <- key:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
