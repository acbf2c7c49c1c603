// Package imagestore loads microscopy source images on demand and caches
// the decoded results per path.
package imagestore

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "golang.org/x/image/tiff"
)

// ErrImageUnavailable indicates a source image that is missing or cannot be
// decoded. Detections referencing such an image render placeholders; the
// rest of the session is unaffected.
var ErrImageUnavailable = errors.New("image unavailable")

// Store decodes images on demand and keeps them in memory keyed by path.
// Images are returned in their native bit depth: 16-bit TIFFs decode to
// *image.RGBA64/Gray16 and must not be flattened before crop arithmetic.
// Store is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	images map[string]image.Image
	failed map[string]error // Paths that failed to decode; not retried
}

// New creates an empty store.
func New() *Store {
	return &Store{
		images: make(map[string]image.Image),
		failed: make(map[string]error),
	}
}

// Get returns the decoded image for a path, loading it on first access.
// A path that failed once keeps failing without touching the disk again;
// recovery requires an explicit Evict.
func (s *Store) Get(path string) (image.Image, error) {
	s.mu.RLock()
	if img, ok := s.images[path]; ok {
		s.mu.RUnlock()
		return img, nil
	}
	if err, ok := s.failed[path]; ok {
		s.mu.RUnlock()
		return nil, err
	}
	s.mu.RUnlock()

	img, err := decode(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failed[path] = err
		return nil, err
	}
	s.images[path] = img
	return img, nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageUnavailable, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decode failed: %v", ErrImageUnavailable, path, err)
	}
	return img, nil
}

// Dimensions returns the pixel dimensions of the image at the given path,
// decoding it if necessary.
func (s *Store) Dimensions(path string) (width, height int, err error) {
	img, err := s.Get(path)
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// Evict removes a path from the store, including any recorded failure,
// so the next Get reloads from disk.
func (s *Store) Evict(path string) {
	s.mu.Lock()
	delete(s.images, path)
	delete(s.failed, path)
	s.mu.Unlock()
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	s.images = make(map[string]image.Image)
	s.failed = make(map[string]error)
	s.mu.Unlock()
}

// Len returns the number of decoded images currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

// SupportedFormats returns the image extensions the store can decode.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks if the given path has a supported extension.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
