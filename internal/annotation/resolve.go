package annotation

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps annotation image paths to files on disk. Annotation files
// are frequently moved between machines, so the recorded paths are treated
// as hints: an absolute path that exists wins, then the path rebased onto
// the data root, then a basename search under the root that prefers files
// inside an "images" directory. Successful basename lookups are cached.
type Resolver struct {
	root  string
	cache map[string]string // basename -> resolved path
}

// NewResolver creates a resolver rooted at the given directory.
func NewResolver(root string) *Resolver {
	return &Resolver{
		root:  root,
		cache: make(map[string]string),
	}
}

// Resolve returns the best on-disk path for the recorded image path.
// When no candidate exists the original path is returned unchanged; the
// image store will report it unavailable on first access.
func (r *Resolver) Resolve(imagePath string) string {
	if filepath.IsAbs(imagePath) && exists(imagePath) {
		return imagePath
	}

	rebased := filepath.Join(r.root, strings.TrimPrefix(imagePath, "./"))
	if exists(rebased) {
		return rebased
	}

	base := filepath.Base(imagePath)
	if cached, ok := r.cache[base]; ok && exists(cached) {
		return cached
	}

	if found := r.findByBasename(base); found != "" {
		r.cache[base] = found
		return found
	}

	return imagePath
}

// findByBasename walks the root looking for a file with the given name,
// preferring matches whose parent directory is named "images".
func (r *Resolver) findByBasename(base string) string {
	var fallback string

	_ = filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != base {
			return nil
		}
		if strings.EqualFold(filepath.Base(filepath.Dir(path)), "images") {
			fallback = path
			return filepath.SkipAll
		}
		if fallback == "" {
			fallback = path
		}
		return nil
	})

	return fallback
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
