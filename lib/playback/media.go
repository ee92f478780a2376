// Package playback turns sources into images: decoded stills for file
// sources, drawn patterns for generative ones. It also reports loop and
// elapsed time for the follow scheduler.
package playback

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Media decodes image files relative to a root directory and caches them by
// path.
type Media struct {
	Root string

	mu     sync.Mutex
	images map[string]image.Image
}

func NewMedia(root string) *Media {
	return &Media{Root: root, images: map[string]image.Image{}}
}

func (m *Media) resolve(path string) string {
	if filepath.IsAbs(path) || m.Root == "" {
		return path
	}
	return filepath.Join(m.Root, path)
}

// Image returns the decoded image at path.
func (m *Media) Image(path string) (image.Image, error) {
	full := m.resolve(path)

	m.mu.Lock()
	img, ok := m.images[full]
	m.mu.Unlock()
	if ok {
		return img, nil
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("playback: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("playback: decode %s: %w", path, err)
	}

	m.mu.Lock()
	m.images[full] = img
	m.mu.Unlock()
	return img, nil
}

// Forget drops cached images so edited files are read again.
func (m *Media) Forget() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.images)
}
