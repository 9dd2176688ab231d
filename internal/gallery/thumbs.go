package gallery

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"github.com/nfnt/resize"
)

const thumbnailMaxDim = 200

// Thumbnailer renders small JPEG previews of images for the admin
// listings. Rendered thumbnails are cached in memory keyed by path and
// modification time, so a re-uploaded file under the same name is not
// served from a stale entry.
type Thumbnailer struct {
	mu    sync.RWMutex
	cache map[string][]byte
}

func NewThumbnailer() *Thumbnailer {
	return &Thumbnailer{cache: make(map[string][]byte)}
}

func (t *Thumbnailer) Render(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}
	key := fmt.Sprintf("%s|%d", path, info.ModTime().UnixNano())

	t.mu.RLock()
	cached, ok := t.cache[key]
	t.mu.RUnlock()
	if ok {
		return cached, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := resize.Thumbnail(thumbnailMaxDim, thumbnailMaxDim, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	t.mu.Lock()
	t.cache[key] = buf.Bytes()
	t.mu.Unlock()

	return buf.Bytes(), nil
}
