package gallery

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNoImages      = errors.New("no images available")
	ErrFolderMissing = errors.New("published folder does not exist")
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
}

// IsImageFilename reports whether the filename carries a recognized image
// extension, case-insensitively.
func IsImageFilename(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

type Image struct {
	Filename string `json:"filename"`
	URL      string `json:"imageUrl"`
}

// ListImages returns the image filenames present in the published area.
// Directories and files with unrecognized extensions are skipped.
func (m *Manager) ListImages() ([]string, error) {
	entries, err := os.ReadDir(m.PublishedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFolderMissing
		}
		return nil, fmt.Errorf("failed to read published folder: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFilename(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}

// RandomImage selects one published image uniformly at random. The URL
// carries a fresh cache-busting token so intermediate caches never serve
// a stale copy of a rotating selection.
func (m *Manager) RandomImage() (*Image, error) {
	names, err := m.ListImages()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoImages
	}

	name := names[rand.Intn(len(names))]
	return &Image{
		Filename: name,
		URL:      ImageURL(name),
	}, nil
}

// ImageURL builds the serving URL for a published image with a
// cache-defeating query token.
func ImageURL(name string) string {
	return fmt.Sprintf("/images/%s?cb=%s", name, uuid.NewString())
}
