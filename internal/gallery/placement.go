package gallery

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Manager places submitted files into the pending area and moves approved
// files into the published area. Record updates always happen after the
// filesystem side effect succeeded, never before.
type Manager struct {
	PendingDir   string
	PublishedDir string
}

func NewManager(pendingDir, publishedDir string) (*Manager, error) {
	for _, dir := range []string{pendingDir, publishedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &Manager{PendingDir: pendingDir, PublishedDir: publishedDir}, nil
}

// SanitizeFilename strips any path components and characters that are not
// safe in a filename, so whatever the client sent cannot escape the
// target directory.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), ".")
	return cleaned
}

// ResolveCollision returns a filename that does not collide with any name
// for which taken reports true, appending _1, _2, ... before the
// extension until a free name is found.
func ResolveCollision(desired string, taken func(string) bool) string {
	if !taken(desired) {
		return desired
	}

	ext := filepath.Ext(desired)
	base := strings.TrimSuffix(desired, ext)
	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s_%d%s", base, counter, ext)
		if !taken(candidate) {
			return candidate
		}
	}
}

func existsIn(dir string) func(string) bool {
	return func(name string) bool {
		_, err := os.Stat(filepath.Join(dir, name))
		return err == nil
	}
}

// SavePending writes an uploaded stream into the pending area under a
// collision-free variant of the desired name. On any write failure the
// partial file is removed and no name is returned.
func (m *Manager) SavePending(desiredName string, r io.Reader) (string, error) {
	name := SanitizeFilename(desiredName)
	if name == "" {
		return "", fmt.Errorf("empty filename after sanitizing %q", desiredName)
	}

	name = ResolveCollision(name, existsIn(m.PendingDir))
	path := filepath.Join(m.PendingDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create pending file: %w", err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write pending file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to finish pending file: %w", err)
	}

	return name, nil
}

// Publish moves a file from the pending area into the published area,
// resolving name collisions against what is already published. Returns
// the final filename and its full path.
func (m *Manager) Publish(pendingPath, desiredName string) (string, string, error) {
	name := SanitizeFilename(desiredName)
	if name == "" {
		return "", "", fmt.Errorf("empty filename after sanitizing %q", desiredName)
	}

	name = ResolveCollision(name, existsIn(m.PublishedDir))
	dest := filepath.Join(m.PublishedDir, name)

	if err := os.Rename(pendingPath, dest); err != nil {
		return "", "", fmt.Errorf("failed to move file to published area: %w", err)
	}

	return name, dest, nil
}

// Unpublish moves a published file back to the pending area. Used to roll
// back an approval whose record update failed.
func (m *Manager) Unpublish(publishedPath, pendingPath string) error {
	if err := os.Rename(publishedPath, pendingPath); err != nil {
		return fmt.Errorf("failed to move file back to pending area: %w", err)
	}
	return nil
}

// PendingPath returns the full pending-area path for a bare filename.
func (m *Manager) PendingPath(name string) string {
	return filepath.Join(m.PendingDir, filepath.Base(name))
}

// PublishedPath returns the full published-area path for a bare filename.
func (m *Manager) PublishedPath(name string) string {
	return filepath.Join(m.PublishedDir, filepath.Base(name))
}
