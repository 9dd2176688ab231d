package gallery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain filename",
			input:    "cat.png",
			expected: "cat.png",
		},
		{
			name:     "strips directories",
			input:    "../../etc/passwd",
			expected: "passwd",
		},
		{
			name:     "strips windows directories",
			input:    `C:\Users\evil\cat.png`,
			expected: "cat.png",
		},
		{
			name:     "replaces disallowed characters",
			input:    "my photo (1)!.jpg",
			expected: "my_photo__1__.jpg",
		},
		{
			name:     "keeps dash underscore dot",
			input:    "a-b_c.d.png",
			expected: "a-b_c.d.png",
		},
		{
			name:     "dot only becomes empty",
			input:    "...",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.input)
			if got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolveCollision(t *testing.T) {
	tests := []struct {
		name     string
		desired  string
		taken    []string
		expected string
	}{
		{
			name:     "no collision",
			desired:  "cat.png",
			taken:    nil,
			expected: "cat.png",
		},
		{
			name:     "single collision",
			desired:  "cat.png",
			taken:    []string{"cat.png"},
			expected: "cat_1.png",
		},
		{
			name:     "suffixes taken in order",
			desired:  "cat.png",
			taken:    []string{"cat.png", "cat_1.png", "cat_2.png"},
			expected: "cat_3.png",
		},
		{
			name:     "gap in suffixes uses first free",
			desired:  "cat.png",
			taken:    []string{"cat.png", "cat_2.png"},
			expected: "cat_1.png",
		},
		{
			name:     "no extension",
			desired:  "readme",
			taken:    []string{"readme"},
			expected: "readme_1",
		},
		{
			name:     "double extension keeps last",
			desired:  "archive.tar.gz",
			taken:    []string{"archive.tar.gz"},
			expected: "archive.tar_1.gz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := make(map[string]bool, len(tt.taken))
			for _, name := range tt.taken {
				set[name] = true
			}

			got := ResolveCollision(tt.desired, func(name string) bool { return set[name] })
			if got != tt.expected {
				t.Errorf("ResolveCollision(%q) = %q, want %q", tt.desired, got, tt.expected)
			}
			if set[got] {
				t.Errorf("ResolveCollision(%q) returned a taken name %q", tt.desired, got)
			}
		})
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	base := t.TempDir()
	m, err := NewManager(filepath.Join(base, "pending"), filepath.Join(base, "published"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestSavePending(t *testing.T) {
	m := newTestManager(t)

	first, err := m.SavePending("cat.png", strings.NewReader("alice"))
	if err != nil {
		t.Fatalf("SavePending: %v", err)
	}
	if first != "cat.png" {
		t.Errorf("first name = %q, want cat.png", first)
	}

	second, err := m.SavePending("cat.png", strings.NewReader("bob"))
	if err != nil {
		t.Fatalf("SavePending second: %v", err)
	}
	if second != "cat_1.png" {
		t.Errorf("second name = %q, want cat_1.png", second)
	}

	data, err := os.ReadFile(m.PendingPath(second))
	if err != nil {
		t.Fatalf("reading second file: %v", err)
	}
	if string(data) != "bob" {
		t.Errorf("second file contents = %q, want %q", data, "bob")
	}
}

func TestSavePendingRejectsEmptyName(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.SavePending("...", strings.NewReader("x")); err == nil {
		t.Error("expected error for filename that sanitizes to empty")
	}
}

func TestPublish(t *testing.T) {
	m := newTestManager(t)

	name, err := m.SavePending("cat.png", strings.NewReader("new"))
	if err != nil {
		t.Fatalf("SavePending: %v", err)
	}

	// Occupy the desired name in the published area.
	if err := os.WriteFile(m.PublishedPath("cat.png"), []byte("old"), 0644); err != nil {
		t.Fatalf("seeding published file: %v", err)
	}

	finalName, finalPath, err := m.Publish(m.PendingPath(name), name)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if finalName != "cat_1.png" {
		t.Errorf("final name = %q, want cat_1.png", finalName)
	}
	if finalPath != m.PublishedPath("cat_1.png") {
		t.Errorf("final path = %q, want %q", finalPath, m.PublishedPath("cat_1.png"))
	}

	if _, err := os.Stat(m.PendingPath(name)); !os.IsNotExist(err) {
		t.Error("pending file should be gone after publish")
	}
	data, err := os.ReadFile(finalPath)
	if err != nil {
		t.Fatalf("reading published file: %v", err)
	}
	if string(data) != "new" {
		t.Errorf("published contents = %q, want %q", data, "new")
	}
	if old, _ := os.ReadFile(m.PublishedPath("cat.png")); string(old) != "old" {
		t.Error("pre-existing published file was overwritten")
	}
}

func TestPublishMissingSource(t *testing.T) {
	m := newTestManager(t)

	if _, _, err := m.Publish(m.PendingPath("ghost.png"), "ghost.png"); err == nil {
		t.Error("expected error when the pending file does not exist")
	}
}
