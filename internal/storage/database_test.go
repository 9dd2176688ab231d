package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"picboard/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAdminUsers(t *testing.T) {
	db := newTestDB(t)

	has, err := db.HasAdminUsers()
	if err != nil {
		t.Fatalf("HasAdminUsers: %v", err)
	}
	if has {
		t.Error("fresh database reports admin users")
	}

	created, err := db.CreateAdminUser("admin", "secret123")
	if err != nil {
		t.Fatalf("CreateAdminUser: %v", err)
	}
	if created.PasswordHash == "secret123" {
		t.Error("password stored in plain text")
	}

	user, err := db.GetAdminUserByUsername("admin")
	if err != nil {
		t.Fatalf("GetAdminUserByUsername: %v", err)
	}
	if user == nil || user.Username != "admin" {
		t.Fatalf("user = %+v, want admin", user)
	}

	missing, err := db.GetAdminUserByUsername("nobody")
	if err != nil {
		t.Fatalf("GetAdminUserByUsername(nobody): %v", err)
	}
	if missing != nil {
		t.Errorf("unknown username returned %+v", missing)
	}
}

func TestAnnouncement(t *testing.T) {
	db := newTestDB(t)

	a, err := db.GetAnnouncement()
	if err != nil {
		t.Fatalf("GetAnnouncement: %v", err)
	}
	if a != nil {
		t.Fatalf("fresh database has announcement %+v", a)
	}

	if err := db.SetAnnouncement("hello"); err != nil {
		t.Fatalf("SetAnnouncement: %v", err)
	}
	if err := db.SetAnnouncement("updated"); err != nil {
		t.Fatalf("SetAnnouncement update: %v", err)
	}

	a, err = db.GetAnnouncement()
	if err != nil {
		t.Fatalf("GetAnnouncement: %v", err)
	}
	if a == nil || a.Text != "updated" {
		t.Fatalf("announcement = %+v, want text %q", a, "updated")
	}
}

func TestPhotoRequestLifecycle(t *testing.T) {
	db := newTestDB(t)

	created, err := db.CreatePhotoRequest("Alice", "a cat", "cat.png", "/pending/cat.png")
	if err != nil {
		t.Fatalf("CreatePhotoRequest: %v", err)
	}

	got, err := db.GetPhotoRequest(created.ID)
	if err != nil {
		t.Fatalf("GetPhotoRequest: %v", err)
	}
	if got.Status != models.StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
	if got.PendingPath != "/pending/cat.png" {
		t.Errorf("pending path = %q", got.PendingPath)
	}
	if got.DecidedAt != nil {
		t.Error("fresh request has a decision timestamp")
	}

	pending, err := db.GetPhotoRequestsByStatus(models.StatusPending)
	if err != nil {
		t.Fatalf("GetPhotoRequestsByStatus: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != created.ID {
		t.Errorf("pending list = %+v", pending)
	}

	if err := db.MarkApproved(created.ID, "cat_1.png", "/images/cat_1.png"); err != nil {
		t.Fatalf("MarkApproved: %v", err)
	}

	got, err = db.GetPhotoRequest(created.ID)
	if err != nil {
		t.Fatalf("GetPhotoRequest after approve: %v", err)
	}
	if got.Status != models.StatusApproved {
		t.Errorf("status = %q, want approved", got.Status)
	}
	if got.Filename != "cat_1.png" {
		t.Errorf("filename = %q, want cat_1.png", got.Filename)
	}
	if got.PublishedPath != "/images/cat_1.png" {
		t.Errorf("published path = %q", got.PublishedPath)
	}
	if got.PendingPath != "" {
		t.Errorf("pending path = %q, want cleared", got.PendingPath)
	}
	if got.DecidedAt == nil {
		t.Error("decision timestamp not set")
	}
}

func TestStatusGuardIsCompareAndSwap(t *testing.T) {
	db := newTestDB(t)

	created, err := db.CreatePhotoRequest("Alice", "", "cat.png", "/pending/cat.png")
	if err != nil {
		t.Fatalf("CreatePhotoRequest: %v", err)
	}

	if err := db.MarkRejected(created.ID); err != nil {
		t.Fatalf("MarkRejected: %v", err)
	}

	if err := db.MarkApproved(created.ID, "cat.png", "/images/cat.png"); !errors.Is(err, ErrConflict) {
		t.Errorf("MarkApproved on rejected: err = %v, want ErrConflict", err)
	}
	if err := db.MarkRejected(created.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("second MarkRejected: err = %v, want ErrConflict", err)
	}

	got, err := db.GetPhotoRequest(created.ID)
	if err != nil {
		t.Fatalf("GetPhotoRequest: %v", err)
	}
	if got.Status != models.StatusRejected || got.PublishedPath != "" {
		t.Errorf("record mutated by conflicting update: %+v", got)
	}

	if err := db.MarkApproved(99999, "x.png", "/images/x.png"); !errors.Is(err, ErrConflict) {
		t.Errorf("MarkApproved on missing id: err = %v, want ErrConflict", err)
	}
}
