package moderation

import (
	"errors"
	"log"
	"os"
	"sync"

	"picboard/internal/gallery"
	"picboard/internal/models"
	"picboard/internal/storage"
)

var (
	// ErrNotFound means no photo request exists for the given id.
	ErrNotFound = errors.New("photo request not found")
	// ErrNotPending means the request already reached a terminal state.
	ErrNotPending = errors.New("photo request is not pending")
	// ErrFileMissing means the pending file is gone from disk, so the
	// request cannot be approved.
	ErrFileMissing = errors.New("pending file is missing")
)

// Service applies the approve/reject transitions, keeping the record and
// the filesystem consistent. Transitions for the same request id are
// serialized through a per-id lock; the storage layer additionally guards
// the update on the stored status, so a lost race surfaces as
// ErrNotPending instead of a double move.
type Service struct {
	db    *storage.DB
	files *gallery.Manager

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewService(db *storage.DB, files *gallery.Manager) *Service {
	return &Service{
		db:    db,
		files: files,
		locks: make(map[int]*sync.Mutex),
	}
}

func (s *Service) lockFor(id int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// release drops the per-id lock once a request is terminal, so the map
// does not grow with every moderated request. A waiter still holding the
// old mutex is harmless: the status guard in storage rejects its update.
func (s *Service) release(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, id)
}

// Approve moves a pending request's file into the published area and
// marks the record approved. Nothing changes unless both the move and the
// record update succeed; a record update failure rolls the move back.
func (s *Service) Approve(id int) (*models.PhotoRequest, error) {
	l := s.lockFor(id)
	l.Lock()
	terminal := false
	defer func() {
		l.Unlock()
		if terminal {
			s.release(id)
		}
	}()

	req, err := s.db.GetPhotoRequest(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		terminal = true
		return nil, ErrNotFound
	}
	if !req.IsPending() {
		terminal = true
		return nil, ErrNotPending
	}
	if req.PendingPath == "" {
		return nil, ErrFileMissing
	}
	if _, err := os.Stat(req.PendingPath); err != nil {
		return nil, ErrFileMissing
	}

	finalName, publishedPath, err := s.files.Publish(req.PendingPath, req.Filename)
	if err != nil {
		return nil, err
	}

	if err := s.db.MarkApproved(id, finalName, publishedPath); err != nil {
		// The file is already published but the record never committed;
		// move it back so the two stay consistent.
		if rbErr := s.files.Unpublish(publishedPath, req.PendingPath); rbErr != nil {
			log.Printf("Failed to roll back published file for request %d: %v", id, rbErr)
		}
		if errors.Is(err, storage.ErrConflict) {
			terminal = true
			return nil, ErrNotPending
		}
		return nil, err
	}

	terminal = true
	return s.db.GetPhotoRequest(id)
}

// Reject marks a pending request rejected and deletes its pending file.
// A failed delete is logged but does not block the transition; the
// record no longer references the file either way.
func (s *Service) Reject(id int) (*models.PhotoRequest, error) {
	l := s.lockFor(id)
	l.Lock()
	terminal := false
	defer func() {
		l.Unlock()
		if terminal {
			s.release(id)
		}
	}()

	req, err := s.db.GetPhotoRequest(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		terminal = true
		return nil, ErrNotFound
	}
	if !req.IsPending() {
		terminal = true
		return nil, ErrNotPending
	}

	if req.PendingPath != "" {
		if err := os.Remove(req.PendingPath); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to delete pending file for request %d: %v", id, err)
		}
	}

	if err := s.db.MarkRejected(id); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			terminal = true
			return nil, ErrNotPending
		}
		return nil, err
	}

	terminal = true
	return s.db.GetPhotoRequest(id)
}
