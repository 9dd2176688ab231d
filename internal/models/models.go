package models

import (
	"time"
)

type AdminUser struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Announcement struct {
	ID          int       `json:"id"`
	Text        string    `json:"text"`
	LastUpdated time.Time `json:"last_updated"`
}

// PhotoRequest statuses. A request starts out pending and is moved
// exactly once, by an administrator, to one of the terminal states.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

type PhotoRequest struct {
	ID            int        `json:"id"`
	UserName      string     `json:"user_name"`
	Description   string     `json:"description"`
	Filename      string     `json:"filename"`
	PendingPath   string     `json:"pending_path,omitempty"`
	PublishedPath string     `json:"published_path,omitempty"`
	Status        string     `json:"status"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
}

// IsPending reports whether the request can still be approved or rejected.
func (p *PhotoRequest) IsPending() bool {
	return p.Status == StatusPending
}
