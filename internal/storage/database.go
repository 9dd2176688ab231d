package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"picboard/internal/models"
)

// ErrConflict is returned by the status-guarded updates when the row was
// not in the expected state, e.g. a second approval of the same request.
var ErrConflict = errors.New("record not in expected state")

type DB struct {
	conn *sql.DB
}

func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS admin_users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS announcements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			last_updated DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS photo_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			filename TEXT NOT NULL,
			pending_path TEXT,
			published_path TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			submitted_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			decided_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_photo_requests_status ON photo_requests(status)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// Admin user methods
func (db *DB) CreateAdminUser(username, password string) (*models.AdminUser, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `INSERT INTO admin_users (username, password_hash) VALUES (?, ?)`
	result, err := db.conn.Exec(query, username, string(hashedPassword))
	if err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &models.AdminUser{
		ID:           int(id),
		Username:     username,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now(),
	}, nil
}

func (db *DB) GetAdminUserByUsername(username string) (*models.AdminUser, error) {
	query := `SELECT id, username, password_hash, created_at FROM admin_users WHERE username = ?`
	row := db.conn.QueryRow(query, username)

	var user models.AdminUser
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get admin user: %w", err)
	}

	return &user, nil
}

func (db *DB) HasAdminUsers() (bool, error) {
	query := `SELECT COUNT(*) FROM admin_users`
	var count int
	err := db.conn.QueryRow(query).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count admin users: %w", err)
	}
	return count > 0, nil
}

// Announcement methods
func (db *DB) GetAnnouncement() (*models.Announcement, error) {
	query := `SELECT id, text, last_updated FROM announcements ORDER BY id LIMIT 1`
	row := db.conn.QueryRow(query)

	var a models.Announcement
	err := row.Scan(&a.ID, &a.Text, &a.LastUpdated)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get announcement: %w", err)
	}

	return &a, nil
}

func (db *DB) SetAnnouncement(text string) error {
	existing, err := db.GetAnnouncement()
	if err != nil {
		return err
	}

	if existing == nil {
		query := `INSERT INTO announcements (text) VALUES (?)`
		if _, err := db.conn.Exec(query, text); err != nil {
			return fmt.Errorf("failed to create announcement: %w", err)
		}
		return nil
	}

	query := `UPDATE announcements SET text = ?, last_updated = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := db.conn.Exec(query, text, existing.ID); err != nil {
		return fmt.Errorf("failed to update announcement: %w", err)
	}
	return nil
}

// Photo request methods
func (db *DB) CreatePhotoRequest(userName, description, filename, pendingPath string) (*models.PhotoRequest, error) {
	query := `INSERT INTO photo_requests (user_name, description, filename, pending_path, status) VALUES (?, ?, ?, ?, ?)`
	result, err := db.conn.Exec(query, userName, description, filename, pendingPath, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to create photo request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &models.PhotoRequest{
		ID:          int(id),
		UserName:    userName,
		Description: description,
		Filename:    filename,
		PendingPath: pendingPath,
		Status:      models.StatusPending,
		SubmittedAt: time.Now(),
	}, nil
}

func (db *DB) GetPhotoRequest(id int) (*models.PhotoRequest, error) {
	query := `SELECT id, user_name, description, filename, pending_path, published_path, status, submitted_at, decided_at
		FROM photo_requests WHERE id = ?`
	row := db.conn.QueryRow(query, id)

	req, err := scanPhotoRequest(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get photo request: %w", err)
	}
	return req, nil
}

func (db *DB) GetPhotoRequestsByStatus(status string) ([]*models.PhotoRequest, error) {
	query := `SELECT id, user_name, description, filename, pending_path, published_path, status, submitted_at, decided_at
		FROM photo_requests WHERE status = ? ORDER BY submitted_at DESC, id DESC`
	rows, err := db.conn.Query(query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get photo requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.PhotoRequest
	for rows.Next() {
		req, err := scanPhotoRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, nil
}

// MarkApproved flips a pending request to approved and records where the
// file ended up. The status guard in the WHERE clause makes the update a
// compare-and-swap: a request that is no longer pending is left untouched
// and ErrConflict is returned.
func (db *DB) MarkApproved(id int, filename, publishedPath string) error {
	query := `UPDATE photo_requests
		SET status = ?, filename = ?, published_path = ?, pending_path = NULL, decided_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`
	result, err := db.conn.Exec(query, models.StatusApproved, filename, publishedPath, id, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to approve photo request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// MarkRejected flips a pending request to rejected, guarded the same way
// as MarkApproved.
func (db *DB) MarkRejected(id int) error {
	query := `UPDATE photo_requests
		SET status = ?, pending_path = NULL, decided_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`
	result, err := db.conn.Exec(query, models.StatusRejected, id, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to reject photo request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

func scanPhotoRequest(scan func(dest ...interface{}) error) (*models.PhotoRequest, error) {
	var req models.PhotoRequest
	var pendingPath, publishedPath sql.NullString
	var decidedAt sql.NullTime

	err := scan(&req.ID, &req.UserName, &req.Description, &req.Filename,
		&pendingPath, &publishedPath, &req.Status, &req.SubmittedAt, &decidedAt)
	if err != nil {
		return nil, err
	}

	if pendingPath.Valid {
		req.PendingPath = pendingPath.String
	}
	if publishedPath.Valid {
		req.PublishedPath = publishedPath.String
	}
	if decidedAt.Valid {
		req.DecidedAt = &decidedAt.Time
	}

	return &req, nil
}
