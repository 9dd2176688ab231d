package admin

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"picboard/internal/auth"
	"picboard/internal/gallery"
	"picboard/internal/models"
	"picboard/internal/moderation"
	"picboard/internal/storage"
	"picboard/internal/web"
)

type Server struct {
	db          *storage.DB
	authService *auth.AuthService
	files       *gallery.Manager
	mod         *moderation.Service
	thumbs      *gallery.Thumbnailer
}

func NewServer(db *storage.DB, authService *auth.AuthService, files *gallery.Manager, mod *moderation.Service) *Server {
	return &Server{
		db:          db,
		authService: authService,
		files:       files,
		mod:         mod,
		thumbs:      gallery.NewThumbnailer(),
	}
}

func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	data := web.PageData{
		Title:   "Login",
		ShowNav: false,
		Success: r.URL.Query().Get("success"),
	}

	if r.Method == http.MethodPost {
		username := r.FormValue("username")
		password := r.FormValue("password")

		if username == "" || password == "" {
			data.Error = "Username and password are required"
		} else {
			user, err := s.authService.Login(username, password)
			if err != nil {
				log.Printf("Error during login: %v", err)
				data.Error = "Login failed"
			} else if user == nil {
				data.Error = "Invalid username or password"
			} else {
				if err := s.authService.SetAdminSession(w, r, user); err != nil {
					log.Printf("Error setting session: %v", err)
					data.Error = "Login failed"
				} else {
					http.Redirect(w, r, "/admin", http.StatusSeeOther)
					return
				}
			}
		}
	}

	web.Render(w, "login.html", data)
}

func (s *Server) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.authService.ClearAdminSession(w, r); err != nil {
		log.Printf("Error clearing session: %v", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type requestDisplay struct {
	*models.PhotoRequest
	SubmittedAtFormatted string
	DecidedAtFormatted   string
	PreviewURL           string
}

func (s *Server) displayRequests(requests []*models.PhotoRequest) []requestDisplay {
	display := make([]requestDisplay, len(requests))
	for i, req := range requests {
		d := requestDisplay{
			PhotoRequest:         req,
			SubmittedAtFormatted: req.SubmittedAt.Format("Jan 2, 2006 3:04 PM"),
		}
		if req.DecidedAt != nil {
			d.DecidedAtFormatted = req.DecidedAt.Format("Jan 2, 2006 3:04 PM")
		}
		switch req.Status {
		case models.StatusPending:
			d.PreviewURL = "/pending/" + url.PathEscape(req.Filename) + "?thumb=1"
		case models.StatusApproved:
			d.PreviewURL = "/admin/images/" + url.PathEscape(req.Filename) + "?thumb=1"
		}
		display[i] = d
	}
	return display
}

// Dashboard: pending, approved and rejected requests, newest first.
func (s *Server) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAdminFromContext(r.Context())

	byStatus := make(map[string][]*models.PhotoRequest)
	for _, status := range []string{models.StatusPending, models.StatusApproved, models.StatusRejected} {
		requests, err := s.db.GetPhotoRequestsByStatus(status)
		if err != nil {
			log.Printf("Error loading %s requests: %v", status, err)
			requests = nil
		}
		byStatus[status] = requests
	}

	data := struct {
		web.PageData
		Pending  []requestDisplay
		Approved []requestDisplay
		Rejected []requestDisplay
	}{
		PageData: web.PageData{
			Title:    "Dashboard",
			ShowNav:  true,
			Username: user.Username,
			Success:  r.URL.Query().Get("success"),
			Error:    r.URL.Query().Get("error"),
		},
		Pending:  s.displayRequests(byStatus[models.StatusPending]),
		Approved: s.displayRequests(byStatus[models.StatusApproved]),
		Rejected: s.displayRequests(byStatus[models.StatusRejected]),
	}

	web.Render(w, "dashboard.html", data)
}

func (s *Server) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.redirectDashboard(w, r, "", "Invalid request id")
		return
	}

	req, err := s.mod.Approve(id)
	if err != nil {
		s.redirectDashboard(w, r, "", moderationError(id, "approved", err))
		return
	}

	s.redirectDashboard(w, r, fmt.Sprintf("Request %d approved and published as %s", id, req.Filename), "")
}

func (s *Server) HandleReject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.redirectDashboard(w, r, "", "Invalid request id")
		return
	}

	if _, err := s.mod.Reject(id); err != nil {
		s.redirectDashboard(w, r, "", moderationError(id, "rejected", err))
		return
	}

	s.redirectDashboard(w, r, fmt.Sprintf("Request %d rejected", id), "")
}

func moderationError(id int, action string, err error) string {
	switch {
	case errors.Is(err, moderation.ErrNotFound):
		return fmt.Sprintf("Request %d not found", id)
	case errors.Is(err, moderation.ErrNotPending):
		return fmt.Sprintf("Request %d cannot be %s: already approved or rejected", id, action)
	case errors.Is(err, moderation.ErrFileMissing):
		return fmt.Sprintf("Request %d cannot be %s: pending file is missing", id, action)
	default:
		log.Printf("Error while request %d was being %s: %v", id, action, err)
		return fmt.Sprintf("Request %d could not be %s", id, action)
	}
}

func (s *Server) redirectDashboard(w http.ResponseWriter, r *http.Request, success, errMsg string) {
	target := "/admin"
	if success != "" {
		target += "?success=" + url.QueryEscape(success)
	} else if errMsg != "" {
		target += "?error=" + url.QueryEscape(errMsg)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandleServePending serves a pending-area file for review. Only
// reachable behind the admin session; pending files are never public.
func (s *Server) HandleServePending(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "name"))
	if name == "" || name == "." || !gallery.IsImageFilename(name) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	path := s.files.PendingPath(name)
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	if r.URL.Query().Get("thumb") == "1" {
		if s.serveThumbnail(w, path) {
			return
		}
	}

	http.ServeFile(w, r, path)
}

// serveThumbnail renders a downscaled preview for the dashboard. Falls
// back to the original file when the image cannot be decoded (bmp, for
// one).
func (s *Server) serveThumbnail(w http.ResponseWriter, path string) bool {
	thumb, err := s.thumbs.Render(path)
	if err != nil {
		log.Printf("Error rendering thumbnail for %s: %v", path, err)
		return false
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(thumb)
	return true
}

// HandleServePublished mirrors the public image route for the dashboard
// previews, with thumbnail support.
func (s *Server) HandleServePublished(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "name"))
	if name == "" || name == "." || !gallery.IsImageFilename(name) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	path := s.files.PublishedPath(name)
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	if r.URL.Query().Get("thumb") == "1" {
		if s.serveThumbnail(w, path) {
			return
		}
	}

	http.ServeFile(w, r, path)
}

// Announcement editor.
func (s *Server) HandleAnnouncement(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAdminFromContext(r.Context())

	data := struct {
		web.PageData
		Announcement *models.Announcement
	}{
		PageData: web.PageData{
			Title:    "Announcement",
			ShowNav:  true,
			Username: user.Username,
		},
	}

	if r.Method == http.MethodPost {
		text := r.FormValue("text")
		if text == "" {
			data.Error = "Announcement text is required"
		} else if err := s.db.SetAnnouncement(text); err != nil {
			log.Printf("Error saving announcement: %v", err)
			data.Error = "Failed to save announcement"
		} else {
			data.Success = "Announcement updated"
		}
	}

	announcement, err := s.db.GetAnnouncement()
	if err != nil {
		log.Printf("Error loading announcement: %v", err)
	}
	data.Announcement = announcement

	web.Render(w, "announcement.html", data)
}
