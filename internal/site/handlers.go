package site

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"picboard/internal/gallery"
	"picboard/internal/models"
	"picboard/internal/source"
	"picboard/internal/storage"
	"picboard/internal/web"
)

// Extensions accepted from visitor submissions. Narrower than what the
// picker serves: bmp uploads were never accepted from the public form.
var submitExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

const maxUploadBytes = 16 << 20 // 16MB

type Server struct {
	db     *storage.DB
	files  *gallery.Manager
	lookup *source.Client
}

func NewServer(db *storage.DB, files *gallery.Manager, lookup *source.Client) *Server {
	return &Server{
		db:     db,
		files:  files,
		lookup: lookup,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// Home page, with the current announcement if one is set.
func (s *Server) HandleHome(w http.ResponseWriter, r *http.Request) {
	announcement, err := s.db.GetAnnouncement()
	if err != nil {
		log.Printf("Error loading announcement: %v", err)
	}

	data := struct {
		web.PageData
		Announcement *models.Announcement
	}{
		PageData:     web.PageData{Title: "Home"},
		Announcement: announcement,
	}

	web.Render(w, "home.html", data)
}

func (s *Server) HandleServeImage(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "name"))
	if name == "" || name == "." || !gallery.IsImageFilename(name) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Image not found."})
		return
	}

	path := s.files.PublishedPath(name)
	if _, err := os.Stat(path); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Image not found."})
		return
	}

	http.ServeFile(w, r, path)
}

func (s *Server) HandleRandomImage(w http.ResponseWriter, r *http.Request) {
	img, err := s.files.RandomImage()
	if err != nil {
		s.writeImageError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, img)
}

type sourceResponse struct {
	SourceResults []source.Result `json:"source_results"`
}

func (s *Server) HandleImageSource(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "filename"))
	if name == "" || name == "." || !gallery.IsImageFilename(name) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Image not found."})
		return
	}

	path := s.files.PublishedPath(name)
	if _, err := os.Stat(path); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Image not found."})
		return
	}

	results, reason := s.lookup.Lookup(path)
	if reason != "" {
		// Best effort: the caller still gets a normal, empty response.
		log.Printf("Source lookup for %s returned no results: %s", name, reason)
	}
	if results == nil {
		results = []source.Result{}
	}

	writeJSON(w, http.StatusOK, sourceResponse{SourceResults: results})
}

type randomImageWithSourceResponse struct {
	ImageURL      string          `json:"imageUrl"`
	Filename      string          `json:"filename"`
	SourceResults []source.Result `json:"source_results"`
}

// HandleRandomImageWithSource picks a random image and attaches
// best-effort source metadata in a single response.
func (s *Server) HandleRandomImageWithSource(w http.ResponseWriter, r *http.Request) {
	img, err := s.files.RandomImage()
	if err != nil {
		s.writeImageError(w, err)
		return
	}

	results, reason := s.lookup.Lookup(s.files.PublishedPath(img.Filename))
	if reason != "" {
		log.Printf("Source lookup for %s returned no results: %s", img.Filename, reason)
	}
	if results == nil {
		results = []source.Result{}
	}

	writeJSON(w, http.StatusOK, randomImageWithSourceResponse{
		ImageURL:      img.URL,
		Filename:      img.Filename,
		SourceResults: results,
	})
}

func (s *Server) writeImageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gallery.ErrNoImages):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "No images found in the folder."})
	case errors.Is(err, gallery.ErrFolderMissing):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Images folder not found on the server."})
	default:
		log.Printf("Error picking random image: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "An internal server error occurred."})
	}
}

// Photo submission: form page on GET, multipart upload on POST. A
// successful submission saves the file into the pending area and creates
// a pending photo request for the administrator to review.
func (s *Server) HandleSubmitPhoto(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		data := web.PageData{
			Title:   "Submit a Photo",
			Success: r.URL.Query().Get("success"),
			Error:   r.URL.Query().Get("error"),
		}
		web.Render(w, "submit.html", data)
		return
	}

	// ParseMultipartForm alone only bounds in-memory buffering; the
	// reader is what actually caps the request body.
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.redirectSubmit(w, r, "", "File is too large (16MB maximum)")
			return
		}
		s.redirectSubmit(w, r, "", "Failed to parse upload form")
		return
	}

	userName := strings.TrimSpace(r.FormValue("user_name"))
	if userName == "" {
		userName = "Anonymous"
	}
	description := strings.TrimSpace(r.FormValue("description"))

	file, header, err := r.FormFile("photo_file")
	if err != nil {
		s.redirectSubmit(w, r, "", "No file selected")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.redirectSubmit(w, r, "", "No file selected")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !submitExtensions[ext] {
		s.redirectSubmit(w, r, "", "File type not allowed. Please upload an image (png, jpg, jpeg, gif)")
		return
	}

	savedName, err := s.files.SavePending(header.Filename, file)
	if err != nil {
		log.Printf("Error saving submitted file: %v", err)
		s.redirectSubmit(w, r, "", "An error occurred during file upload. Please try again")
		return
	}

	_, err = s.db.CreatePhotoRequest(userName, description, savedName, s.files.PendingPath(savedName))
	if err != nil {
		log.Printf("Error creating photo request: %v", err)
		// No record means no reference to the saved file; remove it.
		if rmErr := os.Remove(s.files.PendingPath(savedName)); rmErr != nil {
			log.Printf("Error cleaning up pending file %s: %v", savedName, rmErr)
		}
		s.redirectSubmit(w, r, "", "An error occurred during file upload. Please try again")
		return
	}

	s.redirectSubmit(w, r, "Your photo has been submitted. We will review it soon!", "")
}

func (s *Server) redirectSubmit(w http.ResponseWriter, r *http.Request, success, errMsg string) {
	target := "/submit_photo"
	if success != "" {
		target += "?success=" + url.QueryEscape(success)
	} else if errMsg != "" {
		target += "?error=" + url.QueryEscape(errMsg)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.db.HasAdminUsers(); err != nil {
		log.Printf("Health check failed - database error: %v", err)
		http.Error(w, "Database unavailable", http.StatusServiceUnavailable)
		return
	}

	imageCount := 0
	if names, err := s.files.ListImages(); err == nil {
		imageCount = len(names)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"image_count": imageCount,
	})
}
