package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"picboard/internal/admin"
	"picboard/internal/auth"
	"picboard/internal/gallery"
	"picboard/internal/moderation"
	"picboard/internal/site"
	"picboard/internal/source"
	"picboard/internal/storage"
)

type Config struct {
	Port           string
	DatabasePath   string
	PendingDir     string
	PublishedDir   string
	SessionSecret  string
	SauceNaoAPIKey string
	AdminUsername  string
	AdminPassword  string
	DefaultMOTD    string
}

func main() {
	config := loadConfig()

	files, err := gallery.NewManager(config.PendingDir, config.PublishedDir)
	if err != nil {
		log.Fatalf("Failed to create image directories: %v", err)
	}

	db, err := storage.NewDB(config.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := bootstrap(db, config); err != nil {
		log.Fatalf("Failed to bootstrap database: %v", err)
	}

	authService := auth.NewAuthService(db, config.SessionSecret)
	modService := moderation.NewService(db, files)
	lookup := source.NewClient(config.SauceNaoAPIKey)
	if !lookup.Enabled() {
		log.Println("SAUCENAO_API_KEY not set; source lookups will return empty results")
	}

	siteServer := site.NewServer(db, files, lookup)
	adminServer := admin.NewServer(db, authService, files, modService)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))

	// Public surface
	r.Get("/", siteServer.HandleHome)
	r.Get("/health", siteServer.HandleHealth)
	r.Get("/images/{name}", siteServer.HandleServeImage)
	r.Get("/random-image", siteServer.HandleRandomImage)
	r.Get("/random-image-with-source", siteServer.HandleRandomImageWithSource)
	r.Get("/image-source/{filename}", siteServer.HandleImageSource)
	r.Get("/submit_photo", siteServer.HandleSubmitPhoto)
	r.Post("/submit_photo", siteServer.HandleSubmitPhoto)

	// Session management
	r.Get("/login", adminServer.HandleLogin)
	r.Post("/login", adminServer.HandleLogin)
	r.Get("/logout", adminServer.HandleLogout)

	// Moderation surface, admin session required
	r.Group(func(r chi.Router) {
		r.Use(authService.RequireAdmin)
		r.Get("/admin", adminServer.HandleDashboard)
		r.Get("/admin/images/{name}", adminServer.HandleServePublished)
		r.Get("/admin/announcement", adminServer.HandleAnnouncement)
		r.Post("/admin/announcement", adminServer.HandleAnnouncement)
		r.Get("/approve/{id}", adminServer.HandleApprove)
		r.Get("/reject/{id}", adminServer.HandleReject)
		r.Get("/pending/{name}", adminServer.HandleServePending)
	})

	log.Printf("Starting picboard server on port %s", config.Port)
	log.Printf("Pending directory: %s", config.PendingDir)
	log.Printf("Published directory: %s", config.PublishedDir)
	log.Printf("Database: %s", config.DatabasePath)

	if err := http.ListenAndServe(":"+config.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// bootstrap seeds the shared administrator credential and a default
// announcement on first run, so a fresh deployment is usable without
// manual database surgery.
func bootstrap(db *storage.DB, config Config) error {
	hasAdmins, err := db.HasAdminUsers()
	if err != nil {
		return err
	}
	if !hasAdmins {
		if _, err := db.CreateAdminUser(config.AdminUsername, config.AdminPassword); err != nil {
			return err
		}
		log.Printf("Created administrator account %q. Change the default password immediately.", config.AdminUsername)
	}

	announcement, err := db.GetAnnouncement()
	if err != nil {
		return err
	}
	if announcement == nil {
		if err := db.SetAnnouncement(config.DefaultMOTD); err != nil {
			return err
		}
	}

	return nil
}

func loadConfig() Config {
	config := Config{
		Port:           getEnv("PORT", "8080"),
		DatabasePath:   getEnv("DATABASE_PATH", "./picboard.db"),
		PendingDir:     getEnv("PENDING_DIR", "./pending_uploads"),
		PublishedDir:   getEnv("PUBLISHED_DIR", "./images"),
		SauceNaoAPIKey: os.Getenv("SAUCENAO_API_KEY"),
		AdminUsername:  getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:  getEnv("ADMIN_PASSWORD", "adminpass"),
		DefaultMOTD:    getEnv("DEFAULT_MOTD", "Welcome! Submit your photos for review."),
	}

	// Generate or load session secret
	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		bytes := make([]byte, 32)
		if _, err := rand.Read(bytes); err != nil {
			log.Fatalf("Failed to generate session secret: %v", err)
		}
		sessionSecret = hex.EncodeToString(bytes)
		log.Println("Generated new session secret. Set SESSION_SECRET environment variable to persist sessions across restarts.")
	}
	config.SessionSecret = sessionSecret

	for _, p := range []*string{&config.PendingDir, &config.PublishedDir, &config.DatabasePath} {
		if !filepath.IsAbs(*p) {
			absPath, err := filepath.Abs(*p)
			if err != nil {
				log.Fatalf("Failed to resolve path %s: %v", *p, err)
			}
			*p = absPath
		}
	}

	if port, err := strconv.Atoi(config.Port); err != nil || port < 1 || port > 65535 {
		log.Fatalf("Invalid port: %s", config.Port)
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
