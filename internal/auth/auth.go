package auth

import (
	"context"
	"encoding/hex"
	"log"
	"net/http"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"picboard/internal/models"
	"picboard/internal/storage"
)

type contextKey string

const (
	sessionName        = "picboard-session"
	adminUserKey       = contextKey("admin_user")
	sessionUserIDKey   = "user_id"
	sessionUsernameKey = "username"
)

type AuthService struct {
	db    *storage.DB
	store sessions.Store
}

func NewAuthService(db *storage.DB, sessionSecret string) *AuthService {
	keyBytes := normalizeSecret(sessionSecret)

	store := sessions.NewCookieStore(keyBytes)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   24 * 60 * 60, // 24 hours
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		SameSite: http.SameSiteLaxMode,
	}

	return &AuthService{
		db:    db,
		store: store,
	}
}

// normalizeSecret turns the configured secret into exactly 32 bytes, the
// size the cookie store needs for AES-256. Hex-encoded secrets are
// decoded first.
func normalizeSecret(secret string) []byte {
	var keyBytes []byte

	if len(secret)%2 == 0 && len(secret) >= 32 {
		decoded, err := hex.DecodeString(secret)
		if err != nil {
			keyBytes = []byte(secret)
		} else {
			keyBytes = decoded
		}
	} else {
		keyBytes = []byte(secret)
	}

	if len(keyBytes) > 32 {
		keyBytes = keyBytes[:32]
	} else if len(keyBytes) < 32 {
		padded := make([]byte, 32)
		copy(padded, keyBytes)
		keyBytes = padded
	}

	return keyBytes
}

// Login checks the shared administrator credential. A nil user with a
// nil error means the credentials did not match.
func (a *AuthService) Login(username, password string) (*models.AdminUser, error) {
	user, err := a.db.GetAdminUserByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, nil
	}

	return user, nil
}

func (a *AuthService) SetAdminSession(w http.ResponseWriter, r *http.Request, user *models.AdminUser) error {
	session, err := a.store.Get(r, sessionName)
	if err != nil {
		return err
	}

	session.Values[sessionUserIDKey] = user.ID
	session.Values[sessionUsernameKey] = user.Username

	return session.Save(r, w)
}

func (a *AuthService) ClearAdminSession(w http.ResponseWriter, r *http.Request) error {
	session, err := a.store.Get(r, sessionName)
	if err != nil {
		return err
	}

	session.Values = make(map[interface{}]interface{})
	session.Options.MaxAge = -1

	return session.Save(r, w)
}

func (a *AuthService) GetAdminFromSession(r *http.Request) (*models.AdminUser, error) {
	session, err := a.store.Get(r, sessionName)
	if err != nil {
		return nil, err
	}

	userID, ok := session.Values[sessionUserIDKey].(int)
	if !ok {
		return nil, nil
	}

	username, ok := session.Values[sessionUsernameKey].(string)
	if !ok {
		return nil, nil
	}

	return &models.AdminUser{
		ID:       userID,
		Username: username,
	}, nil
}

// RequireAdmin gates a handler behind the administrator session,
// redirecting to the login page when no valid session is present. The
// authenticated principal rides on the request context, never on shared
// state.
func (a *AuthService) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.GetAdminFromSession(r)
		if err != nil {
			log.Printf("Error checking admin session: %v", err)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		if user == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), adminUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetAdminFromContext(ctx context.Context) *models.AdminUser {
	user, ok := ctx.Value(adminUserKey).(*models.AdminUser)
	if !ok {
		return nil
	}
	return user
}
