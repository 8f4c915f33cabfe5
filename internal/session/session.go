package session

import (
	"context"
	"crypto/sha256"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

const (
	// CookieName is the name of the guest identity cookie
	CookieName = "guest_session_id"
	// CookieMaxAge is the duration the cookie is valid (30 days)
	CookieMaxAge = 30 * 24 * time.Hour
)

// devSecret is the fallback signing secret. It is publicly known, so
// cookies issued with it are effectively unprotected; Load warns about
// this but the request pipeline keeps working.
const devSecret = "dev-insecure-session-secret"

type contextKey struct{}

// Data is the payload stored inside the encrypted cookie. The cookie is
// the whole session record; the server keeps no table.
type Data struct {
	GuestID string
}

// Store issues and resolves anonymous guest identities held in a signed,
// encrypted cookie.
type Store struct {
	codec  *securecookie.SecureCookie
	secure bool
}

func NewStore(secret string, production bool) *Store {
	if secret == "" {
		log.Println("[session] empty secret, falling back to built-in development key")
		secret = devSecret
	}
	hashKey := sha256.Sum256([]byte(secret))
	blockKey := sha256.Sum256([]byte(secret + "-block"))
	codec := securecookie.New(hashKey[:], blockKey[:])
	codec.MaxAge(int(CookieMaxAge.Seconds()))
	return &Store{codec: codec, secure: production}
}

// Middleware ensures every request carries a guest identity. It runs ahead
// of all routing: downstream handlers assume the identity already exists.
// A missing or undecodable cookie is treated as "no identity yet" and a
// fresh one is issued.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		guestID, ok := s.resolve(r)
		if !ok {
			guestID = uuid.NewString()
			s.setCookie(w, guestID)
		}
		ctx := context.WithValue(r.Context(), contextKey{}, guestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GuestID returns the guest identity resolved by Middleware, or "" when
// the middleware did not run.
func GuestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

func (s *Store) resolve(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	var data Data
	if err := s.codec.Decode(CookieName, cookie.Value, &data); err != nil {
		// Tampered, expired or signed with another key; reissue silently.
		return "", false
	}
	return data.GuestID, data.GuestID != ""
}

func (s *Store) setCookie(w http.ResponseWriter, guestID string) {
	encoded, err := s.codec.Encode(CookieName, Data{GuestID: guestID})
	if err != nil {
		log.Printf("[session] cookie encode failed: %v", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(CookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secure,
	})
}
