// Package session issues the anonymous shopper session cookie that keys the
// cart. It carries no credentials.
package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	CookieName = "yogurt_session"
	DefaultTTL = 30 * 24 * time.Hour
)

type Service struct {
	ttl    time.Duration
	secure bool
}

func New(ttl time.Duration, secure bool) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{ttl: ttl, secure: secure}
}

// Lookup returns the session id carried by r, if it is a well-formed UUID.
func (s *Service) Lookup(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(strings.TrimSpace(c.Value))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// Ensure returns the request's session id, issuing a new one and setting
// the cookie on w when the request has none.
func (s *Service) Ensure(w http.ResponseWriter, r *http.Request) (id string, issued bool) {
	if id, ok := s.Lookup(r); ok {
		return id, false
	}
	id = uuid.NewString()
	http.SetCookie(w, s.Cookie(id))
	return id, true
}

// Cookie builds the session cookie for id.
func (s *Service) Cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		Expires:  time.Now().Add(s.ttl),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
