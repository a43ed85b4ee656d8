package authapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/seanWLawrence/checklists-sub000/cmd/internal/clock"
)

const (
	accessCookieBase  = "accessToken"
	refreshCookieBase = "refreshToken"
	hostCookiePrefix  = "__Host-"
)

// cookieJar names and scopes the session cookies.
//
// With a canonical URL the names carry the __Host- prefix, which browsers only
// accept with Secure, Path=/ and no Domain. Plain names keep local HTTP
// development working.
type cookieJar struct {
	access     string
	refresh    string
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clock.Clock
}

// newCookieJar stamps Expires from c, the same clock that signs the tokens.
func newCookieJar(cfg Config, c clock.Clock, accessTTL, refreshTTL time.Duration) cookieJar {
	if c == nil {
		c = clock.Real()
	}
	j := cookieJar{
		access:     accessCookieBase,
		refresh:    refreshCookieBase,
		secure:     cfg.Production(),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      c,
	}
	if strings.TrimSpace(cfg.CanonicalURL) != "" {
		j.access = hostCookiePrefix + accessCookieBase
		j.refresh = hostCookiePrefix + refreshCookieBase
		j.secure = true
	}
	return j
}

func (j cookieJar) set(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		Expires:  j.clock.Now().Add(ttl).UTC(),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (j cookieJar) setAccess(w http.ResponseWriter, token string) {
	j.set(w, j.access, token, j.accessTTL)
}

func (j cookieJar) setRefresh(w http.ResponseWriter, token string) {
	j.set(w, j.refresh, token, j.refreshTTL)
}

func (j cookieJar) expire(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (j cookieJar) clear(w http.ResponseWriter) {
	j.expire(w, j.access)
	j.expire(w, j.refresh)
}

func (j cookieJar) read(r *http.Request) (access, refresh string) {
	return cookieValue(r, j.access), cookieValue(r, j.refresh)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
