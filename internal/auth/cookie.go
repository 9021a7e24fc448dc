package auth

import (
	"crypto/sha256"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const (
	sessionCookieName = "panel_session"
	tokenValueKey     = "token"
)

// Cookies stores the session token in a signed and encrypted cookie.
type Cookies struct {
	store *sessions.CookieStore
}

// NewCookies creates a cookie store whose keys are derived from secret.
func NewCookies(secret string, secure bool, ttl time.Duration) *Cookies {
	store := sessions.NewCookieStore(
		createSessionKey(secret),
		createSessionKey(secret+"encryption"),
	)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Cookies{store: store}
}

// Token returns the session token carried by r, or "" when there is none
// or the cookie cannot be decoded.
func (c *Cookies) Token(r *http.Request) string {
	sess, err := c.store.Get(r, sessionCookieName)
	if err != nil {
		return ""
	}
	token, _ := sess.Values[tokenValueKey].(string)
	return token
}

// Save writes token into the session cookie.
func (c *Cookies) Save(w http.ResponseWriter, r *http.Request, token string) error {
	// Get returns a fresh session alongside a decode error; that session is still usable.
	sess, _ := c.store.Get(r, sessionCookieName)
	sess.Values[tokenValueKey] = token
	return sess.Save(r, w)
}

// Clear expires the session cookie.
func (c *Cookies) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := c.store.Get(r, sessionCookieName)
	delete(sess.Values, tokenValueKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// createSessionKey derives a 32-byte key (AES-256 sized) from seed.
func createSessionKey(seed string) []byte {
	sum := sha256.Sum256([]byte(seed))
	return sum[:]
}
