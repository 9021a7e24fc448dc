package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fotopanel/admin/internal/auth"
	"github.com/fotopanel/admin/internal/response"
)

// SessionChecker resolves a session token into an identity.
type SessionChecker interface {
	CurrentSession(ctx context.Context, token string) (*auth.Identity, error)
}

// TokenReader extracts the session token from a request.
type TokenReader interface {
	Token(r *http.Request) string
}

// RequireSession returns middleware that admits only requests with an active
// session and injects the identity into the request context. Any other
// request, including one whose session could not be checked, is passed to
// deny.
func RequireSession(checker SessionChecker, tokens TokenReader, log *zap.Logger, deny http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := checker.CurrentSession(r.Context(), tokens.Token(r))
			if err != nil {
				if errors.Is(err, auth.ErrSessionCheckFailed) {
					log.Error("session check failed", zap.String("path", r.URL.Path), zap.Error(err))
				}
				deny(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// RedirectToLogin sends page requests to the login form.
func RedirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}

// Unauthorized answers API requests with a 401 envelope.
func Unauthorized(w http.ResponseWriter, _ *http.Request) {
	response.Unauthorized(w, "authentication required")
}
