package auth

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fotopanel/admin/internal/metrics"
	"github.com/fotopanel/admin/internal/web"
)

// Routes the handlers redirect between.
const (
	LoginPath = "/login"
	PanelPath = "/admin"
)

// Handler holds HTTP handlers for the login page and sign-out.
type Handler struct {
	svc     *Service
	cookies *Cookies
	views   *web.Renderer
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service, cookies *Cookies, views *web.Renderer, m *metrics.Metrics, log *zap.Logger) *Handler {
	return &Handler{svc: svc, cookies: cookies, views: views, metrics: m, log: log}
}

type loginView struct {
	Email string
	Error string
}

// LoginPage renders the sign-in form. Visitors who already hold a valid
// session go straight to the panel.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.CurrentSession(r.Context(), h.cookies.Token(r)); err == nil {
		http.Redirect(w, r, PanelPath, http.StatusSeeOther)
		return
	}
	h.render(w, http.StatusOK, loginView{})
}

// Login handles the sign-in form submission.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, loginView{Error: "invalid form submission"})
		return
	}
	email := r.PostForm.Get("email")
	password := r.PostForm.Get("password")
	if email == "" || password == "" {
		h.render(w, http.StatusBadRequest, loginView{Email: email, Error: "email and password are required"})
		return
	}

	token, _, err := h.svc.Login(r.Context(), email, password)
	if errors.Is(err, ErrInvalidCredentials) {
		h.metrics.Logins.WithLabelValues("rejected").Inc()
		h.log.Warn("rejected sign-in", zap.String("email", email), zap.String("remote", r.RemoteAddr))
		h.render(w, http.StatusUnauthorized, loginView{Email: email, Error: ErrInvalidCredentials.Error()})
		return
	}
	if err != nil {
		h.metrics.Logins.WithLabelValues("error").Inc()
		h.log.Error("sign-in failed", zap.Error(err))
		h.render(w, http.StatusInternalServerError, loginView{Email: email, Error: "sign-in is unavailable, try again later"})
		return
	}

	if err := h.cookies.Save(w, r, token); err != nil {
		h.metrics.Logins.WithLabelValues("error").Inc()
		h.log.Error("write session cookie", zap.Error(err))
		h.render(w, http.StatusInternalServerError, loginView{Email: email, Error: "sign-in is unavailable, try again later"})
		return
	}
	h.metrics.Logins.WithLabelValues("accepted").Inc()
	http.Redirect(w, r, PanelPath, http.StatusSeeOther)
}

// Logout revokes the session and always lands on the login page; a failed
// revocation is logged, not shown. It is served without the session guard
// so a stale or revoked cookie is still cleared.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		if current, err := h.svc.CurrentSession(r.Context(), h.cookies.Token(r)); err == nil {
			id, ok = current, true
		}
	}
	if ok {
		if err := h.svc.SignOut(r.Context(), id); err != nil {
			h.log.Warn("session revocation failed", zap.String("session_id", id.SessionID), zap.Error(err))
		}
	}
	if err := h.cookies.Clear(w, r); err != nil {
		h.log.Warn("clear session cookie", zap.Error(err))
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, status int, v loginView) {
	if err := h.views.Render(w, status, "login.html", v); err != nil {
		h.log.Error("render login page", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
