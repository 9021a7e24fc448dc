package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fotopanel/admin/internal/metrics"
	"github.com/fotopanel/admin/internal/web"
)

func newTestHandler(t *testing.T) (*Handler, *Service, *memStore, *Cookies) {
	t.Helper()
	svc, store := newTestService(t)
	views, err := web.NewRenderer()
	require.NoError(t, err)
	cookies := NewCookies("cookie-secret", false, time.Hour)
	return NewHandler(svc, cookies, views, metrics.NewNop(), zap.NewNop()), svc, store, cookies
}

func postLogin(h *Handler, email, password string) *httptest.ResponseRecorder {
	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, LoginPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func withCookies(req *http.Request, rec *httptest.ResponseRecorder) *http.Request {
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestLoginSetsCookieAndRedirects(t *testing.T) {
	h, svc, _, cookies := newTestHandler(t)

	rec := postLogin(h, "me@example.com", "correct horse")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, PanelPath, rec.Header().Get("Location"))

	req := withCookies(httptest.NewRequest(http.MethodGet, PanelPath, nil), rec)
	token := cookies.Token(req)
	require.NotEmpty(t, token)

	id, err := svc.CurrentSession(req.Context(), token)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", id.Email)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	rec := postLogin(h, "me@example.com", "nope nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrInvalidCredentials.Error())
	assert.Empty(t, rec.Result().Cookies())
}

func TestLoginRequiresFields(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	rec := postLogin(h, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginPageRedirectsAuthenticated(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	login := postLogin(h, "me@example.com", "correct horse")

	rec := httptest.NewRecorder()
	h.LoginPage(rec, withCookies(httptest.NewRequest(http.MethodGet, LoginPath, nil), login))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, PanelPath, rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.LoginPage(rec, httptest.NewRequest(http.MethodGet, LoginPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/login"`)
}

func TestLogoutRedirectsEvenWhenRevocationFails(t *testing.T) {
	h, svc, store, _ := newTestHandler(t)
	login := postLogin(h, "me@example.com", "correct horse")

	store.revokeErr = errors.New("database unavailable")

	req := withCookies(httptest.NewRequest(http.MethodPost, "/logout", nil), login)
	id, err := svc.CurrentSession(req.Context(), h.cookies.Token(req))
	require.NoError(t, err)
	req = req.WithContext(WithIdentity(req.Context(), id))

	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "session cookie is expired on sign-out")
}

func TestLogoutRevokesSession(t *testing.T) {
	h, svc, _, _ := newTestHandler(t)
	login := postLogin(h, "me@example.com", "correct horse")

	req := withCookies(httptest.NewRequest(http.MethodPost, "/logout", nil), login)
	token := h.cookies.Token(req)
	id, err := svc.CurrentSession(req.Context(), token)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Logout(rec, req.WithContext(WithIdentity(req.Context(), id)))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	_, err = svc.CurrentSession(req.Context(), token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func cookieCleared(rec *httptest.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

func TestLogoutWithoutGuardRevokesSession(t *testing.T) {
	h, svc, _, _ := newTestHandler(t)
	login := postLogin(h, "me@example.com", "correct horse")

	req := withCookies(httptest.NewRequest(http.MethodPost, "/logout", nil), login)
	token := h.cookies.Token(req)

	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, cookieCleared(rec))
	_, err := svc.CurrentSession(req.Context(), token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLogoutClearsStaleCookie(t *testing.T) {
	h, svc, _, _ := newTestHandler(t)
	login := postLogin(h, "me@example.com", "correct horse")

	req := withCookies(httptest.NewRequest(http.MethodPost, "/logout", nil), login)
	id, err := svc.CurrentSession(req.Context(), h.cookies.Token(req))
	require.NoError(t, err)
	require.NoError(t, svc.SignOut(req.Context(), id))

	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))
	assert.True(t, cookieCleared(rec), "revoked session cookie is still expired")
}
