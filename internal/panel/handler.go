// Package panel serves the admin page that hosts the upload area and the gallery.
package panel

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/fotopanel/admin/internal/auth"
	"github.com/fotopanel/admin/internal/web"
)

// Handler renders the admin page.
type Handler struct {
	views *web.Renderer
	log   *zap.Logger
}

// NewHandler creates a new panel Handler.
func NewHandler(views *web.Renderer, log *zap.Logger) *Handler {
	return &Handler{views: views, log: log}
}

type pageView struct {
	Email string
}

// Page renders the panel for the signed-in admin. It must sit behind the
// session guard; without an identity it redirects to the login page.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	if err := h.views.Render(w, http.StatusOK, "admin.html", pageView{Email: id.Email}); err != nil {
		h.log.Error("render admin page", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// Home sends the site root to the panel.
func Home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, auth.PanelPath, http.StatusFound)
}
