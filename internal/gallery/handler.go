package gallery

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fotopanel/admin/internal/photo"
	"github.com/fotopanel/admin/internal/response"
	"github.com/fotopanel/admin/internal/web"
)

// ConfirmHeader carries the delete confirmation token.
const ConfirmHeader = "X-Confirm-Token"

// Handler holds HTTP handlers for the gallery.
type Handler struct {
	svc   *Service
	views *web.Renderer
	log   *zap.Logger
}

// NewHandler creates a new gallery Handler.
func NewHandler(svc *Service, views *web.Renderer, log *zap.Logger) *Handler {
	return &Handler{svc: svc, views: views, log: log}
}

// List godoc
//
//	@Summary		List photos
//	@Description	Returns every uploaded photo, newest first.
//	@Tags			photos
//	@Produce		json
//	@Security		SessionCookie
//	@Success		200	{object}	response.Envelope{data=[]photo.Record}
//	@Failure		401	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/photos [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.Load(r.Context())
	if err != nil {
		response.BadGateway(w, err.Error())
		return
	}
	response.OK(w, records)
}

type fragmentView struct {
	Records []photo.Record
}

// Fragment renders the gallery grid as an HTML fragment for in-page refresh.
func (h *Handler) Fragment(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.Refresh(r.Context())
	if err != nil {
		response.BadGateway(w, err.Error())
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	if err := h.views.Render(w, http.StatusOK, "gallery.html", fragmentView{Records: records}); err != nil {
		h.log.Error("render gallery", zap.Error(err))
		response.InternalError(w)
	}
}

// RequestDelete godoc
//
//	@Summary		Request a photo deletion
//	@Description	Returns a short-lived confirmation token and a prompt naming the photo. Send the token back in the X-Confirm-Token header of the DELETE request.
//	@Tags			photos
//	@Produce		json
//	@Security		SessionCookie
//	@Param			id	path		string	true	"Photo ID"
//	@Success		200	{object}	response.Envelope{data=Confirmation}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/photos/{id}/delete-request [post]
func (h *Handler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.svc.RequestDelete(r.Context(), id)
	if errors.Is(err, photo.ErrNotFound) {
		response.NotFound(w, "image not found")
		return
	}
	if err != nil {
		h.log.Error("failed to prepare deletion", zap.String("id", id), zap.Error(err))
		response.BadGateway(w, "could not prepare the deletion, try again")
		return
	}
	response.OK(w, c)
}

// Delete godoc
//
//	@Summary		Delete a photo
//	@Description	Removes the stored file, then its record. Deleting a photo that is already gone succeeds.
//	@Tags			photos
//	@Security		SessionCookie
//	@Param			id				path	string	true	"Photo ID"
//	@Param			X-Confirm-Token	header	string	true	"Token from the delete request"
//	@Success		204
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/photos/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.svc.Delete(r.Context(), id, r.Header.Get(ConfirmHeader))
	switch {
	case err == nil:
		response.NoContent(w)
	case errors.Is(err, ErrInvalidConfirmation):
		response.Forbidden(w, "deletion was not confirmed or the confirmation expired")
	default:
		response.BadGateway(w, err.Error())
	}
}
