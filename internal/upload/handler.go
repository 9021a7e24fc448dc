package upload

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/fotopanel/admin/internal/response"
)

// multipartMemory is the part of a multipart body kept in memory; the rest spills to temp files.
const multipartMemory = 8 << 20

// Handler holds HTTP handlers for uploads.
type Handler struct {
	svc      *Service
	maxBytes int64
	log      *zap.Logger
}

// NewHandler creates a new upload Handler. maxBytes caps the whole request body.
func NewHandler(svc *Service, maxBytes int64, log *zap.Logger) *Handler {
	return &Handler{svc: svc, maxBytes: maxBytes, log: log}
}

// Upload godoc
//
//	@Summary		Upload photos
//	@Description	Stores the files of the multipart field "files" one at a time, in order. The first failure stops the batch; files after it are not attempted. A failed batch still reports the files stored before it.
//	@Tags			photos
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		SessionCookie
//	@Param			files	formData	file	true	"Images (repeat the field for several files)"
//	@Success		201		{object}	response.Envelope{data=BatchReport}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope{data=BatchReport}
//	@Router			/photos [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxBytes {
		response.RequestTooLarge(w, "upload exceeds the size limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RequestTooLarge(w, "upload exceeds the size limit")
			return
		}
		h.log.Debug("rejecting upload body", zap.Error(err))
		response.BadRequest(w, "expected a multipart form with files")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		response.BadRequest(w, "no files provided")
		return
	}

	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, fromHeader(fh))
	}

	h.log.Debug("upload batch received", zap.Int("files", len(files)))
	report, err := h.svc.UploadBatch(r.Context(), files)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ErrFileUnreadable) {
			status = http.StatusBadRequest
		}
		response.ErrorWithData(w, status, report.Failed.Message, report)
		return
	}
	response.Created(w, report)
}

func fromHeader(fh *multipart.FileHeader) File {
	return File{
		Name: fh.Filename,
		Size: fh.Size,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}
