// Package upload stores batches of dropped files and records their metadata.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fotopanel/admin/internal/metrics"
	"github.com/fotopanel/admin/internal/photo"
	"github.com/fotopanel/admin/internal/storage"
)

// headSize is how much of each file is buffered for content sniffing and
// EXIF parsing; JPEG APP1 segments fit in 64 KiB.
const headSize = 64 << 10

var (
	// ErrFileUnreadable is returned when a submitted file cannot be read.
	ErrFileUnreadable = errors.New("file unreadable")

	// ErrStorageWriteFailed is returned when the object store rejected a file.
	ErrStorageWriteFailed = errors.New("storage write failed")

	// ErrMetadataInsertFailed is returned when a stored file could not be recorded.
	ErrMetadataInsertFailed = errors.New("metadata insert failed")
)

// File is one submitted file. Open is called only when the file's turn comes.
type File struct {
	Name string
	Size int64 // -1 when unknown
	Open func() (io.ReadCloser, error)
}

// RecordStore inserts photo records; *photo.Repository implements it.
type RecordStore interface {
	Insert(ctx context.Context, nr photo.NewRecord) (*photo.Record, error)
}

// Failure describes the file that stopped a batch.
type Failure struct {
	Name    string `json:"name"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// BatchReport is the outcome of one UploadBatch call. Uploaded holds every
// file stored before the batch stopped, in submission order.
type BatchReport struct {
	Uploaded []photo.Record `json:"uploaded"`
	Messages []string       `json:"messages"`
	Failed   *Failure       `json:"failed,omitempty"`
	Skipped  []string       `json:"skipped,omitempty"`
	Refresh  bool           `json:"refresh"`
}

// Service runs the upload workflow.
type Service struct {
	store     storage.Storage
	records   RecordStore
	metrics   *metrics.Metrics
	log       *zap.Logger
	opTimeout time.Duration
}

// NewService creates a new upload Service. opTimeout bounds every single
// storage or database call.
func NewService(store storage.Storage, records RecordStore, m *metrics.Metrics, log *zap.Logger, opTimeout time.Duration) *Service {
	return &Service{store: store, records: records, metrics: m, log: log, opTimeout: opTimeout}
}

// UploadBatch stores files one at a time, in order. The first failure stops
// the batch: later files are not attempted and are listed in Skipped.
// Refresh is set as soon as one file succeeded, telling the caller to
// refresh the gallery. The returned report is never nil; the error wraps
// ErrFileUnreadable, ErrStorageWriteFailed or ErrMetadataInsertFailed.
func (s *Service) UploadBatch(ctx context.Context, files []File) (*BatchReport, error) {
	report := &BatchReport{Uploaded: []photo.Record{}, Messages: []string{}}

	for i, f := range files {
		rec, err := s.uploadOne(ctx, f)
		if err != nil {
			report.Failed = &Failure{Name: f.Name, Stage: stageOf(err), Message: err.Error()}
			for _, rest := range files[i+1:] {
				report.Skipped = append(report.Skipped, rest.Name)
			}
			s.log.Warn("upload batch stopped",
				zap.String("file", f.Name),
				zap.Int("uploaded", len(report.Uploaded)),
				zap.Int("skipped", len(report.Skipped)),
				zap.Error(err),
			)
			return report, err
		}

		report.Uploaded = append(report.Uploaded, *rec)
		report.Messages = append(report.Messages, fmt.Sprintf("image %q uploaded", f.Name))
		report.Refresh = true
	}
	return report, nil
}

func (s *Service) uploadOne(ctx context.Context, f File) (*photo.Record, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrFileUnreadable, f.Name, err)
	}
	defer rc.Close()

	head := make([]byte, headSize)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrFileUnreadable, f.Name, err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	capture := photo.ReadCaptureInfo(head)
	// Seekable sources (multipart temp files) are rewound and passed as is,
	// which lets the S3 client sign the payload.
	var body io.Reader = io.MultiReader(bytes.NewReader(head), rc)
	if seeker, ok := rc.(io.ReadSeeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err == nil {
			body = seeker
		}
	}

	size := f.Size
	if size < 0 && n < headSize {
		size = int64(n)
	}

	key := storage.NewKey(f.Name)

	upCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	err = s.store.Upload(upCtx, key, body, size, contentType)
	cancel()
	if err != nil {
		s.metrics.UploadFailures.WithLabelValues(metrics.StageStorage).Inc()
		return nil, fmt.Errorf("%w: failed to upload %s: %v", ErrStorageWriteFailed, f.Name, err)
	}
	if size > 0 {
		s.metrics.BytesUploaded.Add(float64(size))
	}

	insCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	rec, err := s.records.Insert(insCtx, photo.NewRecord{
		Name:        f.Name,
		URL:         s.store.PublicURL(key),
		StorageKey:  key,
		ContentType: contentType,
		SizeBytes:   size,
		TakenAt:     capture.TakenAt,
		Camera:      capture.Camera,
	})
	cancel()
	if err != nil {
		s.metrics.UploadFailures.WithLabelValues(metrics.StageMetadata).Inc()
		s.compensate(ctx, key)
		return nil, fmt.Errorf("%w: failed to save %s: %v", ErrMetadataInsertFailed, f.Name, err)
	}

	s.metrics.PhotosUploaded.Inc()
	s.log.Info("photo uploaded",
		zap.String("id", rec.ID),
		zap.String("name", rec.Name),
		zap.String("key", key),
		zap.Int64("size", size),
	)
	return rec, nil
}

// compensate removes an object whose record could not be inserted, so no
// unreferenced object is left behind. It runs even if ctx was cancelled.
func (s *Service) compensate(ctx context.Context, key string) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opTimeout)
	defer cancel()
	if err := s.store.Delete(delCtx, key); err != nil {
		s.log.Error("orphaned object left in storage", zap.String("key", key), zap.Error(err))
	}
}

func stageOf(err error) string {
	switch {
	case errors.Is(err, ErrStorageWriteFailed):
		return metrics.StageStorage
	case errors.Is(err, ErrMetadataInsertFailed):
		return metrics.StageMetadata
	default:
		return "read"
	}
}
