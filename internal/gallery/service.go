// Package gallery lists the uploaded photos and deletes them on confirmation.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fotopanel/admin/internal/metrics"
	"github.com/fotopanel/admin/internal/photo"
)

var (
	// ErrMetadataListFailed is returned when the records could not be read.
	ErrMetadataListFailed = errors.New("metadata list failed")

	// ErrInvalidConfirmation is returned for a missing, expired, tampered or
	// mismatched delete confirmation.
	ErrInvalidConfirmation = errors.New("invalid delete confirmation")

	// ErrStorageDeleteFailed is returned when the stored object could not be
	// removed. The record is left untouched.
	ErrStorageDeleteFailed = errors.New("storage delete failed")

	// ErrMetadataDeleteFailed is returned when the object was removed but the
	// record could not be.
	ErrMetadataDeleteFailed = errors.New("metadata delete failed")
)

// RecordStore reads and removes photo records; *photo.Repository implements it.
type RecordStore interface {
	ListAll(ctx context.Context) ([]photo.Record, error)
	GetByID(ctx context.Context, id string) (*photo.Record, error)
	DeleteByID(ctx context.Context, id string) error
}

// ObjectDeleter removes stored objects; every storage.Storage implements it.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Confirmation is the first step of a delete: the caller shows Prompt and,
// if accepted, sends Token back with the delete.
type Confirmation struct {
	Token     string       `json:"token"`
	Prompt    string       `json:"prompt"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Record    photo.Record `json:"record"`
}

// Service runs the gallery workflow.
type Service struct {
	records   RecordStore
	objects   ObjectDeleter
	confirm   *confirmer
	metrics   *metrics.Metrics
	log       *zap.Logger
	opTimeout time.Duration
}

// NewService creates a new gallery Service. secret signs delete
// confirmations; opTimeout bounds every single storage or database call.
func NewService(records RecordStore, objects ObjectDeleter, secret string, m *metrics.Metrics, log *zap.Logger, opTimeout time.Duration) *Service {
	return &Service{
		records:   records,
		objects:   objects,
		confirm:   &confirmer{secret: []byte(secret), now: time.Now},
		metrics:   m,
		log:       log,
		opTimeout: opTimeout,
	}
}

// Load returns every record, newest first.
func (s *Service) Load(ctx context.Context) ([]photo.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	records, err := s.records.ListAll(ctx)
	if err != nil {
		s.log.Error("failed to load gallery", zap.Error(err))
		return nil, fmt.Errorf("%w: could not load images: %v", ErrMetadataListFailed, err)
	}
	return records, nil
}

// Refresh re-reads the gallery after a change, such as a finished upload.
func (s *Service) Refresh(ctx context.Context) ([]photo.Record, error) {
	return s.Load(ctx)
}

// RequestDelete looks up the record and returns a confirmation naming it.
// It returns photo.ErrNotFound for an unknown id.
func (s *Service) RequestDelete(ctx context.Context, id string) (*Confirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.confirm.issue(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("issue confirmation: %w", err)
	}
	return &Confirmation{
		Token:     token,
		Prompt:    fmt.Sprintf("Delete %q?", rec.Name),
		ExpiresAt: expiresAt,
		Record:    *rec,
	}, nil
}

// Delete removes the record's stored object, then the record itself. The
// token must be a confirmation issued for id. An object or record that is
// already gone counts as deleted.
func (s *Service) Delete(ctx context.Context, id, token string) error {
	if !s.confirm.verify(token, id) {
		return ErrInvalidConfirmation
	}

	getCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	rec, err := s.records.GetByID(getCtx, id)
	cancel()
	if errors.Is(err, photo.ErrNotFound) {
		s.log.Info("photo already deleted", zap.String("id", id))
		return nil
	}
	if err != nil {
		s.metrics.DeleteFailures.WithLabelValues(metrics.StageMetadata).Inc()
		s.log.Error("failed to look up photo for deletion", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("%w: could not delete %s: %v", ErrMetadataDeleteFailed, id, err)
	}

	objCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	err = s.objects.Delete(objCtx, rec.StorageKey)
	cancel()
	if err != nil {
		s.metrics.DeleteFailures.WithLabelValues(metrics.StageStorage).Inc()
		s.log.Error("failed to delete stored object",
			zap.String("id", id), zap.String("key", rec.StorageKey), zap.Error(err))
		return fmt.Errorf("%w: could not delete %s: %v", ErrStorageDeleteFailed, rec.Name, err)
	}

	rowCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	err = s.records.DeleteByID(rowCtx, id)
	cancel()
	if err != nil && !errors.Is(err, photo.ErrNotFound) {
		s.metrics.DeleteFailures.WithLabelValues(metrics.StageMetadata).Inc()
		s.log.Error("object deleted but record kept",
			zap.String("id", id), zap.String("key", rec.StorageKey), zap.Error(err))
		return fmt.Errorf("%w: could not delete the record of %s: %v", ErrMetadataDeleteFailed, rec.Name, err)
	}

	s.metrics.PhotosDeleted.Inc()
	s.log.Info("photo deleted", zap.String("id", id), zap.String("name", rec.Name), zap.String("key", rec.StorageKey))
	return nil
}
