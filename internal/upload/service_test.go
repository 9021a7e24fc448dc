package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/fotopanel/admin/internal/metrics"
	"github.com/fotopanel/admin/internal/photo"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeStorage records uploads and can fail on selected file contents.
type fakeStorage struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	deleted  []string
	failOn   string // uploads whose body equals failOn fail
	failWith error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStorage) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if f.failOn != "" && string(b) == f.failOn {
		return f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = b
	f.types[key] = contentType
	return nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) PublicURL(key string) string {
	return "http://cdn.test/photos/" + key
}

// fakeRecords is an in-memory RecordStore.
type fakeRecords struct {
	mu       sync.Mutex
	rows     []photo.Record
	failName string
}

func (f *fakeRecords) Insert(_ context.Context, nr photo.NewRecord) (*photo.Record, error) {
	if nr.Name == f.failName {
		return nil, errors.New("insert rejected")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := photo.Record{
		ID:          uuid.NewString(),
		Name:        nr.Name,
		URL:         nr.URL,
		StorageKey:  nr.StorageKey,
		ContentType: nr.ContentType,
		SizeBytes:   nr.SizeBytes,
		CreatedAt:   time.Now(),
	}
	f.rows = append(f.rows, rec)
	return &rec, nil
}

func file(name, content string) File {
	return File{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(content)), nil },
	}
}

func newTestService(store *fakeStorage, records *fakeRecords) (*Service, *metrics.Metrics) {
	m := metrics.NewNop()
	return NewService(store, records, m, zap.NewNop(), time.Second), m
}

func TestUploadSingleFile(t *testing.T) {
	store, records := newFakeStorage(), &fakeRecords{}
	svc, m := newTestService(store, records)

	png := "\x89PNG\r\n\x1a\n" + strings.Repeat("x", 100)
	report, err := svc.UploadBatch(context.Background(), []File{file("cat.png", png)})
	require.NoError(t, err)

	require.Len(t, report.Uploaded, 1)
	rec := report.Uploaded[0]
	assert.Equal(t, "cat.png", rec.Name)
	assert.Equal(t, ".png", filepath.Ext(rec.StorageKey))
	_, err = uuid.Parse(strings.TrimSuffix(rec.StorageKey, ".png"))
	assert.NoError(t, err)
	assert.Equal(t, "http://cdn.test/photos/"+rec.StorageKey, rec.URL)
	assert.Equal(t, "image/png", rec.ContentType)
	assert.Equal(t, int64(len(png)), rec.SizeBytes)

	assert.Equal(t, []byte(png), store.objects[rec.StorageKey], "bytes stored unchanged")
	assert.Equal(t, []string{`image "cat.png" uploaded`}, report.Messages)
	assert.True(t, report.Refresh)
	assert.Nil(t, report.Failed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PhotosUploaded))
}

func TestUploadKeysAreUnique(t *testing.T) {
	store, records := newFakeStorage(), &fakeRecords{}
	svc, _ := newTestService(store, records)

	files := make([]File, 20)
	for i := range files {
		files[i] = file("same.jpg", fmt.Sprintf("content-%d", i))
	}
	report, err := svc.UploadBatch(context.Background(), files)
	require.NoError(t, err)

	keys := map[string]bool{}
	for _, rec := range report.Uploaded {
		assert.False(t, keys[rec.StorageKey], "duplicate key %s", rec.StorageKey)
		keys[rec.StorageKey] = true
		assert.Equal(t, ".jpg", filepath.Ext(rec.StorageKey))
	}
	assert.Len(t, store.objects, 20)
}

func TestUploadStopsOnStorageFailure(t *testing.T) {
	store, records := newFakeStorage(), &fakeRecords{}
	store.failOn = "second"
	store.failWith = errors.New("bucket unavailable")
	svc, m := newTestService(store, records)

	opened := map[string]bool{}
	track := func(f File) File {
		open := f.Open
		f.Open = func() (io.ReadCloser, error) { opened[f.Name] = true; return open() }
		return f
	}

	report, err := svc.UploadBatch(context.Background(), []File{
		track(file("a.png", "first")),
		track(file("b.png", "second")),
		track(file("c.png", "third")),
	})

	require.ErrorIs(t, err, ErrStorageWriteFailed)
	require.Len(t, records.rows, 1, "exactly one metadata row exists")
	assert.Equal(t, "a.png", records.rows[0].Name)

	require.NotNil(t, report.Failed)
	assert.Equal(t, "b.png", report.Failed.Name)
	assert.Equal(t, metrics.StageStorage, report.Failed.Stage)
	assert.Contains(t, report.Failed.Message, "b.png")
	assert.Equal(t, []string{"c.png"}, report.Skipped)
	assert.False(t, opened["c.png"], "files after the failure are not attempted")
	assert.Len(t, report.Uploaded, 1)
	assert.True(t, report.Refresh, "the stored prefix still needs a gallery refresh")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadFailures.WithLabelValues(metrics.StageStorage)))
}

func TestUploadCompensatesMetadataFailure(t *testing.T) {
	store, records := newFakeStorage(), &fakeRecords{failName: "dog.jpg"}
	svc, _ := newTestService(store, records)

	report, err := svc.UploadBatch(context.Background(), []File{
		file("dog.jpg", "woof"),
		file("cat.jpg", "meow"),
	})

	require.ErrorIs(t, err, ErrMetadataInsertFailed)
	assert.Empty(t, records.rows)
	require.Len(t, store.deleted, 1, "exactly one compensating delete")
	assert.Empty(t, store.objects, "no orphaned object remains")
	assert.Equal(t, "dog.jpg", report.Failed.Name)
	assert.Equal(t, []string{"cat.jpg"}, report.Skipped)
	assert.False(t, report.Refresh)
}

func TestUploadUnreadableFile(t *testing.T) {
	store, records := newFakeStorage(), &fakeRecords{}
	svc, _ := newTestService(store, records)

	broken := File{Name: "broken.png", Size: 10, Open: func() (io.ReadCloser, error) {
		return nil, errors.New("temp file vanished")
	}}
	report, err := svc.UploadBatch(context.Background(), []File{broken})

	require.ErrorIs(t, err, ErrFileUnreadable)
	assert.Equal(t, "read", report.Failed.Stage)
	assert.Empty(t, store.objects)
	assert.Empty(t, records.rows)
}

func TestUploadEmptyBatch(t *testing.T) {
	svc, _ := newTestService(newFakeStorage(), &fakeRecords{})

	report, err := svc.UploadBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Uploaded)
	assert.False(t, report.Refresh)
}

func TestUploadUnknownSize(t *testing.T) {
	store, records := newFakeStorage(), &fakeRecords{}
	svc, _ := newTestService(store, records)

	f := file("notes", "plain text body")
	f.Size = -1
	report, err := svc.UploadBatch(context.Background(), []File{f})
	require.NoError(t, err)

	rec := report.Uploaded[0]
	assert.Equal(t, int64(len("plain text body")), rec.SizeBytes)
	assert.Equal(t, "", filepath.Ext(rec.StorageKey))
	assert.True(t, strings.HasPrefix(rec.ContentType, "text/plain"))
}

func TestUploadKeyKeepsExtensionCase(t *testing.T) {
	store, records := newFakeStorage(), &fakeRecords{}
	svc, _ := newTestService(store, records)

	report, err := svc.UploadBatch(context.Background(), []File{file("IMG_0001.JPG", "raw")})
	require.NoError(t, err)
	assert.Equal(t, ".JPG", filepath.Ext(report.Uploaded[0].StorageKey))
}
