package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewKeyKeepsExtension(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantExt  string
	}{
		{"png", "cat.png", ".png"},
		{"upper case", "IMG_0493.JPG", ".JPG"},
		{"mixed case", "holiday.JpEg", ".JpEg"},
		{"double extension", "archive.tar.gz", ".gz"},
		{"no extension", "README", ""},
		{"trailing dot", "weird.", ""},
		{"traversal", "../../etc/passwd.jpeg", ".jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewKey(tt.filename)
			assert.True(t, strings.HasSuffix(key, tt.wantExt), "key %q", key)
			assert.NotContains(t, key, "/")

			id := strings.TrimSuffix(key, tt.wantExt)
			_, err := uuid.Parse(id)
			require.NoError(t, err, "key prefix must be a uuid: %q", key)
		})
	}
}

func TestNewKeyUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		key := NewKey("cat.png")
		_, dup := seen[key]
		require.False(t, dup, "duplicate key %q", key)
		seen[key] = struct{}{}
	}
}

func TestPublicURL(t *testing.T) {
	m := &MinioStorage{publicBase: "http://localhost:9000/photos/"}
	assert.Equal(t, "http://localhost:9000/photos/abc.png", m.PublicURL("abc.png"))

	s := &S3Storage{publicBase: "https://cdn.example.com"}
	assert.Equal(t, "https://cdn.example.com/abc.png", s.PublicURL("abc.png"))
}

func TestPublicReadPolicy(t *testing.T) {
	var policy struct {
		Statement []struct {
			Action   string
			Resource string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(publicReadPolicy("photos")), &policy))
	require.Len(t, policy.Statement, 1)
	assert.Equal(t, "s3:GetObject", policy.Statement[0].Action)
	assert.Equal(t, "arn:aws:s3:::photos/*", policy.Statement[0].Resource)
}

// minioAgainst returns a MinioStorage whose client talks to handler.
func minioAgainst(t *testing.T, handler http.HandlerFunc) *MinioStorage {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return &MinioStorage{client: client, bucket: "photos", log: zap.NewNop()}
}

func TestMinioDeleteMissingKeySucceeds(t *testing.T) {
	var method, path string
	// S3 and MinIO answer 204 whether or not the key exists.
	s := minioAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, s.Delete(context.Background(), "gone.jpg"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/photos/gone.jpg", path)
}

func TestMinioDeleteSurfacesBackendError(t *testing.T) {
	s := minioAgainst(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>AccessDenied</Code><Message>Access Denied.</Message></Error>`))
	})

	var resp minio.ErrorResponse
	require.ErrorAs(t, s.Delete(context.Background(), "kept.jpg"), &resp)
	assert.Equal(t, "AccessDenied", resp.Code)
}
