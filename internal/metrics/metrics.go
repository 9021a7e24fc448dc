// Package metrics provides the Prometheus metrics of the admin panel.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Upload and delete stages used as label values.
const (
	StageStorage  = "storage"
	StageMetadata = "metadata"
)

// Metrics contains all counters exported by the panel.
type Metrics struct {
	PhotosUploaded prometheus.Counter
	UploadFailures *prometheus.CounterVec
	BytesUploaded  prometheus.Counter

	PhotosDeleted  prometheus.Counter
	DeleteFailures *prometheus.CounterVec

	Logins *prometheus.CounterVec
}

// New creates the metrics and registers them on registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		PhotosUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "panel_photos_uploaded_total",
			Help: "Total number of photos stored and recorded.",
		}),
		UploadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_upload_failures_total",
			Help: "Total number of aborted upload batches partitioned by failing stage.",
		}, []string{"stage"}),
		BytesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "panel_uploaded_bytes_total",
			Help: "Total number of bytes written to object storage.",
		}),
		PhotosDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "panel_photos_deleted_total",
			Help: "Total number of photos removed from storage and metadata.",
		}),
		DeleteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_delete_failures_total",
			Help: "Total number of failed deletions partitioned by failing stage.",
		}, []string{"stage"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_logins_total",
			Help: "Total number of login attempts partitioned by result.",
		}, []string{"result"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register panel metrics: %w", err)
	}
	return m, nil
}

// NewNop returns unregistered metrics, for tests and tools that never expose /metrics.
func NewNop() *Metrics {
	m, _ := New(prometheus.NewRegistry())
	return m
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.PhotosUploaded.Describe(ch)
	m.UploadFailures.Describe(ch)
	m.BytesUploaded.Describe(ch)
	m.PhotosDeleted.Describe(ch)
	m.DeleteFailures.Describe(ch)
	m.Logins.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.PhotosUploaded.Collect(ch)
	m.UploadFailures.Collect(ch)
	m.BytesUploaded.Collect(ch)
	m.PhotosDeleted.Collect(ch)
	m.DeleteFailures.Collect(ch)
	m.Logins.Collect(ch)
}
