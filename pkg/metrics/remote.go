package metrics

import (
	"context"
	"time"

	"github.com/marmos91/dittostore/pkg/remote"
	"github.com/prometheus/client_golang/prometheus"
)

// RemoteMetrics records remote store traffic.
type RemoteMetrics interface {
	// RecordOperation records a completed remote call.
	RecordOperation(operation string, duration time.Duration, err error)

	// RecordBytes records payload bytes moved in direction "upload" or
	// "download".
	RecordBytes(direction string, n int64)
}

type remoteMetrics struct {
	backend           string
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

// NewRemoteMetrics returns metrics for backend backed by the global
// registry, or a no-op implementation when metrics are disabled.
func NewRemoteMetrics(backend string) RemoteMetrics {
	if !IsEnabled() {
		return noopRemoteMetrics{}
	}
	return NewRemoteMetricsWith(GetRegistry(), backend)
}

// NewRemoteMetricsWith registers the remote collectors on reg.
func NewRemoteMetricsWith(reg prometheus.Registerer, backend string) RemoteMetrics {
	return &remoteMetrics{
		backend: backend,
		operationsTotal: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittostore_remote_operations_total",
				Help: "Total number of remote store operations by backend, operation, and status",
			},
			[]string{"backend", "operation", "status"},
		)),
		operationDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittostore_remote_operation_duration_seconds",
				Help: "Duration of remote store operations in seconds",
				Buckets: []float64{
					0.01, // 10ms
					0.05, // 50ms
					0.1,  // 100ms
					0.5,  // 500ms
					1.0,  // 1s
					5.0,  // 5s
					30.0, // 30s
				},
			},
			[]string{"backend", "operation"},
		)),
		bytesTransferred: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittostore_remote_bytes_total",
				Help: "Total payload bytes moved by backend and direction",
			},
			[]string{"backend", "direction"},
		)),
	}
}

func (m *remoteMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(m.backend, operation, status(err)).Inc()
	m.operationDuration.WithLabelValues(m.backend, operation).Observe(duration.Seconds())
}

func (m *remoteMetrics) RecordBytes(direction string, n int64) {
	m.bytesTransferred.WithLabelValues(m.backend, direction).Add(float64(n))
}

type noopRemoteMetrics struct{}

func (noopRemoteMetrics) RecordOperation(string, time.Duration, error) {}
func (noopRemoteMetrics) RecordBytes(string, int64)                    {}

// InstrumentRemote wraps store with the metrics of backend. It returns store
// unchanged when metrics are disabled.
func InstrumentRemote(store remote.Store, backend string) remote.Store {
	if !IsEnabled() {
		return store
	}
	return InstrumentRemoteWith(store, NewRemoteMetrics(backend))
}

// InstrumentRemoteWith wraps store so every call is recorded on m.
func InstrumentRemoteWith(store remote.Store, m RemoteMetrics) remote.Store {
	return &instrumentedRemote{store: store, m: m}
}

type instrumentedRemote struct {
	store remote.Store
	m     RemoteMetrics
}

func (s *instrumentedRemote) Add(ctx context.Context, path string) (string, error) {
	start := time.Now()
	locator, err := s.store.Add(ctx, path)
	s.m.RecordOperation("add", time.Since(start), err)
	return locator, err
}

func (s *instrumentedRemote) Get(ctx context.Context, locator string) ([]byte, error) {
	start := time.Now()
	data, err := s.store.Get(ctx, locator)
	s.m.RecordOperation("get", time.Since(start), err)
	if err == nil {
		s.m.RecordBytes("download", int64(len(data)))
	}
	return data, err
}

func (s *instrumentedRemote) Remove(ctx context.Context, locator string) error {
	start := time.Now()
	err := s.store.Remove(ctx, locator)
	s.m.RecordOperation("remove", time.Since(start), err)
	return err
}

func (s *instrumentedRemote) Close() error {
	return s.store.Close()
}
