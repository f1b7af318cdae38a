package metrics

import (
	"time"

	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/prometheus/client_golang/prometheus"
)

// MetadataMetrics records metadata store operations.
type MetadataMetrics interface {
	// RecordOperation records a completed operation.
	//
	// Parameters:
	//   - operation: Operation name (e.g., "Get", "AddOrUpdate", "Save")
	//   - duration: Time taken to complete the operation
	//   - err: Error if operation failed, nil if successful
	RecordOperation(operation string, duration time.Duration, err error)

	// SetRecords updates the number of current and removed records.
	SetRecords(current, removed int)
}

type metadataMetrics struct {
	storeType         string
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	records           *prometheus.GaugeVec
}

// NewMetadataMetrics returns metrics for storeType backed by the global
// registry, or a no-op implementation when metrics are disabled.
func NewMetadataMetrics(storeType string) MetadataMetrics {
	if !IsEnabled() {
		return noopMetadataMetrics{}
	}
	return NewMetadataMetricsWith(GetRegistry(), storeType)
}

// NewMetadataMetricsWith registers the metadata collectors on reg.
func NewMetadataMetricsWith(reg prometheus.Registerer, storeType string) MetadataMetrics {
	return &metadataMetrics{
		storeType: storeType,
		operationsTotal: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittostore_metadata_operations_total",
				Help: "Total number of metadata operations by store type, operation, and status",
			},
			[]string{"store_type", "operation", "status"},
		)),
		operationDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittostore_metadata_operation_duration_seconds",
				Help: "Duration of metadata operations in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.001,  // 1ms
					0.01,   // 10ms
					0.1,    // 100ms
					1.0,    // 1s
				},
			},
			[]string{"store_type", "operation"},
		)),
		records: register(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittostore_metadata_records",
				Help: "Number of records by store type and set (current, removed)",
			},
			[]string{"store_type", "set"},
		)),
	}
}

func (m *metadataMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(m.storeType, operation, status(err)).Inc()
	m.operationDuration.WithLabelValues(m.storeType, operation).Observe(duration.Seconds())
}

func (m *metadataMetrics) SetRecords(current, removed int) {
	m.records.WithLabelValues(m.storeType, "current").Set(float64(current))
	m.records.WithLabelValues(m.storeType, "removed").Set(float64(removed))
}

type noopMetadataMetrics struct{}

func (noopMetadataMetrics) RecordOperation(string, time.Duration, error) {}
func (noopMetadataMetrics) SetRecords(int, int)                          {}

// ============================================================================
// Instrumented store
// ============================================================================

// InstrumentMetadataFactory wraps every store produced by factory.
// It returns factory unchanged when metrics are disabled.
func InstrumentMetadataFactory(factory metadata.Factory, storeType string) metadata.Factory {
	if !IsEnabled() {
		return factory
	}
	m := NewMetadataMetrics(storeType)
	return func(root string) (metadata.Store, error) {
		store, err := factory(root)
		if err != nil {
			return nil, err
		}
		return InstrumentMetadata(store, m), nil
	}
}

// InstrumentMetadata wraps store so every call is recorded on m.
func InstrumentMetadata(store metadata.Store, m MetadataMetrics) metadata.Store {
	return &instrumentedMetadata{Store: store, m: m}
}

type instrumentedMetadata struct {
	metadata.Store
	m MetadataMetrics
}

func (s *instrumentedMetadata) observe(op string, start time.Time, err error) {
	s.m.RecordOperation(op, time.Since(start), err)
}

func (s *instrumentedMetadata) Get(id string) (metadata.Record, error) {
	start := time.Now()
	rec, err := s.Store.Get(id)
	s.observe("Get", start, err)
	return rec, err
}

func (s *instrumentedMetadata) GetRemoved(id string) (metadata.Record, error) {
	start := time.Now()
	rec, err := s.Store.GetRemoved(id)
	s.observe("GetRemoved", start, err)
	return rec, err
}

func (s *instrumentedMetadata) AddOrUpdate(id string, fields metadata.Record) error {
	start := time.Now()
	err := s.Store.AddOrUpdate(id, fields)
	s.observe("AddOrUpdate", start, err)
	return err
}

func (s *instrumentedMetadata) Remove(id string) error {
	start := time.Now()
	err := s.Store.Remove(id)
	s.observe("Remove", start, err)
	return err
}

func (s *instrumentedMetadata) Restore(id string) error {
	start := time.Now()
	err := s.Store.Restore(id)
	s.observe("Restore", start, err)
	return err
}

func (s *instrumentedMetadata) Save() error {
	start := time.Now()
	err := s.Store.Save()
	s.observe("Save", start, err)

	if err == nil {
		current, cerr := s.Store.List()
		removed, rerr := s.Store.ListRemoved()
		if cerr == nil && rerr == nil {
			s.m.SetRecords(len(current), len(removed))
		}
	}
	return err
}

func (s *instrumentedMetadata) Shutdown() error {
	start := time.Now()
	err := s.Store.Shutdown()
	s.observe("Shutdown", start, err)
	return err
}
