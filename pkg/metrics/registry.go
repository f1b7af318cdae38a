// Package metrics provides Prometheus metrics collection for DittoStore.
//
// All metrics are optional. Until InitRegistry is called every constructor
// returns a no-op implementation, so stores run the same with or without
// metrics.
//
// Usage:
//
//	metrics.InitRegistry()
//
//	subject.Register(metrics.NewActionMetrics())
//	factory = metrics.InstrumentMetadataFactory(factory, "badger")
//	remoteStore = metrics.InstrumentRemote(remoteStore, "webdav")
//	handler = metrics.InstrumentHandler(handler)
package metrics

import (
	"errors"
	"sync"

	"github.com/marmos91/dittostore/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all DittoStore metrics.
	// Protected by registryOnce for write-once, read-many pattern.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// It's safe to call multiple times - subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)
	})
}

// GetRegistry returns the global Prometheus registry, or nil when metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

// register adds c to reg. When an identical collector is already registered
// (one per tenant store, for instance) the existing one is returned instead.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	logger.Warn("Cannot register metrics collector: %v", err)
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
