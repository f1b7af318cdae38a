package config

import (
	"net"
	"net/http"
	"strconv"

	"github.com/marmos91/dittostore/pkg/api"
	"github.com/marmos91/dittostore/pkg/metrics"
)

// InitializeMetrics initializes the global registry and returns the server
// exposing it, or nil when metrics are disabled. The metrics server binds
// the host of server.listen on metrics.port.
//
// Call it before creating stores: collectors created while the registry is
// uninitialized are no-ops.
func InitializeMetrics(cfg *Config) *api.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}

	metrics.InitRegistry()

	mux := http.NewServeMux()
	mux.Handle(metrics.Path, metrics.Handler())

	return api.NewServer(api.ServerConfig{
		Name:            "metrics",
		Listen:          metricsListen(cfg),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, mux)
}

func metricsListen(cfg *Config) string {
	host, _, err := net.SplitHostPort(cfg.Server.Listen)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Metrics.Port))
}
