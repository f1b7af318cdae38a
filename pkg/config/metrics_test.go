package config

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestInitializeMetrics_Disabled(t *testing.T) {
	cfg := testConfig(t)

	if server := InitializeMetrics(cfg); server != nil {
		t.Error("Expected no metrics server when metrics are disabled")
	}
}

func TestInitializeMetrics_Serves(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Listen = "127.0.0.1:8080"
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 0

	server := InitializeMetrics(cfg)
	if server == nil {
		t.Fatal("Expected a metrics server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for server.Addr() == nil {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("Metrics server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	addr := server.Addr().String()
	if !strings.HasPrefix(addr, "127.0.0.1:") {
		t.Errorf("Expected metrics bound to the API host, got %s", addr)
	}

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		cancel()
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("Expected Go runtime collectors in the scrape")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected graceful shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Metrics server did not stop")
	}
}

func TestMetricsListen(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Port = 9191

	tests := map[string]string{
		"127.0.0.1:8080": "127.0.0.1:9191",
		":8080":          ":9191",
		"[::1]:8080":     "[::1]:9191",
		"bogus":          ":9191",
	}
	for listen, want := range tests {
		cfg.Server.Listen = listen
		if got := metricsListen(cfg); got != want {
			t.Errorf("metricsListen(%q) = %q, want %q", listen, got, want)
		}
	}
}
