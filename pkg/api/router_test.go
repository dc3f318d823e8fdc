package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouter_HealthzWithoutSource_Returns503(t *testing.T) {
	router := NewRouter(nil, nil)
	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestRouter_MetricsDisabled_Returns404(t *testing.T) {
	router := NewRouter(nil, nil)
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.Error != "metrics are not enabled" {
		t.Errorf("Expected error 'metrics are not enabled', got '%s'", resp.Error)
	}
}

func TestRouter_MetricsMounted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# HELP blockwarm_batches_total\n"))
	})

	router := NewRouter(nil, metrics)
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	if w.Body.Len() == 0 {
		t.Error("Expected metrics body, got empty response")
	}
}

func TestRouter_RootRedirectsToHealthz(t *testing.T) {
	router := NewRouter(nil, nil)
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("Expected status %d, got %d", http.StatusTemporaryRedirect, w.Code)
	}

	if loc := w.Header().Get("Location"); loc != "/healthz" {
		t.Errorf("Expected redirect to /healthz, got '%s'", loc)
	}
}

func TestNewServer_AppliesDefaults(t *testing.T) {
	server := NewServer(APIConfig{}, nil, nil)

	if server.Port() != 8080 {
		t.Errorf("Expected default port 8080, got %d", server.Port())
	}
}

func TestAPIConfig_IsEnabled(t *testing.T) {
	var cfg APIConfig
	if !cfg.IsEnabled() {
		t.Error("Expected API to be enabled by default")
	}

	disabled := false
	cfg.Enabled = &disabled
	if cfg.IsEnabled() {
		t.Error("Expected API to be disabled when set to false")
	}
}
