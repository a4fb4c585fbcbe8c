package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUpdateComponent(t *testing.T) {
	h := NewHealthChecker("test")

	h.Update("options", true, "running")

	comp, ok := h.Component("options")
	if !ok {
		t.Fatal("component not recorded")
	}
	if !comp.Healthy {
		t.Error("component should be healthy")
	}
	if comp.Message != "running" {
		t.Errorf("expected message 'running', got '%s'", comp.Message)
	}
}

func TestGetHealth_AllHealthy(t *testing.T) {
	h := NewHealthChecker("1.0.0")
	h.Update("hooks", true, "")
	h.Update("storage", true, "")

	health := h.GetHealth()

	if health.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", health.Status)
	}
	if len(health.Components) != 2 {
		t.Errorf("expected 2 components, got %d", len(health.Components))
	}
	if health.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", health.Version)
	}
}

func TestGetHealth_OneUnhealthy(t *testing.T) {
	h := NewHealthChecker("")
	h.Update("hooks", true, "")
	h.Update("storage", false, "not open")

	health := h.GetHealth()

	if health.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got '%s'", health.Status)
	}
	if health.Components["storage"] != "unhealthy: not open" {
		t.Errorf("unexpected storage status: %s", health.Components["storage"])
	}
}

func TestGetReadiness(t *testing.T) {
	tests := []struct {
		name    string
		updates map[string]bool
		want    string
	}{
		{"all critical healthy", map[string]bool{"storage": true, "hooks": true}, "ready"},
		{"critical missing", map[string]bool{"storage": true}, "not_ready"},
		{"critical unhealthy", map[string]bool{"storage": false, "hooks": true}, "not_ready"},
		{"extra component ignored", map[string]bool{"storage": true, "hooks": true, "other": false}, "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker("", "storage", "hooks")
			for name, healthy := range tt.updates {
				h.Update(name, healthy, "")
			}

			readiness := h.GetReadiness()
			if readiness.Status != tt.want {
				t.Errorf("expected status '%s', got '%s'", tt.want, readiness.Status)
			}
			if tt.want == "not_ready" && readiness.Message == "" {
				t.Error("expected message explaining why not ready")
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	h := NewHealthChecker("test")
	h.Update("hooks", true, "")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h.HealthHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var health HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("expected healthy status, got %s", health.Status)
	}
	if health.Version != "test" {
		t.Errorf("expected version 'test', got %s", health.Version)
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	h := NewHealthChecker("")
	h.Update("hooks", false, "broken")

	w := httptest.NewRecorder()
	h.HealthHandler()(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestReadyHandler_NotReady(t *testing.T) {
	h := NewHealthChecker("", "storage")

	w := httptest.NewRecorder()
	h.ReadyHandler()(w, httptest.NewRequest("GET", "/ready", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var readiness HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&readiness); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if readiness.Components["storage"] != "not registered" {
		t.Errorf("unexpected storage readiness: %s", readiness.Components["storage"])
	}
}
