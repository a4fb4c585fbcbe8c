package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of the runtime
type HealthStatus struct {
	Status     string            `json:"status"` // "healthy", "unhealthy", "ready", "not_ready"
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// ComponentHealth tracks the health of a single component
type ComponentHealth struct {
	Name    string
	Healthy bool
	Message string
	Updated time.Time
}

// HealthChecker tracks health reported by services and components
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	critical   []string
	startTime  time.Time
	version    string
}

// NewHealthChecker creates a checker; readiness waits on the critical components
func NewHealthChecker(version string, critical ...string) *HealthChecker {
	return &HealthChecker{
		components: make(map[string]ComponentHealth),
		critical:   critical,
		startTime:  time.Now(),
		version:    version,
	}
}

// Update records the health of a component
func (h *HealthChecker) Update(name string, healthy bool, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.components[name] = ComponentHealth{
		Name:    name,
		Healthy: healthy,
		Message: message,
		Updated: time.Now(),
	}
}

// Component returns the last report for name
func (h *HealthChecker) Component(name string) (ComponentHealth, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.components[name]
	return c, ok
}

// GetHealth returns the overall health status
func (h *HealthChecker) GetHealth() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	components := make(map[string]string)

	for name, comp := range h.components {
		if !comp.Healthy {
			status = "unhealthy"
			components[name] = "unhealthy: " + comp.Message
		} else {
			components[name] = "healthy"
		}
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
	}
}

// GetReadiness reports ready once every critical component is healthy
func (h *HealthChecker) GetReadiness() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "ready"
	message := ""
	components := make(map[string]string)

	critical := append([]string(nil), h.critical...)
	sort.Strings(critical)

	for _, name := range critical {
		comp, exists := h.components[name]
		switch {
		case !exists:
			status = "not_ready"
			message = "waiting for " + name + " initialization"
			components[name] = "not registered"
		case !comp.Healthy:
			status = "not_ready"
			message = "waiting for " + name
			components[name] = "not ready: " + comp.Message
		default:
			components[name] = "ready"
		}
	}

	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Message:    message,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
	}
}

// HealthHandler returns an HTTP handler for the /health endpoint
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		statusCode := http.StatusOK
		if health.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, health)
	}
}

// ReadyHandler returns an HTTP handler for the /ready endpoint
func (h *HealthChecker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := h.GetReadiness()

		statusCode := http.StatusOK
		if readiness.Status != "ready" {
			statusCode = http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, readiness)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
