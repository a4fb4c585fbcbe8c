/*
Package metrics provides Prometheus metrics and component health for addonkit.

Collectors are package-level and registered with the default Prometheus
registry at init, so any component can record without plumbing a registry.
Health, unlike metrics, is owned by the coordinator: each HealthChecker
tracks one runtime's components.

# Metric Categories

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  Dispatcher:                                               │
	│    addonkit_dispatch_total{result}                        │
	│                                                            │
	│  Options store:                                            │
	│    addonkit_option_lookups_total{source}                  │
	│    addonkit_option_flushes_total                           │
	│    addonkit_option_flushed_rows_total                      │
	│    addonkit_option_flush_errors_total                      │
	│                                                            │
	│  Profiler and services:                                    │
	│    addonkit_profile_span_seconds{group}                   │
	│    addonkit_service_run_seconds{service}                  │
	└────────────────────────────────────────────────────────┘

# Usage

Timing an operation:

	timer := metrics.NewTimer()
	err := svc.Run(ctx)
	timer.ObserveDurationVec(metrics.ServiceRunDuration, svc.Name())

Exposing metrics and health:

	health := metrics.NewHealthChecker(version, "storage", "hooks")
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", health.HealthHandler())
	mux.Handle("/ready", health.ReadyHandler())
*/
package metrics
