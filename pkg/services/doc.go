/*
Package services is the compile-time service registry.

Every service is registered under a key with a factory. Nothing is built at
registration: Get constructs the instance on first use and caches it, and
RunAll walks the keys in registration order, building each service and
running those that implement Runner.

	Register("hooks", factory)
	        │
	        ▼
	┌──────────────┐   Get(key)   ┌──────────────┐
	│  factories   │ ───────────▶ │  instances   │
	└──────────────┘  (once)      └──────────────┘
	                                     │ RunAll
	                                     ▼
	                         Runner.Run(ctx) per service
	                         span in group "services"
	                         health + run duration

A failing or panicking Run is logged, marked unhealthy on the HealthChecker
and returned joined with the other failures; it never stops the services
after it.
*/
package services
