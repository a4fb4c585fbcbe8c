/*
Package manager implements the addonkit coordinator.

A Manager owns one runtime and hands its components to services through the
services.Host interface. Everything is passed explicitly; there are no
package-level singletons.

# Architecture

	┌─────────────────────────── MANAGER ───────────────────────────┐
	│                                                                 │
	│  ┌───────────────┐   ┌────────────────┐   ┌────────────────┐  │
	│  │  Dispatcher   │   │ Options Store  │   │   Profiler     │  │
	│  │  channels     │   │ queue + caches │   │ groups, spans  │  │
	│  └───────▲───────┘   └───────┬────────┘   └───────▲────────┘  │
	│          │                   │                    │            │
	│  ┌───────┴───────────────────┼────────────────────┴────────┐  │
	│  │              Service Registry (services.Host)            │  │
	│  │   hooks  ─  declared hooks, CEL conditions               │  │
	│  │   ...    ─  services registered before Start             │  │
	│  └──────────────────────────┬───────────────────────────────┘  │
	│                             │                                   │
	│  ┌──────────────────────────▼───────────────────────────────┐  │
	│  │        Storage (bbolt or pebble)                          │  │
	│  │   options table  ─  flushed option rows                   │  │
	│  │   logs table     ─  table sink (warn and above)           │  │
	│  └───────────────────────────────────────────────────────────┘  │
	└─────────────────────────────────────────────────────────────────┘

# Lifecycle

	m, err := manager.New(cfg)     // open storage, build components,
	                               // queue declared hooks
	err = m.Start(ctx)             // RunAll under lifecycle/start,
	                               // then apply "addonkit.started"
	out := m.Apply(ctx, "title", "hello")
	err = m.Shutdown()             // apply "addonkit.shutdown",
	                               // final options flush, close storage

Start reports service failures but still applies the started channel, so a
broken add-on does not keep the others from seeing it. Shutdown is
idempotent.
*/
package manager
