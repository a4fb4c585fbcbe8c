/*
Package log provides structured logging for addonkit using zerolog.

Loggers are built once by New and passed explicitly to every component, which
derives a child with WithComponent. There is no package-level logger.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              log.New(Config)                │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  └──────────┬────────────────────┬────────────┘          │
	│             │                    │                         │
	│  ┌──────────▼─────────┐ ┌────────▼──────────────┐        │
	│  │  Output writer      │ │  FilteredLevelWriter   │        │
	│  │  stdout / file      │ │  (>= SinkLevel)        │        │
	│  └────────────────────┘ └────────┬──────────────┘        │
	│                                   │                        │
	│                        ┌──────────▼──────────────┐        │
	│                        │  TableSink               │        │
	│                        │  storage table "logs"    │        │
	│                        │  UUIDv7 keys, trimmed    │        │
	│                        │  to MaxRows              │        │
	│                        └─────────────────────────┘        │
	└────────────────────────────────────────────────────────┘

# Usage

	sink, err := log.NewTableSink(store, log.DefaultTable, 1000)
	if err != nil {
		return err
	}
	logger := log.New(log.Config{
		Level:     log.InfoLevel,
		Sink:      sink,
		SinkLevel: log.WarnLevel,
	})

	events := log.WithComponent(logger, "events")
	events.Warn().Str("channel", "boot").Msg("listener failed")

Writes to the sink are fire-and-forget: storage failures are swallowed so a
broken table never breaks the caller that logged.
*/
package log
