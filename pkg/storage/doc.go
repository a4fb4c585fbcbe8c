/*
Package storage provides the persistence layer behind addonkit's options store
and log table.

The package exposes one narrow Store interface (tables of ordered key/value rows
with batched upsert, point lookup, counting, ordered scans and range deletes)
and two embedded engines that implement it. Nothing above this package knows
which engine is in use.

# Architecture

	┌──────────────────── STORAGE ─────────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │                 Store                        │          │
	│  │  EnsureTable / HasTable                     │          │
	│  │  Upsert (batched, atomic per call)          │          │
	│  │  Get / Delete                               │          │
	│  │  Count / Scan / DeleteRange (key order)     │          │
	│  └──────────┬───────────────────┬─────────────┘          │
	│             │                   │                          │
	│  ┌──────────▼─────────┐ ┌───────▼────────────┐           │
	│  │    BoltStore        │ │    PebbleStore      │           │
	│  │  <dir>/addonkit.db  │ │  <dir>/ (LSM)       │           │
	│  │  bucket per table   │ │  prefix per table   │           │
	│  └────────────────────┘ └────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Tables

  - options: one row per option, keyed by the normalized option name
  - logs: one row per persisted log line, keyed by a time-ordered UUID

# Usage

	store, err := storage.Open(storage.BackendBolt, "/var/lib/addonkit")
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureTable("options"); err != nil {
		return err
	}
	err = store.Upsert("options",
		storage.Row{Key: "site_name", Value: []byte(`{"name":"Site_Name","value":"demo"}`)},
	)

Missing rows return ErrNotFound; operations on a table that was never created
return an error wrapping ErrNoTable.
*/
package storage
