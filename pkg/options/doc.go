/*
Package options provides the deferred key/value store that services use for
persistent settings.

Writes are cheap: Set only queues. The queue is flushed to the options table in
batches when it fills or when the store is closed. Reads consult memory before
storage and remember misses, so repeated lookups of hot or absent keys never
reach the database.

# Tiers

	┌──────────────────── OPTIONS STORE ───────────────────────┐
	│                                                            │
	│  Get(name)                                                 │
	│     │  key = lower(trim(name))                             │
	│     ├─► write-queue      (≤ QueueMax, shadows everything)  │
	│     ├─► confirmed cache  (LRU, ≤ CacheMax)                 │
	│     ├─► absent cache     (LRU, ≤ AbsentMax) → not found    │
	│     └─► storage "options" table                            │
	│            hit  → confirmed cache                          │
	│            miss → absent cache                             │
	│                                                            │
	│  Set → queue → (len == QueueMax) → Flush                   │
	│  Flush: trim cache, upsert batches of BatchSize,           │
	│         flushed values become confirmed                    │
	└────────────────────────────────────────────────────────┘

Rows are stored as {"name": <original name>, "value": <serialized value>}
under the normalized key.

# Failure Handling

Nothing here returns storage errors to callers: lookup errors read as "not
found", a failed flush batch is logged and dropped, and values that cannot be
serialized are rejected by Set (or skipped at flush).
*/
package options
