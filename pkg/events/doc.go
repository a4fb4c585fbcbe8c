/*
Package events provides the in-process event dispatcher that hooks and
services communicate through.

A channel is a named, ordered list of listeners. Applying a channel threads a
payload through its listeners in attachment order: each listener receives the
value produced by the previous one and returns the value for the next.

# Architecture

	┌──────────────────── EVENT DISPATCHER ────────────────────┐
	│                                                            │
	│  channels: name → [listener, listener, ...]               │
	│                    (id, once, handler)                     │
	│                                                            │
	│  Apply("boot", p0)                                         │
	│     │                                                      │
	│     ├─ listener 1: skip if already processing "boot"      │
	│     │              remove first when one-shot             │
	│     │              p1 = handler(p0)                       │
	│     ├─ listener 2: p2 = handler(p1)   (error → p2 = p1)   │
	│     └─ listener 3: p3 = handler(p2)                       │
	│                                                            │
	│  processing: channel → {listener ids on the stack}        │
	│  params:     channel → [payload at entry, ...]            │
	└────────────────────────────────────────────────────────┘

# Semantics

  - Attach returns a ListenerID; Detach uses it. Handlers are never compared
    by function identity.
  - Re-entrancy: while a listener runs for a channel, a nested Apply of the
    same channel skips that listener. Other listeners still run.
  - One-shot listeners are detached before they are invoked.
  - Fault isolation: an error or panic is logged with the channel and
    listener ID and the payload passes on unchanged.
  - A channel with no listeners is never kept in the channel table.
  - Listeners attached during an Apply are not invoked by it; listeners
    detached during an Apply are not invoked after their detachment.

# Usage

	d := events.NewDispatcher(logger)

	id := d.Attach("inc", func(ctx context.Context, p any, _ ...any) (any, error) {
		return p.(int) + 1, nil
	}, false)

	d.Apply(ctx, "inc", 5) // 6
	d.Detach("inc", id)    // 1
	d.Apply(ctx, "inc", 5) // 5
*/
package events
