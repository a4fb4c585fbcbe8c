/*
Package profiler provides a hierarchical timer and memory sampler.

Spans are grouped into named groups owned by a Registry. Groups nest by
convention: a caller that wants a sub-tree creates a group for it and moves
spans between groups with Migrate or MigrateAll.

	Registry
	 ├── lifecycle
	 │    ├── start      12ms  +1.2MB
	 │    └── shutdown    3ms
	 └── hooks
	      ├── hook:audit  0.4ms
	      └── hook:stamp  0.1ms

A span ends once. A stop code (SetStopCode or NewStopCode) restricts who can
end it, so cleanup paths that do not hold the code cannot truncate a span
that is still running elsewhere:

	span := reg.Profile("lifecycle", "start", nil)
	code := span.NewStopCode()
	defer span.End(false, nil, "") // no-op: wrong code
	...
	span.Stop(map[string]any{"services": 3}, code)

Nothing in this package returns an error or panics on misuse.
*/
package profiler
