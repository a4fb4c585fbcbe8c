/*
Package hooks is the hook registry service.

Hooks are queued, then attached to the shared dispatcher when the service runs
(it is registered with the service registry under the key "hooks"). Hooks
queued after Run attach immediately.

A hook may carry a CEL condition over two variables:

	channel  string  the channel being applied
	payload  dyn     the current payload (maps, lists, scalars)

	when: payload.amount > 100 && channel.startsWith("order.")

A false condition passes the payload through unchanged. Every invocation is
profiled as a span named "hook:<name>" in the "hooks" group.

Hooks declared in configuration pick a handler from the built-in action table:

	log         log the payload, pass it through
	set_option  store the payload under args.key
	merge       merge args into a map payload
	increment   add args.by (default 1) to a numeric payload
*/
package hooks
