package events

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/cuemby/addonkit/pkg/log"
	"github.com/cuemby/addonkit/pkg/metrics"
	"github.com/rs/zerolog"
)

// ListenerID identifies one attachment of a handler to a channel
type ListenerID uint64

// AnyListener matches every listener in Is and In
const AnyListener ListenerID = 0

// Handler receives the current payload and returns the payload for the next
// listener. A returned error (or a panic) leaves the payload unchanged.
type Handler func(ctx context.Context, payload any, args ...any) (any, error)

type listener struct {
	id      ListenerID
	once    bool
	handler Handler
}

// frame is one listener currently executing
type frame struct {
	channel string
	id      ListenerID
}

// Dispatcher is a named-channel publish/subscribe mechanism that threads a
// payload through listeners in attachment order.
//
// A Dispatcher belongs to one request: the processing set and the payload
// stack describe a single call stack, so Apply must not run concurrently on
// the same Dispatcher from different goroutines. Attach and Detach are safe
// to call from anywhere, including from inside a handler.
type Dispatcher struct {
	mu       sync.Mutex
	channels map[string][]*listener
	nextID   ListenerID

	processing map[string]map[ListenerID]int
	stack      []frame
	applying   []string
	params     map[string][]any

	logger zerolog.Logger
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		channels:   make(map[string][]*listener),
		processing: make(map[string]map[ListenerID]int),
		params:     make(map[string][]any),
		logger:     log.WithComponent(logger, "events"),
	}
}

// Attach appends handler to channel and returns its handle. Attaching the same
// function twice yields two listeners that are both invoked.
func (d *Dispatcher) Attach(channel string, handler Handler, once bool) ListenerID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.channels[channel] = append(d.channels[channel], &listener{id: id, once: once, handler: handler})
	return id
}

// Detach removes the listener with the given handle and returns how many
// entries were removed
func (d *Dispatcher) Detach(channel string, id ListenerID) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.removeLocked(channel, id) {
		return 1
	}
	return 0
}

// DetachAll removes channel entirely and returns its prior listener count
func (d *Dispatcher) DetachAll(channel string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.channels[channel])
	delete(d.channels, channel)
	return n
}

// removeLocked drops one listener; a channel left empty is deleted
func (d *Dispatcher) removeLocked(channel string, id ListenerID) bool {
	entries := d.channels[channel]
	for i, l := range entries {
		if l.id != id {
			continue
		}
		remaining := make([]*listener, 0, len(entries)-1)
		remaining = append(remaining, entries[:i]...)
		remaining = append(remaining, entries[i+1:]...)
		if len(remaining) == 0 {
			delete(d.channels, channel)
		} else {
			d.channels[channel] = remaining
		}
		return true
	}
	return false
}

func (d *Dispatcher) attachedLocked(channel string, id ListenerID) bool {
	for _, l := range d.channels[channel] {
		if l.id == id {
			return true
		}
	}
	return false
}

// Apply passes payload through every listener of channel and returns the
// result. Listeners already executing for channel further up the stack are
// skipped. Listener failures are logged and do not stop the chain.
func (d *Dispatcher) Apply(ctx context.Context, channel string, payload any, args ...any) any {
	d.mu.Lock()
	entries := d.channels[channel]
	if len(entries) == 0 {
		d.mu.Unlock()
		return payload
	}
	// Listeners attached while applying wait for the next Apply
	snapshot := append([]*listener(nil), entries...)
	d.applying = append(d.applying, channel)
	d.params[channel] = append(d.params[channel], payload)
	d.mu.Unlock()

	defer d.finishApply(channel)

	for _, l := range snapshot {
		if !d.claim(channel, l) {
			continue
		}
		payload = d.invoke(ctx, channel, l, payload, args)
	}
	return payload
}

// claim decides whether l runs now and, if so, marks it as processing
func (d *Dispatcher) claim(channel string, l *listener) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.processing[channel][l.id] > 0 {
		metrics.DispatchTotal.WithLabelValues(metrics.ResultSkipped).Inc()
		d.logger.Debug().
			Str("channel", channel).
			Uint64("listener", uint64(l.id)).
			Msg("Skipping re-entrant listener")
		return false
	}
	// Detached (or consumed one-shot) since the snapshot was taken
	if !d.attachedLocked(channel, l.id) {
		return false
	}
	if l.once {
		d.removeLocked(channel, l.id)
	}

	set := d.processing[channel]
	if set == nil {
		set = make(map[ListenerID]int)
		d.processing[channel] = set
	}
	set[l.id]++
	d.stack = append(d.stack, frame{channel: channel, id: l.id})
	return true
}

func (d *Dispatcher) release(channel string, id ListenerID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if set := d.processing[channel]; set != nil {
		if set[id]--; set[id] <= 0 {
			delete(set, id)
		}
		if len(set) == 0 {
			delete(d.processing, channel)
		}
	}
	if n := len(d.stack); n > 0 {
		d.stack = d.stack[:n-1]
	}
}

func (d *Dispatcher) finishApply(channel string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n := len(d.applying); n > 0 {
		d.applying = d.applying[:n-1]
	}
	if p := d.params[channel]; len(p) > 1 {
		d.params[channel] = p[:len(p)-1]
	} else {
		delete(d.params, channel)
	}
	if len(d.channels[channel]) == 0 {
		delete(d.channels, channel)
	}
}

// invoke runs one listener, isolating errors and panics
func (d *Dispatcher) invoke(ctx context.Context, channel string, l *listener, payload any, args []any) (result any) {
	result = payload
	defer d.release(channel, l.id)
	defer func() {
		if r := recover(); r != nil {
			metrics.DispatchTotal.WithLabelValues(metrics.ResultFailed).Inc()
			d.logger.Error().
				Str("channel", channel).
				Uint64("listener", uint64(l.id)).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("Listener panicked")
			result = payload
		}
	}()

	out, err := l.handler(ctx, payload, args...)
	if err != nil {
		metrics.DispatchTotal.WithLabelValues(metrics.ResultFailed).Inc()
		d.logger.Error().
			Err(err).
			Str("channel", channel).
			Uint64("listener", uint64(l.id)).
			Msg("Listener failed")
		return payload
	}

	metrics.DispatchTotal.WithLabelValues(metrics.ResultInvoked).Inc()
	return out
}

// Is reports whether the innermost executing listener belongs to channel and,
// unless id is AnyListener, is the listener id
func (d *Dispatcher) Is(channel string, id ListenerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.stack) == 0 {
		return false
	}
	top := d.stack[len(d.stack)-1]
	return top.channel == channel && (id == AnyListener || top.id == id)
}

// In reports whether id (or any listener, for AnyListener) is executing for
// channel anywhere on the stack
func (d *Dispatcher) In(channel string, id ListenerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	set := d.processing[channel]
	if id == AnyListener {
		return len(set) > 0
	}
	return set[id] > 0
}

// Current returns the innermost executing listener
func (d *Dispatcher) Current() (channel string, id ListenerID, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.stack) == 0 {
		return "", AnyListener, false
	}
	top := d.stack[len(d.stack)-1]
	return top.channel, top.id, true
}

// CurrentParam returns the payload the innermost Apply started with
func (d *Dispatcher) CurrentParam() (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.applying) == 0 {
		return nil, false
	}
	p := d.params[d.applying[len(d.applying)-1]]
	if len(p) == 0 {
		return nil, false
	}
	return p[len(p)-1], true
}

// Count returns the number of channels with at least one listener
func (d *Dispatcher) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.channels)
}

// Has reports whether channel has listeners
func (d *Dispatcher) Has(channel string) bool {
	return d.Listeners(channel) > 0
}

// Listeners returns the number of listeners attached to channel
func (d *Dispatcher) Listeners(channel string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.channels[channel])
}

// Channels returns the names of channels with listeners, sorted
func (d *Dispatcher) Channels() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
