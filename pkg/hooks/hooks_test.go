package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/addonkit/pkg/events"
	"github.com/cuemby/addonkit/pkg/log"
	"github.com/cuemby/addonkit/pkg/options"
	"github.com/cuemby/addonkit/pkg/profiler"
	"github.com/cuemby/addonkit/pkg/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHost struct {
	dispatcher *events.Dispatcher
	options    *options.Store
	profiler   *profiler.Registry
}

func newTestHost(t *testing.T) *testHost {
	t.Helper()
	store, err := storage.Open(storage.BackendBolt, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	opts, err := options.New(store, log.Nop(), options.DefaultConfig())
	require.NoError(t, err)

	return &testHost{
		dispatcher: events.NewDispatcher(log.Nop()),
		options:    opts,
		profiler:   profiler.NewRegistry(),
	}
}

func (h *testHost) Dispatcher() *events.Dispatcher { return h.dispatcher }
func (h *testHost) Options() *options.Store        { return h.options }
func (h *testHost) Profiler() *profiler.Registry   { return h.profiler }
func (h *testHost) Logger() zerolog.Logger         { return log.Nop() }

func appendHandler(suffix string) events.Handler {
	return func(_ context.Context, payload any, _ ...any) (any, error) {
		return payload.(string) + suffix, nil
	}
}

func TestQueueValidation(t *testing.T) {
	svc := New(newTestHost(t))

	tests := []struct {
		name    string
		hook    Hook
		wantErr error
	}{
		{name: "valid", hook: Hook{Name: "a", Channel: "c", Handler: appendHandler("a")}},
		{name: "no name", hook: Hook{Channel: "c", Handler: appendHandler("a")}, wantErr: ErrInvalidHook},
		{name: "no channel", hook: Hook{Name: "b", Handler: appendHandler("a")}, wantErr: ErrInvalidHook},
		{name: "no handler", hook: Hook{Name: "b", Channel: "c"}, wantErr: ErrInvalidHook},
		{name: "bad condition", hook: Hook{Name: "b", Channel: "c", When: "payload >", Handler: appendHandler("a")}, wantErr: ErrInvalidHook},
		{name: "non-bool condition", hook: Hook{Name: "b", Channel: "c", When: "channel + 'x'", Handler: appendHandler("a")}, wantErr: ErrInvalidHook},
		{name: "duplicate", hook: Hook{Name: "a", Channel: "c", Handler: appendHandler("a")}, wantErr: ErrDuplicateHook},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Queue(tt.hook)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
	assert.Equal(t, []string{"a"}, svc.Queued())
}

func TestRunAttachesQueuedHooks(t *testing.T) {
	host := newTestHost(t)
	svc := New(host)
	ctx := context.Background()

	require.NoError(t, svc.Queue(Hook{Name: "one", Channel: "title", Handler: appendHandler("1")}))
	require.NoError(t, svc.Queue(Hook{Name: "two", Channel: "title", Handler: appendHandler("2")}))

	assert.Empty(t, svc.Attached())
	assert.Equal(t, "x", host.dispatcher.Apply(ctx, "title", "x"))

	require.NoError(t, svc.Run(ctx))
	assert.Equal(t, []string{"one", "two"}, svc.Attached())
	assert.Equal(t, "x12", host.dispatcher.Apply(ctx, "title", "x"))

	// Queued after Run attaches immediately
	require.NoError(t, svc.Queue(Hook{Name: "three", Channel: "title", Handler: appendHandler("3")}))
	assert.Equal(t, "x123", host.dispatcher.Apply(ctx, "title", "x"))

	// Run again does not attach twice
	require.NoError(t, svc.Run(ctx))
	assert.Equal(t, 3, host.dispatcher.Listeners("title"))
}

func TestRemoveDetaches(t *testing.T) {
	host := newTestHost(t)
	svc := New(host)
	ctx := context.Background()

	require.NoError(t, svc.Queue(Hook{Name: "one", Channel: "title", Handler: appendHandler("1")}))
	require.NoError(t, svc.Run(ctx))

	assert.True(t, svc.Remove("one"))
	assert.False(t, svc.Remove("one"))
	assert.False(t, host.dispatcher.Has("title"))
	assert.Empty(t, svc.Queued())
}

func TestOnceHookFiresOnce(t *testing.T) {
	host := newTestHost(t)
	svc := New(host)
	ctx := context.Background()

	require.NoError(t, svc.Queue(Hook{Name: "once", Channel: "title", Once: true, Handler: appendHandler("!")}))
	require.NoError(t, svc.Run(ctx))

	assert.Equal(t, "a!", host.dispatcher.Apply(ctx, "title", "a"))
	assert.Equal(t, "a", host.dispatcher.Apply(ctx, "title", "a"))
	assert.Empty(t, svc.Attached())
	assert.Equal(t, []string{"once"}, svc.Queued())
}

func TestConditionGatesHandler(t *testing.T) {
	host := newTestHost(t)
	svc := New(host)
	ctx := context.Background()

	double := func(_ context.Context, payload any, _ ...any) (any, error) {
		m := payload.(map[string]any)
		return map[string]any{"amount": m["amount"].(int) * 2}, nil
	}
	require.NoError(t, svc.Queue(Hook{
		Name:    "big",
		Channel: "order.placed",
		When:    `payload.amount > 100 && channel.startsWith("order.")`,
		Handler: double,
	}))
	require.NoError(t, svc.Run(ctx))

	small := map[string]any{"amount": 5}
	assert.Equal(t, small, host.dispatcher.Apply(ctx, "order.placed", small))

	big := map[string]any{"amount": 200}
	assert.Equal(t, map[string]any{"amount": 400}, host.dispatcher.Apply(ctx, "order.placed", big))

	spans := host.profiler.Group(ProfileGroup).Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, "hook:big", spans[0].Name())
	assert.Equal(t, true, spans[0].Data()["skipped"])
	assert.True(t, spans[1].Locked())
	assert.NotContains(t, spans[1].Data(), "skipped")
}

func TestConditionOnStructPayload(t *testing.T) {
	host := newTestHost(t)
	svc := New(host)
	ctx := context.Background()

	type order struct {
		Status string `json:"status"`
	}
	hit := false
	require.NoError(t, svc.Queue(Hook{
		Name:    "paid",
		Channel: "order",
		When:    `payload.status == "paid"`,
		Handler: func(_ context.Context, payload any, _ ...any) (any, error) {
			hit = true
			return payload, nil
		},
	}))
	require.NoError(t, svc.Run(ctx))

	host.dispatcher.Apply(ctx, "order", order{Status: "paid"})
	assert.True(t, hit)
}

func TestConditionErrorLeavesPayload(t *testing.T) {
	host := newTestHost(t)
	svc := New(host)
	ctx := context.Background()

	require.NoError(t, svc.Queue(Hook{
		Name:    "missing-field",
		Channel: "c",
		When:    `payload.nope == 1`,
		Handler: appendHandler("!"),
	}))
	require.NoError(t, svc.Run(ctx))

	assert.Equal(t, map[string]any{}, host.dispatcher.Apply(ctx, "c", map[string]any{}))
	spans := host.profiler.Group(ProfileGroup).Spans()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Data(), "error")
}

func TestHandlerErrorRecordedOnSpan(t *testing.T) {
	host := newTestHost(t)
	svc := New(host)
	ctx := context.Background()

	require.NoError(t, svc.Queue(Hook{
		Name:    "fails",
		Channel: "c",
		Handler: func(_ context.Context, payload any, _ ...any) (any, error) {
			return nil, errors.New("nope")
		},
	}))
	require.NoError(t, svc.Run(ctx))

	assert.Equal(t, "in", host.dispatcher.Apply(ctx, "c", "in"))
	spans := host.profiler.Group(ProfileGroup).Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, "nope", spans[0].Data()["error"])
}
