package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/cuemby/addonkit/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		want  Level
		valid bool
	}{
		{"debug", DebugLevel, true},
		{"info", InfoLevel, true},
		{"warn", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"verbose", InfoLevel, false},
		{"", InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.valid, ok)
		})
	}
}

func TestNewJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(New(Config{Level: WarnLevel, JSONOutput: true, Output: &buf}), "events")

	logger.Info().Msg("dropped")
	logger.Warn().Str("channel", "boot").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "events", line["component"])
	assert.Equal(t, "boot", line["channel"])
	assert.Equal(t, "warn", line["level"])
}

func newSink(t *testing.T, maxRows int) *TableSink {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sink, err := NewTableSink(store, "", maxRows)
	require.NoError(t, err)
	return sink
}

func TestTableSinkFiltersBySinkLevel(t *testing.T) {
	sink := newSink(t, 0)
	var buf bytes.Buffer
	logger := New(Config{Level: DebugLevel, JSONOutput: true, Output: &buf, Sink: sink, SinkLevel: WarnLevel})

	logger.Info().Msg("console only")
	logger.Error().Msg("persisted")

	entries, err := sink.Tail(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, string(entries[0].Line), "persisted")
	assert.NotContains(t, string(entries[0].Line), "\n")
	assert.Contains(t, buf.String(), "console only")
}

func TestTableSinkTrimsOldest(t *testing.T) {
	sink := newSink(t, 3)

	for i := 0; i < 7; i++ {
		_, err := fmt.Fprintf(sink, "line-%d\n", i)
		require.NoError(t, err)
	}

	entries, err := sink.Tail(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "line-4", string(entries[0].Line))
	assert.Equal(t, "line-6", string(entries[2].Line))
}

func TestTableSinkTail(t *testing.T) {
	sink := newSink(t, 0)
	for i := 0; i < 5; i++ {
		_, _ = fmt.Fprintf(sink, "line-%d", i)
	}

	entries, err := sink.Tail(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "line-3", string(entries[0].Line))
	assert.Equal(t, "line-4", string(entries[1].Line))
	assert.Less(t, entries[0].Key, entries[1].Key)
}

func TestTableSinkCloseStopsWrites(t *testing.T) {
	sink := newSink(t, 0)
	_, _ = fmt.Fprint(sink, "before")
	sink.Close()

	n, err := fmt.Fprint(sink, "after")
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	entries, err := sink.Tail(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "before", string(entries[0].Line))
}

func TestTableSinkTrim(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	// Rows written by a sink without a limit
	unbounded, err := NewTableSink(store, DefaultTable, 0)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, _ = fmt.Fprintf(unbounded, "line-%d", i)
	}

	bounded, err := NewTableSink(store, DefaultTable, 2)
	require.NoError(t, err)
	removed, err := bounded.Trim()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	entries, err := bounded.Tail(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "line-3", string(entries[0].Line))

	removed, err = bounded.Trim()
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
