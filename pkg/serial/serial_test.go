package serial

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSerialized(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"hello", false},
		{"hello world", false},
		{`{"a":1}`, true},
		{`[1,2]`, true},
		{`"quoted"`, true},
		{"42", true},
		{"true", true},
		{`{"a":`, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSerialized(tt.in))
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"plain string", "hello", "hello"},
		{"string that looks serialized", `{"a":1}`, `{"a":1}`},
		{"numeric string", "42", "42"},
		{"number", 42, int64(42)},
		{"large int", int64(9007199254740993), int64(9007199254740993)},
		{"negative int", -7, int64(-7)},
		{"fraction", 1.5, 1.5},
		{"nested numbers", map[string]any{"n": 3, "l": []any{1, 2.5}}, map[string]any{"n": int64(3), "l": []any{int64(1), 2.5}}},
		{"bool", true, true},
		{"map", map[string]any{"a": "b"}, map[string]any{"a": "b"}},
		{"slice", []string{"x", "y"}, []any{"x", "y"}},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored, err := Serialize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Unserialize(stored))
		})
	}
}

func TestSerializePlainStringUnchanged(t *testing.T) {
	stored, err := Serialize("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", stored)
}

func TestUnserializeFailsClosed(t *testing.T) {
	assert.Equal(t, `{"broken":`, Unserialize(`{"broken":`))
}

type named struct{ n string }

func (v named) String() string { return "named:" + v.n }

type cyclic struct {
	Self *cyclic
	Fn   func()
}

func TestCheck(t *testing.T) {
	t.Run("scalars pass", func(t *testing.T) {
		v, err := Check(5)
		require.NoError(t, err)
		assert.Equal(t, 5, v)
	})

	t.Run("func rejected", func(t *testing.T) {
		_, err := Check(func() {})
		assert.ErrorIs(t, err, ErrUnserializable)
	})

	t.Run("chan rejected", func(t *testing.T) {
		_, err := Check(make(chan int))
		assert.ErrorIs(t, err, ErrUnserializable)
	})

	t.Run("unsafe pointer rejected", func(t *testing.T) {
		x := 1
		_, err := Check(unsafe.Pointer(&x))
		assert.ErrorIs(t, err, ErrUnserializable)
	})

	t.Run("unencodable without stringer rejected", func(t *testing.T) {
		_, err := Check(cyclic{Fn: func() {}})
		assert.ErrorIs(t, err, ErrUnserializable)
	})

	t.Run("stringer coerced", func(t *testing.T) {
		v, err := Check(struct {
			named
			Fn func()
		}{named: named{n: "x"}, Fn: func() {}})
		require.NoError(t, err)
		assert.Equal(t, "named:x", v)
	})
}
