// Package serial converts option values to and from their stored string form.
//
// Stored values are JSON documents. A plain string is stored as-is unless it
// already parses as a JSON document, in which case it is encoded once more so
// reading it back yields the original string rather than the decoded document.
package serial

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrUnserializable is returned by Check for values that cannot be stored
var ErrUnserializable = errors.New("value cannot be serialized")

// IsSerialized reports whether s looks like a serialized value
func IsSerialized(s string) bool {
	return s != "" && gjson.Valid(s)
}

// Serialize returns the stored form of v
func Serialize(v any) (string, error) {
	if s, ok := v.(string); ok {
		if !IsSerialized(s) {
			return s, nil
		}
		// Already looks serialized: encode again so it round-trips as a string
		data, err := json.Marshal(s)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize %T: %w", v, err)
	}
	return string(data), nil
}

// Unserialize decodes s when it looks serialized and returns it unchanged
// otherwise. Malformed input fails closed by returning s. Integral numbers
// decode to int64 and the rest to float64.
func Unserialize(s string) any {
	if !IsSerialized(s) {
		return s
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return s
	}
	return normalizeNumbers(v)
}

// normalizeNumbers replaces json.Number values inside v
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	}
	return v
}

// Check validates that v can be stored and returns the value to queue.
// Functions, channels and unsafe pointers are rejected outright. Values that
// do not JSON-encode are coerced through encoding.TextMarshaler or
// fmt.Stringer, and rejected when neither is available.
func Check(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, fmt.Errorf("%w: %T", ErrUnserializable, v)
	}

	if _, err := json.Marshal(v); err == nil {
		return v, nil
	}

	if tm, ok := v.(encoding.TextMarshaler); ok {
		if text, err := tm.MarshalText(); err == nil {
			return string(text), nil
		}
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnserializable, v)
}
