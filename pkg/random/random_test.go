package random

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func failing(p []byte) error { return errors.New("unavailable") }

func TestBytesLength(t *testing.T) {
	g := New()
	for _, n := range []int{0, 1, 16, 33} {
		assert.Len(t, g.Bytes(n), n)
	}
	assert.Len(t, g.Bytes(-1), 0)
}

func TestTokenIsHex(t *testing.T) {
	tok := New().Token(16)
	assert.Len(t, tok, 32)
	assert.Regexp(t, "^[0-9a-f]+$", tok)
	assert.NotEqual(t, tok, New().Token(16))
}

func TestFallbackChain(t *testing.T) {
	calls := []string{}
	first := func(p []byte) error {
		calls = append(calls, "first")
		return errors.New("no entropy")
	}
	second := func(p []byte) error {
		calls = append(calls, "second")
		for i := range p {
			p[i] = 7
		}
		return nil
	}

	b := New(first, second).Bytes(4)
	assert.Equal(t, []byte{7, 7, 7, 7}, b)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestUUIDSourceFillsOddLengths(t *testing.T) {
	p := make([]byte, 37)
	assert.NoError(t, UUIDSource(p))
	assert.NotEqual(t, make([]byte, 37), p)
}

func TestAllSourcesFailStillReturns(t *testing.T) {
	b := New(failing, failing).Bytes(64)
	assert.Len(t, b, 64)
	assert.NotEqual(t, make([]byte, 64), b)
}
