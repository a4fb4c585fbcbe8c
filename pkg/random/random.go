// Package random produces random bytes and tokens that never fail: each
// source in the chain is tried in turn and the last one cannot error.
package random

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand"

	"github.com/google/uuid"
)

// Source fills p with random bytes or reports why it could not
type Source func(p []byte) error

// CryptoSource reads from the operating system CSPRNG
func CryptoSource(p []byte) error {
	_, err := crand.Read(p)
	return err
}

// UUIDSource fills p from successive random (v4) UUIDs
func UUIDSource(p []byte) error {
	for off := 0; off < len(p); {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("uuid source: %w", err)
		}
		off += copy(p[off:], id[:])
	}
	return nil
}

// fallback fills p one byte at a time and cannot fail
func fallback(p []byte) {
	for i := range p {
		p[i] = byte(mrand.Intn(256))
	}
}

// Generator walks its sources in order until one succeeds
type Generator struct {
	sources []Source
}

// New returns a generator over sources. With no sources it uses the default
// chain: CryptoSource, then UUIDSource.
func New(sources ...Source) *Generator {
	if len(sources) == 0 {
		sources = []Source{CryptoSource, UUIDSource}
	}
	return &Generator{sources: sources}
}

// Bytes returns n random bytes
func (g *Generator) Bytes(n int) []byte {
	if n <= 0 {
		return []byte{}
	}
	p := make([]byte, n)
	for _, src := range g.sources {
		if src(p) == nil {
			return p
		}
	}
	fallback(p)
	return p
}

// Token returns a hex string of n random bytes
func (g *Generator) Token(n int) string {
	return hex.EncodeToString(g.Bytes(n))
}
