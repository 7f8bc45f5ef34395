// Package wasm resolves the concrete light client behind an 08-wasm client: the checksum of the
// code a client runs, and the client type that code implements.
package wasm

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
)

// Checksum is the sha256 of a stored wasm code blob.
type Checksum [32]byte

func (c Checksum) String() string { return hex.EncodeToString(c[:]) }

// ParseChecksum decodes a hex checksum, with or without 0x prefix.
func ParseChecksum(s string) (Checksum, error) {
	var c Checksum
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("parse checksum: %w", err)
	}
	if len(b) != len(c) {
		return c, fmt.Errorf("parse checksum: expected %d bytes, got %d", len(c), len(b))
	}
	copy(c[:], b)
	return c, nil
}

// ClientType is the light client a wasm blob implements, e.g. "cometbls" or "ethereum".
type ClientType string

// Backing persists cache entries across restarts. It must keep the insert-only contract: a
// checksum never maps to a different client type once saved.
type Backing interface {
	LoadChecksums(ctx context.Context) (map[Checksum]ClientType, error)
	SaveChecksum(ctx context.Context, checksum Checksum, clientType ClientType) error
}

// Cache maps checksums to client types. Entries are only ever inserted.
type Cache struct {
	entries sync.Map // Checksum -> ClientType
	size    atomic.Int64
	backing Backing
}

func NewCache() *Cache {
	return &Cache{}
}

// Warm loads every persisted entry and persists future inserts to b.
func (c *Cache) Warm(ctx context.Context, b Backing) error {
	stored, err := b.LoadChecksums(ctx)
	if err != nil {
		return fmt.Errorf("load checksums: %w", err)
	}
	for sum, ct := range stored {
		if _, loaded := c.entries.LoadOrStore(sum, ct); !loaded {
			c.size.Add(1)
		}
	}
	c.backing = b
	return nil
}

func (c *Cache) Get(sum Checksum) (ClientType, bool) {
	v, ok := c.entries.Load(sum)
	if !ok {
		return "", false
	}
	return v.(ClientType), true
}

// Insert stores ct for sum unless an entry exists, and returns the stored value. Concurrent
// inserts of the same checksum all observe the first one.
func (c *Cache) Insert(ctx context.Context, sum Checksum, ct ClientType) (ClientType, error) {
	v, loaded := c.entries.LoadOrStore(sum, ct)
	if loaded {
		return v.(ClientType), nil
	}
	c.size.Add(1)
	if c.backing != nil {
		if err := c.backing.SaveChecksum(ctx, sum, ct); err != nil {
			return ct, fmt.Errorf("persist checksum %s: %w", sum, err)
		}
	}
	return ct, nil
}

func (c *Cache) Len() int {
	return int(c.size.Load())
}
