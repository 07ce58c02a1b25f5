// Package storage provides the durable backends for the single favorites slot.
// Every backend stores one opaque payload per slot and replaces it with one
// conditional write call. Read returns nil data and an empty version when the
// slot is absent; Write succeeds only while the slot is still at the version
// the caller read, and fails with ErrConflict otherwise.
package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
)

// DefaultSlot is the slot name the favorites list lives under
const DefaultSlot = "gotgas:favorites"

// ErrConflict means the slot was written by someone else since it was read
var ErrConflict = errors.New("favorites slot changed since it was read")

// SlotKey turns a slot name into an object key / file name
func SlotKey(slot string) string {
	if slot == "" {
		slot = DefaultSlot
	}
	return strings.NewReplacer(":", "-", "/", "-").Replace(slot) + ".json"
}

// MemoryBlob keeps the slot in process memory. Used for local runs and tests.
type MemoryBlob struct {
	mu         sync.Mutex
	data       []byte
	generation uint64
}

func NewMemoryBlob(initial []byte) *MemoryBlob {
	b := &MemoryBlob{data: initial}
	if initial != nil {
		b.generation = 1
	}
	return b
}

func (b *MemoryBlob) Read(_ context.Context) ([]byte, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil, b.version(), nil
	}
	return append([]byte(nil), b.data...), b.version(), nil
}

func (b *MemoryBlob) Write(_ context.Context, data []byte, version string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if version != b.version() {
		return ErrConflict
	}
	b.data = append([]byte(nil), data...)
	b.generation++
	return nil
}

func (b *MemoryBlob) version() string {
	if b.generation == 0 {
		return ""
	}
	return strconv.FormatUint(b.generation, 10)
}
