package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

var stateKey = []byte("state:document")

// PebbleBackend keeps the document under one key of an embedded pebble store.
type PebbleBackend struct {
	db *pebble.DB
}

func NewPebbleBackend(path string) (*PebbleBackend, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", path, err)
	}
	return &PebbleBackend{db: db}, nil
}

func (b *PebbleBackend) Name() string { return "pebble" }

func (b *PebbleBackend) Read(ctx context.Context) ([]byte, error) {
	value, closer, err := b.db.Get(stateKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Write replaces the document with a synced Set.
func (b *PebbleBackend) Write(ctx context.Context, payload []byte) error {
	return b.db.Set(stateKey, payload, pebble.Sync)
}

func (b *PebbleBackend) Close() error {
	return b.db.Close()
}
