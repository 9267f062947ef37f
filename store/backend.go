package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("no persisted state")

// Backend stores the whole document as one opaque blob.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, payload []byte) error
	Name() string
	Close() error
}
