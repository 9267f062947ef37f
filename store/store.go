package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"anonrelay/models"

	"go.uber.org/zap"
)

// Store loads and saves the shared state document through a Backend,
// optionally passing the bytes through a Cipher.
type Store struct {
	backend Backend
	cipher  *Cipher
	log     *zap.Logger

	// mu serializes writes; it does not guard the in-memory state.
	mu      sync.Mutex
	written uint64
}

func New(backend Backend, cipher *Cipher, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{backend: backend, cipher: cipher, log: log}
}

func (s *Store) Backend() Backend { return s.backend }

// Load never fails: a missing or unreadable document yields an empty state.
func (s *Store) Load(ctx context.Context) *models.State {
	st, _, err := s.Inspect(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		s.log.Info("no saved state, starting fresh", zap.String("backend", s.backend.Name()))
		return models.NewState()
	case err != nil:
		s.log.Error("failed to load state, starting fresh",
			zap.String("backend", s.backend.Name()), zap.Error(err))
		return models.NewState()
	}
	return st
}

// Inspect reads and decodes the stored document, returning its raw size.
func (s *Store) Inspect(ctx context.Context) (*models.State, int, error) {
	raw, err := s.backend.Read(ctx)
	if err != nil {
		return nil, 0, err
	}

	plain := raw
	switch {
	case s.cipher != nil && IsEncrypted(raw):
		if plain, err = s.cipher.Decrypt(raw); err != nil {
			return nil, len(raw), err
		}
	case s.cipher != nil:
		s.log.Warn("stored state is not encrypted, reading as plaintext")
	case IsEncrypted(raw):
		return nil, len(raw), fmt.Errorf("%w: document is encrypted but no key is configured", ErrCipher)
	}

	st := models.NewState()
	if err := json.Unmarshal(plain, st); err != nil {
		return nil, len(raw), fmt.Errorf("decode state: %w", err)
	}
	st.Normalize()
	return st, len(raw), nil
}

// Snapshot encodes the state. Callers hold whatever lock guards st.
func (s *Store) Snapshot(st *models.State) ([]byte, error) {
	return json.MarshalIndent(st, "", "  ")
}

// Write persists a snapshot taken at generation gen. A snapshot older than
// one already written is dropped, so late writers cannot roll state back.
func (s *Store) Write(ctx context.Context, gen uint64, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != 0 && gen <= s.written {
		return nil
	}

	payload := snapshot
	if s.cipher != nil {
		var err error
		if payload, err = s.cipher.Encrypt(snapshot); err != nil {
			return fmt.Errorf("encrypt state: %w", err)
		}
	}
	if err := s.backend.Write(ctx, payload); err != nil {
		return fmt.Errorf("%s backend: %w", s.backend.Name(), err)
	}
	if gen > s.written {
		s.written = gen
	}
	return nil
}

// Save encodes and writes st unconditionally.
func (s *Store) Save(ctx context.Context, st *models.State) error {
	snap, err := s.Snapshot(st)
	if err != nil {
		return err
	}
	return s.Write(ctx, 0, snap)
}

func (s *Store) Close() error {
	return s.backend.Close()
}
