package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"anonrelay/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sampleState() *models.State {
	st := models.NewState()
	st.Users[1] = &models.User{ID: 1, Handle: "@alice", PublishCount: 2}
	st.Users[2] = &models.User{ID: 2}
	st.Accepted.Add(1)
	st.Banned.Add(3)
	st.Chat = append(st.Chat, &models.ChatEntry{
		ID:          "e0",
		Seq:         4,
		AuthorID:    1,
		Content:     models.Content{Kind: models.KindText, Body: "hello"},
		PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Delivered:   map[int64]int{2: 10},
	})
	st.Enabled = false
	return st
}

func TestFileBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")
	s := New(NewFileBackend(path), nil, zaptest.NewLogger(t))

	require.NoError(t, s.Save(ctx, sampleState()))

	st := s.Load(ctx)
	assert.False(t, st.Enabled)
	assert.Equal(t, "@alice", st.Users[1].Handle)
	assert.Equal(t, int64(1), st.Users[1].ID)
	assert.True(t, st.Accepted.Has(1))
	assert.True(t, st.Banned.Has(3))
	require.Len(t, st.Chat, 1)
	assert.Equal(t, 10, st.Chat[0].Delivered[2])
	assert.Equal(t, int64(5), st.NextSeq)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")
	s := New(NewFileBackend(path), nil, zaptest.NewLogger(t))

	st := s.Load(ctx)
	assert.True(t, st.Enabled)
	assert.Empty(t, st.Users)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	st = s.Load(ctx)
	assert.True(t, st.Enabled)
	assert.Empty(t, st.Chat)
}

func TestEncryptedRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")

	c, err := NewCipher("secret")
	require.NoError(t, err)
	s := New(NewFileBackend(path), c, zaptest.NewLogger(t))
	require.NoError(t, s.Save(ctx, sampleState()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, IsEncrypted(raw))
	assert.NotContains(t, string(raw), "alice")

	// a fresh cipher with the same passphrase reads it back
	c2, err := NewCipher("secret")
	require.NoError(t, err)
	st := New(NewFileBackend(path), c2, zaptest.NewLogger(t)).Load(ctx)
	assert.Equal(t, "@alice", st.Users[1].Handle)

	// wrong key falls back to empty state
	bad, err := NewCipher("other")
	require.NoError(t, err)
	st = New(NewFileBackend(path), bad, zaptest.NewLogger(t)).Load(ctx)
	assert.Empty(t, st.Users)

	// no key at all
	_, _, err = New(NewFileBackend(path), nil, zaptest.NewLogger(t)).Inspect(ctx)
	assert.ErrorIs(t, err, ErrCipher)
}

func TestCipherRejectsTruncated(t *testing.T) {
	c, err := NewCipher("k")
	require.NoError(t, err)
	enc, err := c.Encrypt([]byte("payload"))
	require.NoError(t, err)

	_, err = c.Decrypt(enc[:10])
	assert.ErrorIs(t, err, ErrCipher)

	enc[len(enc)-1] ^= 0xff
	_, err = c.Decrypt(enc)
	assert.ErrorIs(t, err, ErrCipher)
}

func TestWriteDropsStaleGeneration(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")
	s := New(NewFileBackend(path), nil, zaptest.NewLogger(t))

	newer := sampleState()
	older := models.NewState()

	snapNew, err := s.Snapshot(newer)
	require.NoError(t, err)
	snapOld, err := s.Snapshot(older)
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, 2, snapNew))
	require.NoError(t, s.Write(ctx, 1, snapOld))

	st := s.Load(ctx)
	assert.Equal(t, "@alice", st.Users[1].Handle)
}

func TestRedisBackend(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisBackendFromClient(client, "anonrelay:test")
	defer b.Close()

	require.NoError(t, b.Ping(ctx))

	_, err := b.Read(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	s := New(b, nil, zaptest.NewLogger(t))
	require.NoError(t, s.Save(ctx, sampleState()))
	assert.True(t, mr.Exists("anonrelay:test"))

	st := s.Load(ctx)
	assert.Equal(t, "@alice", st.Users[1].Handle)
}

func TestPebbleBackend(t *testing.T) {
	ctx := context.Background()
	b, err := NewPebbleBackend(filepath.Join(t.TempDir(), "state.pebble"))
	require.NoError(t, err)
	s := New(b, nil, zaptest.NewLogger(t))
	defer s.Close()

	assert.Empty(t, s.Load(ctx).Users)

	require.NoError(t, s.Save(ctx, sampleState()))
	got := s.Load(ctx)
	assert.Equal(t, "@alice", got.Users[1].Handle)
	assert.Equal(t, "pebble", b.Name())
}

func TestLoadDropsNullElements(t *testing.T) {
	ctx := context.Background()
	docs := map[string]string{
		"chat":       `{"chat":[null,{"seq":1}]}`,
		"complaints": `{"complaints":[null]}`,
		"drafts":     `{"drafts":{"5":null}}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data.json")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

			var st *models.State
			require.NotPanics(t, func() {
				st = New(NewFileBackend(path), nil, zaptest.NewLogger(t)).Load(ctx)
			})
			for _, e := range st.Chat {
				assert.NotNil(t, e)
			}
			assert.Empty(t, st.Complaints)
			assert.Empty(t, st.Drafts)
		})
	}

	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"chat":[null,{"seq":1}]}`), 0o600))
	st := New(NewFileBackend(path), nil, zaptest.NewLogger(t)).Load(ctx)
	require.Len(t, st.Chat, 1)
	assert.Equal(t, int64(1), st.Chat[0].Seq)
	assert.Equal(t, int64(2), st.NextSeq)
}
