package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"anonrelay/config"
	"anonrelay/db"
	"anonrelay/models"
	"anonrelay/relay"
	"anonrelay/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

func TestWatchConsole(t *testing.T) {
	var reason string
	watchConsole(strings.NewReader("hello\n  QUIT \nexit\n"), func(r string) { reason = r })
	assert.Equal(t, "console", reason)

	reason = ""
	watchConsole(strings.NewReader("status\n"), func(r string) { reason = r })
	assert.Empty(t, reason)
}

func TestStopperOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &stopper{cancel: cancel, log: zaptest.NewLogger(t)}
	s.stop("first")
	s.stop("second")
	assert.Equal(t, "first", s.reason)
	assert.Error(t, ctx.Err())
}

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := openBackend(ctx, &config.Config{StoreBackend: "file", DataFile: filepath.Join(dir, "data.json")})
	require.NoError(t, err)
	assert.Equal(t, "file", b.Name())

	b, err = openBackend(ctx, &config.Config{StoreBackend: "sqlite", SQLitePath: filepath.Join(dir, "relay.db")})
	require.NoError(t, err)
	defer b.Close()
	_, ok := b.(*db.DB)
	assert.True(t, ok)
}

func TestOpenBackendRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := openBackend(ctx, &config.Config{StoreBackend: "redis", RedisAddr: "127.0.0.1:1", RedisKey: "k"})
	assert.Error(t, err)
}

func TestCredentialPrefersHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed"), bcrypt.MinCost)
	require.NoError(t, err)

	cred, err := credential(&config.Config{AdminPassword: "plain", AdminPasswordHash: string(hash)})
	require.NoError(t, err)
	assert.True(t, cred.Verify("hashed"))
	assert.False(t, cred.Verify("plain"))
}

type nopTransport struct{}

func (nopTransport) Send(context.Context, int64, relay.Outgoing) (int, error) { return 1, nil }
func (nopTransport) Delete(context.Context, int64, int) error                  { return nil }
func (nopTransport) EditText(context.Context, int64, int, string) error        { return nil }

func TestControlHandler(t *testing.T) {
	engine := relay.New(models.NewState(), nopTransport{}, nil, relay.Options{})
	engine.Register(context.Background(), 1, "@a")

	var stopped string
	h := controlHandler{engine: engine, stop: func(r string) { stopped = r }}
	assert.Equal(t, "users=1,drafts=0,entries=0,complaints=0,banned=0,admins=0,enabled=true", h.Stats())

	h.Shutdown("upgrade")
	assert.Equal(t, "upgrade", stopped)
}

func TestPrintSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	s := store.New(store.NewFileBackend(path), nil, nil)

	st := models.NewState()
	st.Users[1] = &models.User{ID: 1, PublishCount: 1200}
	st.Accepted.Add(1)
	st.Chat = append(st.Chat, &models.ChatEntry{Seq: 4, PublishedAt: time.Now().Add(-time.Hour)})
	st.NextSeq = 5
	require.NoError(t, s.Save(context.Background(), st))

	loaded, size, err := s.Inspect(context.Background())
	require.NoError(t, err)

	var out bytes.Buffer
	printSummary(&out, summary{Backend: "file", Size: size, State: loaded, Resets: 2})
	text := out.String()
	assert.Contains(t, text, "State summary (file backend)")
	assert.Contains(t, text, "Users: 1 (accepted 1, banned 0)")
	assert.Contains(t, text, "Chat entries: 1 (next #5)")
	assert.Contains(t, text, "Published total: 1,200")
	assert.Contains(t, text, "Resets logged: 2")
	assert.Contains(t, text, "Last entry: #4 1 hour ago")
}

func TestWriteReport(t *testing.T) {
	st := models.NewState()
	st.Users[1] = &models.User{ID: 1, PublishCount: 3}
	st.Users[2] = &models.User{ID: 2}
	st.Banned.Add(2)
	st.Chat = append(st.Chat, &models.ChatEntry{Seq: 7, PublishedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)})
	st.NextSeq = 8

	var out bytes.Buffer
	require.NoError(t, writeReport(&out, summary{Backend: "pebble", Size: 512, State: st, Resets: 1}))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "pebble", got["backend"])
	assert.Equal(t, 512, got["size_bytes"])
	assert.Equal(t, 2, got["users"])
	assert.Equal(t, 1, got["banned"])
	assert.Equal(t, 3, got["published"])
	assert.Equal(t, 8, got["next_entry"])
	last, ok := got["last_entry"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 7, last["seq"])
}

func TestOpenBackendPebble(t *testing.T) {
	b, err := openBackend(context.Background(), &config.Config{StoreBackend: "pebble", PebblePath: filepath.Join(t.TempDir(), "state")})
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, "pebble", b.Name())
}
