package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"anonrelay/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

var errUnreachable = errors.New("recipient unreachable")

type sentMsg struct {
	to  int64
	msg Outgoing
	id  int
}

type deleteCall struct {
	chat int64
	id   int
}

// fakeTransport hands out per-recipient message ids (to*1000 + n) and
// records every call.
type fakeTransport struct {
	mu         sync.Mutex
	counters   map[int64]int
	sent       []sentMsg
	deleted    []deleteCall
	failSend   map[int64]bool
	failDelete map[int64]bool
	rejectHint map[int64]bool
	beforeSend func(to int64)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		counters:   make(map[int64]int),
		failSend:   make(map[int64]bool),
		failDelete: make(map[int64]bool),
		rejectHint: make(map[int64]bool),
	}
}

func (f *fakeTransport) Send(ctx context.Context, to int64, msg Outgoing) (int, error) {
	if f.beforeSend != nil {
		f.beforeSend(to)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend[to] {
		return 0, errUnreachable
	}
	if msg.ReplyTo != 0 && f.rejectHint[to] {
		return 0, errors.New("reply target not found")
	}
	f.counters[to]++
	id := int(to)*1000 + f.counters[to]
	f.sent = append(f.sent, sentMsg{to: to, msg: msg, id: id})
	return id, nil
}

func (f *fakeTransport) Delete(ctx context.Context, chat int64, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, deleteCall{chat: chat, id: id})
	if f.failDelete[chat] {
		return errUnreachable
	}
	return nil
}

func (f *fakeTransport) EditText(ctx context.Context, chat int64, id int, text string) error {
	return nil
}

func (f *fakeTransport) sentTo(to int64) []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMsg
	for _, s := range f.sent {
		if s.to == to {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeTransport) lastTo(t *testing.T, to int64) sentMsg {
	t.Helper()
	msgs := f.sentTo(to)
	require.NotEmpty(t, msgs, "nothing sent to %d", to)
	return msgs[len(msgs)-1]
}

func (f *fakeTransport) deletes() []deleteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]deleteCall(nil), f.deleted...)
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	f.sent = nil
	f.deleted = nil
	f.mu.Unlock()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memAudit struct {
	mu    sync.Mutex
	lines []string
}

func (a *memAudit) Append(action string, actor int64, at time.Time) error {
	a.mu.Lock()
	a.lines = append(a.lines, action)
	a.mu.Unlock()
	return nil
}

const (
	u1    int64 = 1
	u2    int64 = 2
	admin int64 = 100
)

const testFooter = "FOOTER"

type harness struct {
	e     *Engine
	tr    *fakeTransport
	clock *fakeClock
	audit *memAudit
}

func newHarness(t *testing.T, store Persister) *harness {
	t.Helper()
	cred, err := NewCredential("adminpass", bcrypt.MinCost)
	require.NoError(t, err)

	h := &harness{
		tr:    newFakeTransport(),
		clock: &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		audit: &memAudit{},
	}
	h.e = New(models.NewState(), h.tr, store, Options{
		Footer:        testFooter,
		RateLimit:     30 * time.Second,
		Concurrency:   4,
		DisplayOffset: 5 * time.Hour,
		Credential:    cred,
		Clock:         h.clock,
		Logger:        zaptest.NewLogger(t),
		Audit:         h.audit,
	})

	ctx := context.Background()
	h.e.Register(ctx, u1, "@one")
	h.e.Register(ctx, u2, "@two")
	h.e.Register(ctx, admin, "@boss")
	require.NoError(t, h.e.AcceptTerms(ctx, u1))
	require.NoError(t, h.e.AcceptTerms(ctx, u2))
	require.NoError(t, h.e.Login(ctx, admin, "adminpass"))
	return h
}

// publish submits and confirms text from id, moving the clock past the rate limit first.
func (h *harness) publish(t *testing.T, id int64, text string, replyTo int) *models.ChatEntry {
	t.Helper()
	h.clock.Advance(time.Minute)
	_, err := h.e.Submit(context.Background(), id, models.Content{Kind: models.KindText, Body: text}, replyTo)
	require.NoError(t, err)
	entry, err := h.e.Confirm(context.Background(), id)
	require.NoError(t, err)
	return entry
}
