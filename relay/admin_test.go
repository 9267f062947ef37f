package relay

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"anonrelay/logger"
	"anonrelay/models"
	"anonrelay/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func TestBanWithInvalidIdentity(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.e.BeginAction(admin, ActionBanTarget, 0))
	_, err := h.e.Resolve(ctx, admin, "not-a-number")
	assert.ErrorIs(t, err, ErrInvalidIdentity)
	assert.Equal(t, ActionIdle, h.e.Pending().Kind)
	assert.Equal(t, 0, h.e.Stats().Banned)
}

func TestBanToggle(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.e.BeginAction(admin, ActionBanTarget, 0))
	res, err := h.e.Resolve(ctx, admin, " 2 ")
	require.NoError(t, err)
	assert.True(t, res.Banned)
	assert.Equal(t, u2, res.Target)
	assert.True(t, h.e.IsBanned(u2))

	require.NoError(t, h.e.BeginAction(admin, ActionBanTarget, 0))
	res, err = h.e.Resolve(ctx, admin, "2")
	require.NoError(t, err)
	assert.False(t, res.Banned)
	assert.False(t, h.e.IsBanned(u2))
}

func TestPendingActionIsGlobal(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	const second int64 = 200
	require.NoError(t, h.e.Login(ctx, second, "adminpass"))

	require.NoError(t, h.e.BeginAction(admin, ActionBanTarget, 0))
	assert.Equal(t, ActionBanTarget, h.e.Pending().Kind)

	// another admin resolves the slot
	res, err := h.e.Resolve(ctx, second, "1")
	require.NoError(t, err)
	assert.Equal(t, ActionBanTarget, res.Kind)
	assert.True(t, h.e.IsBanned(u1))

	_, err = h.e.Resolve(ctx, admin, "1")
	assert.ErrorIs(t, err, ErrNoPendingAction)
}

func TestOnlyAdminsDriveActions(t *testing.T) {
	h := newHarness(t, nil)
	assert.ErrorIs(t, h.e.BeginAction(u1, ActionBanTarget, 0), ErrNotAdmin)

	require.NoError(t, h.e.BeginAction(admin, ActionBroadcastBody, 0))
	_, err := h.e.Resolve(context.Background(), u1, "hi")
	assert.ErrorIs(t, err, ErrNotAdmin)
	assert.Equal(t, ActionBroadcastBody, h.e.Pending().Kind)

	require.NoError(t, h.e.CancelAction(admin))
	assert.Equal(t, ActionIdle, h.e.Pending().Kind)
}

func TestBroadcastCountsSuccesses(t *testing.T) {
	h := newHarness(t, nil)
	h.tr.failSend[u1] = true

	require.NoError(t, h.e.BeginAction(admin, ActionBroadcastBody, 0))
	res, err := h.e.Resolve(context.Background(), admin, "news")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, "Рассылка от админа:\nnews", h.tr.lastTo(t, u2).msg.Text)
}

func TestComplaintReplyAction(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	c := fileComplaint(t, h, u2, nil, "help")

	assert.ErrorIs(t, h.e.BeginAction(admin, ActionComplaintReply, 99), ErrComplaintNotFound)
	require.NoError(t, h.e.BeginAction(admin, ActionComplaintReply, c.Seq))

	res, err := h.e.Resolve(ctx, admin, "sorted")
	require.NoError(t, err)
	assert.Equal(t, c.Seq, res.Target)
	assert.Equal(t, ReplyPrefix+"sorted", h.tr.lastTo(t, u2).msg.Text)
	assert.Empty(t, h.e.Complaints())
}

func TestResetWrongPassword(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.publish(t, u1, "keep", 0)

	require.NoError(t, h.e.BeginAction(admin, ActionResetConfirmation, 0))
	_, err := h.e.Resolve(ctx, admin, "guess")
	assert.ErrorIs(t, err, ErrBadCredential)
	assert.Equal(t, ActionIdle, h.e.Pending().Kind)
	assert.Equal(t, 1, h.e.Entries())
	assert.Empty(t, h.audit.lines)
}

func TestFullReset(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st := store.New(store.NewFileBackend(filepath.Join(dir, "data.json")), nil, zaptest.NewLogger(t))
	h := newHarness(t, st)

	audit, err := logger.NewAuditLog(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	defer audit.Close()
	h.e.audit = audit

	entry := h.publish(t, u1, "hello", 0)
	fileComplaint(t, h, u2, &entry.Seq, "bad")
	_, err = h.e.Submit(ctx, u2, text("draft"), 0)
	require.NoError(t, err)
	h.e.ToggleBan(ctx, 77)

	require.NoError(t, h.e.BeginAction(admin, ActionResetConfirmation, 0))
	_, err = h.e.Resolve(ctx, admin, "adminpass")
	require.NoError(t, err)

	s := h.e.Stats()
	assert.Equal(t, 0, s.Users)
	assert.Equal(t, 0, s.Drafts)
	assert.Equal(t, 0, s.Entries)
	assert.Equal(t, 0, s.Complaints)
	assert.Equal(t, 0, s.Banned)
	assert.True(t, s.Enabled)
	assert.False(t, h.e.HasAccepted(u1))
	assert.True(t, h.e.IsAdmin(admin))

	lines, err := logger.ReadAuditLines(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	loaded := st.Load(ctx)
	assert.Empty(t, loaded.Users)
	assert.Empty(t, loaded.Chat)
	assert.Equal(t, int64(1), loaded.NextSeq)
}

func TestScenario(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	// U1 publishes "hello"
	_, err := h.e.Submit(ctx, u1, text("hello"), 0)
	require.NoError(t, err)
	e0, err := h.e.Confirm(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), e0.Seq)
	assert.Equal(t, "hello\n\n"+testFooter, h.tr.lastTo(t, u2).msg.Text)
	assert.Equal(t, "📤 От: @one (1)\n\nhello\n\n"+testFooter, h.tr.lastTo(t, admin).msg.Text)

	// U2 replies to its own copy of entry 0
	_, err = h.e.Submit(ctx, u2, text("hi"), e0.Delivered[u2])
	require.NoError(t, err)
	e1, err := h.e.Confirm(ctx, u2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), e1.Seq)
	assert.Equal(t, e0.Delivered[u1], h.tr.lastTo(t, u1).msg.ReplyTo)

	// a complaint on entry 0, then the admin deletes its target
	c := fileComplaint(t, h, u2, &e0.Seq, "no")
	h.tr.reset()
	res, err := h.e.DeleteTarget(ctx, c.Seq)
	require.NoError(t, err)
	assert.Equal(t, TargetDeleted, res.Outcome)

	deleted := map[deleteCall]bool{}
	for _, d := range h.tr.deletes() {
		deleted[d] = true
	}
	assert.True(t, deleted[deleteCall{chat: u1, id: e0.Delivered[u1]}])
	assert.True(t, deleted[deleteCall{chat: u2, id: e0.Delivered[u2]}])

	_, ok := h.e.Lookup(0)
	assert.False(t, ok)
	_, ok = h.e.Lookup(1)
	assert.True(t, ok)
}

func TestLoginAndLogout(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.e.BeginLogin(ctx, u1)
	assert.True(t, h.e.AwaitingPassword(u1))
	assert.ErrorIs(t, h.e.Login(ctx, u1, "nope"), ErrBadCredential)
	assert.False(t, h.e.AwaitingPassword(u1))
	assert.False(t, h.e.IsAdmin(u1))

	require.NoError(t, h.e.Login(ctx, u1, " adminpass\n"))
	assert.True(t, h.e.IsAdmin(u1))
	assert.Equal(t, []int64{u1, admin}, h.e.Admins())

	h.e.Logout(u1)
	assert.False(t, h.e.IsAdmin(u1))
}

// lockCheckingVerifier records whether the engine mutex was free while Verify ran.
type lockCheckingVerifier struct {
	e        *Engine
	unlocked bool
}

func (v *lockCheckingVerifier) Verify(password string) bool {
	if v.e.mu.TryLock() {
		v.unlocked = true
		v.e.mu.Unlock()
	}
	return password == "secret"
}

func TestLoginVerifiesOutsideLock(t *testing.T) {
	ctx := context.Background()
	v := &lockCheckingVerifier{}
	e := New(nil, newFakeTransport(), nil, Options{Credential: v})
	v.e = e

	e.BeginLogin(ctx, u1)
	require.NoError(t, e.Login(ctx, u1, "secret"))
	assert.True(t, v.unlocked)
	assert.True(t, e.IsAdmin(u1))
	assert.False(t, e.AwaitingPassword(u1))

	v.unlocked = false
	require.NoError(t, e.Reset(ctx, u1, "secret"))
	assert.True(t, v.unlocked)
}

func TestMissingCredentialRejectsLogin(t *testing.T) {
	e := New(nil, newFakeTransport(), nil, Options{})
	assert.ErrorIs(t, e.Login(context.Background(), u1, "adminpass"), ErrBadCredential)
	assert.False(t, e.IsAdmin(u1))
}

func TestAcceptTermsRejectsBanned(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.e.ToggleBan(ctx, 5)
	assert.ErrorIs(t, h.e.AcceptTerms(ctx, 5), ErrBanned)
	assert.False(t, h.e.HasAccepted(5))
}

func TestRegisterRefreshesHandle(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	assert.False(t, h.e.Register(ctx, u1, "@renamed"))
	assert.True(t, h.e.Register(ctx, 42, ""))

	entry := h.publish(t, u1, "x", 0)
	assert.Equal(t, "@renamed", entry.AuthorHandle)

	// later renames do not touch history
	h.e.Register(ctx, u1, "@again")
	got, ok := h.e.Lookup(entry.Seq)
	require.True(t, ok)
	assert.Equal(t, "@renamed", got.AuthorHandle)
}

func TestAttributionFollowsCurrentSessions(t *testing.T) {
	h := newHarness(t, nil)
	h.e.Logout(admin)
	h.publish(t, u1, "x", 0)
	assert.Equal(t, "x\n\n"+testFooter, h.tr.lastTo(t, admin).msg.Text)
}

func TestCredentialFromHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	c, err := CredentialFromHash(string(hash))
	require.NoError(t, err)
	assert.True(t, c.Verify("s3cret"))
	assert.False(t, c.Verify("other"))

	_, err = CredentialFromHash("plain")
	assert.Error(t, err)

	var none *Credential
	assert.False(t, none.Verify("x"))
}

func TestAutosave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	st := store.New(store.NewFileBackend(path), nil, zaptest.NewLogger(t))
	e := New(models.NewState(), newFakeTransport(), st, Options{})
	e.Register(context.Background(), 3, "@x")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.RunAutosave(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.Contains(t, st.Load(context.Background()).Users, int64(3))
}
