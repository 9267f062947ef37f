package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"anonrelay/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(body string) models.Content {
	return models.Content{Kind: models.KindText, Body: body}
}

func TestRateLimitWindow(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.e.Submit(ctx, u1, text("first"), 0)
	require.NoError(t, err)
	_, err = h.e.Confirm(ctx, u1)
	require.NoError(t, err)

	h.clock.Advance(10 * time.Second)
	_, err = h.e.Submit(ctx, u1, text("second"), 0)
	var rl *RateLimitedError
	require.True(t, errors.As(err, &rl), "got %v", err)
	assert.Equal(t, 20*time.Second, rl.Remaining)
	assert.Equal(t, 20, rl.Seconds())
	_, ok := h.e.Draft(u1)
	assert.False(t, ok)

	h.clock.Advance(20 * time.Second)
	_, err = h.e.Submit(ctx, u1, text("second"), 0)
	assert.NoError(t, err)
}

func TestRateLimitIsPerUser(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.publish(t, u1, "first", 0)

	_, err := h.e.Submit(ctx, u2, text("other"), 0)
	assert.NoError(t, err)
}

func TestIneligibleSubmissions(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.e.Register(ctx, 9, "")
	_, err := h.e.Submit(ctx, 9, text("x"), 0)
	assert.ErrorIs(t, err, ErrNotAccepted)
	assert.ErrorIs(t, err, ErrIneligible)

	h.e.ToggleBan(ctx, u1)
	_, err = h.e.Submit(ctx, u1, text("x"), 0)
	assert.ErrorIs(t, err, ErrBanned)
	assert.ErrorIs(t, err, ErrIneligible)

	assert.False(t, h.e.ToggleEnabled(ctx))
	_, err = h.e.Submit(ctx, u2, text("x"), 0)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, err, ErrIneligible)

	_, err = h.e.Submit(ctx, u2, models.Content{Kind: "sticker"}, 0)
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestDraftSlotOverwrite(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.e.Submit(ctx, u1, text("one"), 0)
	require.NoError(t, err)
	_, err = h.e.Submit(ctx, u1, text("two"), 0)
	require.NoError(t, err)

	d, ok := h.e.Draft(u1)
	require.True(t, ok)
	assert.Equal(t, "two", d.Body)

	entry, err := h.e.Confirm(ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, "two", entry.Body)
	assert.Equal(t, 1, h.e.Entries())

	_, err = h.e.Confirm(ctx, u1)
	assert.ErrorIs(t, err, ErrNoDraft)
}

func TestCancelDraft(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.e.Submit(ctx, u1, text("one"), 0)
	require.NoError(t, err)
	assert.True(t, h.e.Cancel(ctx, u1))
	assert.False(t, h.e.Cancel(ctx, u1))

	_, err = h.e.Confirm(ctx, u1)
	assert.ErrorIs(t, err, ErrNoDraft)
	assert.Empty(t, h.tr.sentTo(u2))
}

func TestConfirmRechecksBan(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.e.Submit(ctx, u1, text("one"), 0)
	require.NoError(t, err)
	h.e.ToggleBan(ctx, u1)

	_, err = h.e.Confirm(ctx, u1)
	assert.ErrorIs(t, err, ErrBanned)
	assert.Equal(t, 0, h.e.Entries())
}

func TestClearDrafts(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.e.Submit(ctx, u1, text("one"), 0)
	require.NoError(t, err)
	_, err = h.e.Submit(ctx, u2, text("two"), 0)
	require.NoError(t, err)

	assert.Equal(t, 2, h.e.ClearDrafts(ctx))
	assert.Equal(t, 0, h.e.Stats().Drafts)
}

func TestConfirmRecordsPublish(t *testing.T) {
	h := newHarness(t, nil)
	h.publish(t, u1, "a", 0)
	h.publish(t, u1, "b", 0)

	s := h.e.Stats()
	assert.Equal(t, 2, s.Published)
	assert.Equal(t, 2, s.Entries)
	for _, u := range h.e.Users() {
		if u.ID == u1 {
			assert.Equal(t, 2, u.PublishCount)
		}
	}
}
