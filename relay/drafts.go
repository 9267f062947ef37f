package relay

import (
	"context"

	"anonrelay/models"

	"go.uber.org/zap"
)

// eligible checks ban, enabled flag and terms. Caller holds mu.
func (e *Engine) eligible(id int64) error {
	switch {
	case e.state.Banned.Has(id):
		return ErrBanned
	case !e.state.Enabled:
		return ErrDisabled
	case !e.state.Accepted.Has(id):
		return ErrNotAccepted
	}
	return nil
}

// Submit stores content as the user's only draft, replacing any earlier one.
// replyTo is the sender's own message id the content replies to, 0 for none.
func (e *Engine) Submit(ctx context.Context, id int64, content models.Content, replyTo int) (*models.Draft, error) {
	if !content.Kind.Valid() {
		return nil, ErrInvalidContent
	}

	e.mu.Lock()
	if err := e.eligible(id); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	u := e.user(id)
	now := e.clock.Now()
	if u.LastPublish != nil && e.rateLimit > 0 {
		if elapsed := now.Sub(*u.LastPublish); elapsed < e.rateLimit {
			e.mu.Unlock()
			return nil, &RateLimitedError{Remaining: e.rateLimit - elapsed}
		}
	}

	d := &models.Draft{Content: content, CreatedAt: now}
	if replyTo != 0 {
		if seq, ok := e.resolveReply(id, replyTo); ok {
			d.ReplyTarget = &seq
		}
	}
	e.state.Drafts[id] = d
	out := *d
	e.mu.Unlock()

	e.persist(ctx)
	return &out, nil
}

// Draft returns a copy of the user's pending draft.
func (e *Engine) Draft(id int64) (*models.Draft, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.state.Drafts[id]
	if !ok {
		return nil, false
	}
	out := *d
	return &out, true
}

// Confirm publishes the user's draft and fans it out to every known user.
// Fan-out is not cancelled with ctx once started.
func (e *Engine) Confirm(ctx context.Context, id int64) (*models.ChatEntry, error) {
	e.mu.Lock()
	d, ok := e.state.Drafts[id]
	if !ok {
		e.mu.Unlock()
		return nil, ErrNoDraft
	}
	if err := e.eligible(id); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	u := e.user(id)
	entry := e.publish(d, u)
	delete(e.state.Drafts, id)
	e.recordPublish(u)
	e.mu.Unlock()

	e.obs.Published()
	e.log.Info("relay message",
		zap.Time("ts", entry.PublishedAt),
		zap.Int64("user", id),
		zap.String("handle", entry.AuthorHandle),
		zap.String("kind", string(entry.Kind)),
		zap.String("content", logContent(entry.Content)),
	)

	ctx = context.WithoutCancel(ctx)
	e.FanOut(ctx, entry.ID)
	e.persist(ctx)

	if out, ok := e.lookupByID(entry.ID); ok {
		return out, nil
	}
	return cloneEntry(entry), nil
}

// Cancel drops the user's draft, reporting whether one existed.
func (e *Engine) Cancel(ctx context.Context, id int64) bool {
	e.mu.Lock()
	_, ok := e.state.Drafts[id]
	delete(e.state.Drafts, id)
	e.mu.Unlock()

	if ok {
		e.persist(ctx)
	}
	return ok
}

// ClearDrafts drops every pending draft and returns how many were dropped.
func (e *Engine) ClearDrafts(ctx context.Context) int {
	e.mu.Lock()
	n := len(e.state.Drafts)
	e.state.Drafts = make(map[int64]*models.Draft)
	e.mu.Unlock()

	e.persist(ctx)
	return n
}

func logContent(c models.Content) string {
	if c.Kind == models.KindText {
		return c.Body
	}
	return "file_id:" + c.Body + " caption:" + c.Caption
}
