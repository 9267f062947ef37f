package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"anonrelay/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const historyChunkLimit = 3900

// publish appends a ledger entry for d, snapshotting the author's handle. Caller holds mu.
func (e *Engine) publish(d *models.Draft, author *models.User) *models.ChatEntry {
	entry := &models.ChatEntry{
		ID:           uuid.NewString(),
		Seq:          e.state.NextSeq,
		AuthorID:     author.ID,
		AuthorHandle: author.Handle,
		Content:      d.Content,
		PublishedAt:  e.clock.Now(),
		Delivered:    make(map[int64]int),
	}
	if d.ReplyTarget != nil {
		target := *d.ReplyTarget
		entry.ReplyTarget = &target
	}
	e.state.NextSeq++
	e.state.Chat = append(e.state.Chat, entry)
	return entry
}

type delivery struct {
	to  int64
	msg Outgoing
	id  int
	ok  bool
}

// FanOut delivers the entry to every known user and records each successful
// delivery. A failure for one recipient never affects the others.
// It returns the number of successful deliveries.
func (e *Engine) FanOut(ctx context.Context, entryID string) int {
	e.mu.Lock()
	entry := e.findByID(entryID)
	if entry == nil {
		e.mu.Unlock()
		return 0
	}
	var target *models.ChatEntry
	if entry.ReplyTarget != nil {
		target = e.findBySeq(*entry.ReplyTarget)
	}
	plan := make([]*delivery, 0, len(e.state.Users))
	for _, to := range e.recipients() {
		replyTo := 0
		if target != nil {
			replyTo = target.Delivered[to]
		}
		plan = append(plan, &delivery{
			to:  to,
			msg: e.renderDelivery(entry, e.admins[to], replyTo),
		})
	}
	e.mu.Unlock()

	e.parallel(len(plan), func(i int) {
		d := plan[i]
		d.id, d.ok = e.deliver(ctx, d.to, d.msg)
	})

	var orphans []*delivery
	delivered := 0
	e.mu.Lock()
	entry = e.findByID(entryID)
	for _, d := range plan {
		if !d.ok {
			continue
		}
		delivered++
		if entry == nil {
			orphans = append(orphans, d)
			continue
		}
		entry.Delivered[d.to] = d.id
	}
	e.mu.Unlock()

	// the entry was deleted while we were sending
	for _, d := range orphans {
		if err := e.tr.Delete(ctx, d.to, d.id); err != nil {
			e.log.Debug("delete late delivery", zap.Int64("to", d.to), zap.Error(err))
		}
	}
	return delivered
}

// deliver sends msg, retrying once without the reply hint if the transport rejects it.
func (e *Engine) deliver(ctx context.Context, to int64, msg Outgoing) (int, bool) {
	if msg.ReplyTo != 0 {
		id, err := e.tr.Send(ctx, to, msg)
		if err == nil {
			e.obs.Delivery(true)
			return id, true
		}
		e.log.Debug("reply hint rejected, retrying without it", zap.Int64("to", to), zap.Error(err))
		e.obs.ReplyHintFallback()
		msg.ReplyTo = 0
	}

	id, err := e.tr.Send(ctx, to, msg)
	if err != nil {
		e.log.Debug("delivery failed", zap.Int64("to", to), zap.Error(err))
		e.obs.Delivery(false)
		return 0, false
	}
	e.obs.Delivery(true)
	return id, true
}

// resolveReply finds the entry whose copy for id has message id msgID. Caller holds mu.
func (e *Engine) resolveReply(id int64, msgID int) (int64, bool) {
	for _, entry := range e.state.Chat {
		if got, ok := entry.Delivered[id]; ok && got == msgID {
			return entry.Seq, true
		}
	}
	return 0, false
}

// ResolveReply maps a recipient-scoped message id back to its entry number.
func (e *Engine) ResolveReply(id int64, msgID int) (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolveReply(id, msgID)
}

func (e *Engine) findBySeq(seq int64) *models.ChatEntry {
	if i := e.indexOfSeq(seq); i >= 0 {
		return e.state.Chat[i]
	}
	return nil
}

func (e *Engine) indexOfSeq(seq int64) int {
	for i, entry := range e.state.Chat {
		if entry.Seq == seq {
			return i
		}
	}
	return -1
}

func (e *Engine) findByID(id string) *models.ChatEntry {
	for _, entry := range e.state.Chat {
		if entry.ID == id {
			return entry
		}
	}
	return nil
}

// Lookup returns a copy of entry seq. A missing entry is not an error.
func (e *Engine) Lookup(seq int64) (*models.ChatEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry := e.findBySeq(seq)
	if entry == nil {
		return nil, false
	}
	return cloneEntry(entry), true
}

func (e *Engine) lookupByID(id string) (*models.ChatEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry := e.findByID(id)
	if entry == nil {
		return nil, false
	}
	return cloneEntry(entry), true
}

func (e *Engine) Entries() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.state.Chat)
}

// DeleteEntry removes entry seq from the ledger and asks the transport to
// delete every recorded copy. It returns how many copies were deleted.
func (e *Engine) DeleteEntry(ctx context.Context, seq int64) (int, error) {
	e.mu.Lock()
	i := e.indexOfSeq(seq)
	if i < 0 {
		e.mu.Unlock()
		return 0, ErrEntryNotFound
	}
	entry := e.state.Chat[i]
	e.state.Chat = append(e.state.Chat[:i], e.state.Chat[i+1:]...)
	e.mu.Unlock()

	n := e.retract(ctx, []*models.ChatEntry{entry})
	e.persist(ctx)
	return n, nil
}

// retract deletes every delivered copy of entries, best-effort.
func (e *Engine) retract(ctx context.Context, entries []*models.ChatEntry) int {
	type copyRef struct {
		to int64
		id int
	}
	var refs []copyRef
	for _, entry := range entries {
		for to, id := range entry.Delivered {
			refs = append(refs, copyRef{to: to, id: id})
		}
	}

	var deleted int
	var mu sync.Mutex
	e.parallel(len(refs), func(i int) {
		if err := e.tr.Delete(ctx, refs[i].to, refs[i].id); err != nil {
			e.log.Debug("delete failed", zap.Int64("to", refs[i].to), zap.Int("msg", refs[i].id), zap.Error(err))
			return
		}
		mu.Lock()
		deleted++
		mu.Unlock()
	})
	e.obs.MessagesDeleted(deleted)
	return deleted
}

// WipeHistory drops every ledger entry without touching delivered copies.
func (e *Engine) WipeHistory(ctx context.Context) int {
	e.mu.Lock()
	n := len(e.state.Chat)
	e.state.Chat = []*models.ChatEntry{}
	e.mu.Unlock()

	e.persist(ctx)
	return n
}

// DeleteRecent removes the last n entries and deletes their copies everywhere.
// It returns the number of entries removed.
func (e *Engine) DeleteRecent(ctx context.Context, n int) int {
	e.mu.Lock()
	if n > len(e.state.Chat) {
		n = len(e.state.Chat)
	}
	cut := len(e.state.Chat) - n
	removed := make([]*models.ChatEntry, n)
	copy(removed, e.state.Chat[cut:])
	e.state.Chat = e.state.Chat[:cut]
	e.mu.Unlock()

	e.retract(ctx, removed)
	e.persist(ctx)
	return n
}

// History renders the ledger for admins, chunked on entry boundaries.
func (e *Engine) History() []string {
	e.mu.Lock()
	parts := make([]string, 0, len(e.state.Chat))
	for _, entry := range e.state.Chat {
		var body string
		if entry.Kind == models.KindText {
			body = entry.Body
		} else {
			body = fmt.Sprintf("%s file_id %s", entry.Kind, entry.Body)
			if entry.Caption != "" {
				body += " caption: " + entry.Caption
			}
		}
		parts = append(parts, fmt.Sprintf("%d. %s (%d) в %s:\n%s",
			entry.Seq, DisplayName(entry.AuthorHandle, entry.AuthorID), entry.AuthorID,
			entry.PublishedAt.In(e.loc).Format("15:04:05"), body))
	}
	e.mu.Unlock()

	if len(parts) == 0 {
		return nil
	}
	return chunkHistory(parts, historyChunkLimit)
}

func chunkHistory(parts []string, limit int) []string {
	combined := strings.Join(parts, "\n\n")
	if utf8.RuneCountInString(combined) <= limit {
		return []string{combined}
	}

	var chunks []string
	var cur []string
	curLen := 0
	for _, p := range parts {
		n := utf8.RuneCountInString(p) + 2
		if curLen+n > limit && len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, "\n\n"))
			cur, curLen = nil, 0
		}
		cur = append(cur, p)
		curLen += n
	}
	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, "\n\n"))
	}

	if len(chunks) > 1 {
		for i := range chunks {
			chunks[i] = fmt.Sprintf("История чата (часть %d/%d):\n\n", i+1, len(chunks)) + chunks[i]
		}
	}
	return chunks
}

func cloneEntry(src *models.ChatEntry) *models.ChatEntry {
	out := *src
	out.Delivered = make(map[int64]int, len(src.Delivered))
	for k, v := range src.Delivered {
		out.Delivered[k] = v
	}
	if src.ReplyTarget != nil {
		t := *src.ReplyTarget
		out.ReplyTarget = &t
	}
	return &out
}
