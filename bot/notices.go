package bot

import (
	"context"
	"sync"
	"time"

	"anonrelay/relay"

	"go.uber.org/zap"
)

type notice struct {
	chat    int64
	msgID   int
	expires time.Time
}

// janitor deletes temporary notices once they expire.
type janitor struct {
	mu      sync.Mutex
	pending []notice
	tr      relay.Transport
	log     *zap.Logger
}

func newJanitor(tr relay.Transport, log *zap.Logger) *janitor {
	return &janitor{tr: tr, log: log}
}

func (j *janitor) add(chat int64, msgID int, expires time.Time) {
	j.mu.Lock()
	j.pending = append(j.pending, notice{chat: chat, msgID: msgID, expires: expires})
	j.mu.Unlock()
}

func (j *janitor) size() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

// sweep deletes every notice that expired at or before now.
func (j *janitor) sweep(ctx context.Context, now time.Time) int {
	return j.collect(ctx, func(n notice) bool { return !n.expires.After(now) })
}

// flush deletes every pending notice regardless of expiry.
func (j *janitor) flush(ctx context.Context) int {
	return j.collect(ctx, func(notice) bool { return true })
}

func (j *janitor) collect(ctx context.Context, due func(notice) bool) int {
	j.mu.Lock()
	var expired []notice
	keep := j.pending[:0]
	for _, n := range j.pending {
		if due(n) {
			expired = append(expired, n)
		} else {
			keep = append(keep, n)
		}
	}
	j.pending = keep
	j.mu.Unlock()

	for _, n := range expired {
		if err := j.tr.Delete(ctx, n.chat, n.msgID); err != nil {
			j.log.Debug("failed to delete notice", zap.Int64("chat", n.chat), zap.Error(err))
		}
	}
	return len(expired)
}

// run sweeps on every tick; remaining notices are deleted when ctx is done.
func (j *janitor) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.flush(context.WithoutCancel(ctx))
			return
		case now := <-ticker.C:
			j.sweep(ctx, now)
		}
	}
}
