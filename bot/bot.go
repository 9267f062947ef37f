package bot

import (
	"context"
	"sync"
	"time"

	"anonrelay/relay"

	"go.uber.org/zap"
)

const janitorInterval = 500 * time.Millisecond

type Options struct {
	NoticeTTL time.Duration
	Logger    *zap.Logger
	// Stop is called when an admin presses the stop button.
	Stop func(reason string)
	Now  func() time.Time
}

// Bot turns inbound updates into engine operations and replies.
type Bot struct {
	engine    *relay.Engine
	tr        Transport
	log       *zap.Logger
	noticeTTL time.Duration
	notices   *janitor
	stop      func(string)
	now       func() time.Time

	// in-flight fan-outs
	wg sync.WaitGroup
}

func New(engine *relay.Engine, tr Transport, opts Options) *Bot {
	b := &Bot{
		engine:    engine,
		tr:        tr,
		log:       opts.Logger,
		noticeTTL: opts.NoticeTTL,
		stop:      opts.Stop,
		now:       opts.Now,
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	if b.stop == nil {
		b.stop = func(string) {}
	}
	if b.now == nil {
		b.now = time.Now
	}
	b.notices = newJanitor(tr, b.log)
	return b
}

// Run feeds updates from src into the bot until ctx is done, then waits for
// in-flight fan-outs and removes pending notices.
func (b *Bot) Run(ctx context.Context, src Source) error {
	jctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		b.notices.run(jctx, janitorInterval)
		close(done)
	}()

	err := src.Run(ctx, func(u Update) { b.Handle(ctx, u) })

	b.Wait()
	cancel()
	<-done
	return err
}

// Wait blocks until every background fan-out has finished.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// Handle processes one update. Fan-out after a confirmation continues in
// the background; use Wait to join it.
func (b *Bot) Handle(ctx context.Context, u Update) {
	if u.From == 0 {
		return
	}
	b.engine.Register(ctx, u.From, u.Handle)

	switch u.Kind {
	case UpdateCallback:
		b.handleCallback(ctx, u)
	default:
		b.handleMessage(ctx, u)
	}
}

func (b *Bot) send(ctx context.Context, chat int64, msg relay.Outgoing) int {
	id, err := b.tr.Send(ctx, chat, msg)
	if err != nil {
		b.log.Debug("reply failed", zap.Int64("chat", chat), zap.Error(err))
		return 0
	}
	return id
}

func (b *Bot) sendText(ctx context.Context, chat int64, text string) int {
	return b.send(ctx, chat, relay.TextMessage(text))
}

// sendTemp sends a notice that the janitor deletes after the notice TTL.
func (b *Bot) sendTemp(ctx context.Context, chat int64, text string) {
	if id := b.sendText(ctx, chat, text); id != 0 {
		b.expire(chat, id)
	}
}

func (b *Bot) expire(chat int64, msgID int) {
	b.notices.add(chat, msgID, b.now().Add(b.noticeTTL))
}

func (b *Bot) answer(ctx context.Context, u Update, text string) {
	if u.CallbackID == "" {
		return
	}
	if err := b.tr.AnswerCallback(ctx, u.CallbackID, text); err != nil {
		b.log.Debug("answer callback failed", zap.Error(err))
	}
}

// edit replaces the text of the message carrying the pressed button.
func (b *Bot) edit(ctx context.Context, u Update, text string) {
	if err := b.tr.EditText(ctx, u.ChatID, u.MessageID, text); err != nil {
		b.log.Debug("edit failed", zap.Int64("chat", u.ChatID), zap.Error(err))
	}
}

func (b *Bot) deleteMessage(ctx context.Context, chat int64, msgID int) {
	if err := b.tr.Delete(ctx, chat, msgID); err != nil {
		b.log.Debug("delete failed", zap.Int64("chat", chat), zap.Error(err))
	}
}
