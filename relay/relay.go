package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"anonrelay/models"

	"go.uber.org/zap"
)

var (
	ErrIneligible        = errors.New("not allowed to publish")
	ErrBanned            = fmt.Errorf("%w: banned", ErrIneligible)
	ErrNotAccepted       = fmt.Errorf("%w: terms not accepted", ErrIneligible)
	ErrDisabled          = fmt.Errorf("%w: relay disabled", ErrIneligible)
	ErrNoDraft           = errors.New("draft not found")
	ErrInvalidContent    = errors.New("unsupported content")
	ErrEntryNotFound     = errors.New("entry not found")
	ErrComplaintNotFound = errors.New("complaint not found")
	ErrNotAwaiting       = errors.New("no complaint expected")
	ErrAdminComplaint    = errors.New("admins cannot file complaints")
	ErrNotAdmin          = errors.New("not an admin session")
	ErrInvalidIdentity   = errors.New("invalid identity")
	ErrBadCredential     = errors.New("invalid admin credential")
	ErrNoPendingAction   = errors.New("no pending admin action")
)

// RateLimitedError is returned by Submit while the publish window is still open.
type RateLimitedError struct {
	Remaining time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.Remaining)
}

// Seconds rounds the remaining time down, as shown to users.
func (e *RateLimitedError) Seconds() int {
	return int(e.Remaining / time.Second)
}

type Button struct {
	Text string
	Data string
}

// Outgoing is one message for the transport. Media holds an opaque
// transport reference for photo and video; Text is used for KindText.
type Outgoing struct {
	Kind    models.ContentKind
	Text    string
	Media   string
	Caption string
	// ReplyTo is a recipient-scoped message id, 0 for none.
	ReplyTo int

	Buttons        [][]Button
	ReplyKeyboard  [][]string
	RemoveKeyboard bool
}

// TextMessage builds a plain text message.
func TextMessage(text string) Outgoing {
	return Outgoing{Kind: models.KindText, Text: text}
}

// Transport delivers messages to one recipient at a time.
type Transport interface {
	Send(ctx context.Context, to int64, msg Outgoing) (int, error)
	Delete(ctx context.Context, chat int64, msgID int) error
	EditText(ctx context.Context, chat int64, msgID int, text string) error
}

// Persister is satisfied by *store.Store.
type Persister interface {
	Snapshot(st *models.State) ([]byte, error)
	Write(ctx context.Context, gen uint64, snapshot []byte) error
}

// AuditSink receives one line per destructive admin action.
type AuditSink interface {
	Append(action string, actor int64, at time.Time) error
}

// Observer is notified about deliveries and saves; see the metrics package.
type Observer interface {
	Delivery(ok bool)
	ReplyHintFallback()
	Published()
	MessagesDeleted(n int)
	ComplaintFiled()
	Saved(err error)
}

// Verifier checks the admin password. *Credential is the production one.
type Verifier interface {
	Verify(password string) bool
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type nopObserver struct{}

func (nopObserver) Delivery(bool)       {}
func (nopObserver) ReplyHintFallback()  {}
func (nopObserver) Published()          {}
func (nopObserver) MessagesDeleted(int) {}
func (nopObserver) ComplaintFiled()     {}
func (nopObserver) Saved(error)         {}

type Options struct {
	Footer        string
	RateLimit     time.Duration
	Concurrency   int
	DisplayOffset time.Duration

	Credential Verifier
	Clock      Clock
	Logger     *zap.Logger
	Audit      AuditSink
	Observer   Observer
}

// Engine owns the shared state. Every read-modify-write of the state runs
// under mu; transport calls and persistence writes run outside it.
type Engine struct {
	mu      sync.Mutex
	state   *models.State
	admins  map[int64]bool
	pending PendingAction
	gen     uint64

	tr    Transport
	store Persister
	cred  Verifier
	clock Clock
	log   *zap.Logger
	audit AuditSink
	obs   Observer

	footer      string
	rateLimit   time.Duration
	concurrency int
	loc         *time.Location
}

func New(st *models.State, tr Transport, store Persister, opts Options) *Engine {
	if st == nil {
		st = models.NewState()
	}
	st.Normalize()

	e := &Engine{
		state:       st,
		admins:      make(map[int64]bool),
		tr:          tr,
		store:       store,
		cred:        opts.Credential,
		clock:       opts.Clock,
		log:         opts.Logger,
		audit:       opts.Audit,
		obs:         opts.Observer,
		footer:      opts.Footer,
		rateLimit:   opts.RateLimit,
		concurrency: opts.Concurrency,
	}
	if e.clock == nil {
		e.clock = systemClock{}
	}
	if e.cred == nil {
		e.cred = (*Credential)(nil)
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.obs == nil {
		e.obs = nopObserver{}
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	e.loc = time.FixedZone(fmt.Sprintf("UTC%+d", int(opts.DisplayOffset.Hours())), int(opts.DisplayOffset.Seconds()))
	return e
}

func (e *Engine) Location() *time.Location { return e.loc }

// Save persists the current state.
func (e *Engine) Save(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	e.mu.Lock()
	snap, err := e.store.Snapshot(e.state)
	e.gen++
	gen := e.gen
	e.mu.Unlock()
	if err != nil {
		e.obs.Saved(err)
		return fmt.Errorf("encode state: %w", err)
	}

	err = e.store.Write(ctx, gen, snap)
	e.obs.Saved(err)
	return err
}

// persist saves after a mutation; failures are logged and the in-memory
// state stays authoritative.
func (e *Engine) persist(ctx context.Context) {
	if err := e.Save(ctx); err != nil {
		e.log.Error("failed to save state", zap.Error(err))
	}
}

// RunAutosave saves on every tick until ctx is done.
func (e *Engine) RunAutosave(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.persist(ctx)
		}
	}
}

// parallel runs fn for 0..n-1 with at most e.concurrency calls in flight.
func (e *Engine) parallel(n int, fn func(i int)) {
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}

// Notify sends msg to every admin session, ignoring failures.
func (e *Engine) Notify(ctx context.Context, msg Outgoing) int {
	return e.sendAll(ctx, e.Admins(), msg)
}

func (e *Engine) sendAll(ctx context.Context, to []int64, msg Outgoing) int {
	var sent int
	var mu sync.Mutex
	e.parallel(len(to), func(i int) {
		_, err := e.tr.Send(ctx, to[i], msg)
		if err != nil {
			e.log.Debug("send failed", zap.Int64("to", to[i]), zap.Error(err))
			return
		}
		mu.Lock()
		sent++
		mu.Unlock()
	})
	return sent
}
