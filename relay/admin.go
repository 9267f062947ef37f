package relay

import (
	"context"
	"strconv"
	"strings"

	"anonrelay/models"

	"go.uber.org/zap"
)

type ActionKind int

const (
	ActionIdle ActionKind = iota
	ActionBanTarget
	ActionBroadcastBody
	ActionComplaintReply
	ActionResetConfirmation
)

func (k ActionKind) String() string {
	switch k {
	case ActionBanTarget:
		return "ban_target"
	case ActionBroadcastBody:
		return "broadcast_body"
	case ActionComplaintReply:
		return "complaint_reply"
	case ActionResetConfirmation:
		return "reset_confirmation"
	}
	return "idle"
}

// PendingAction is the single process-wide slot. Target is the complaint
// number for ActionComplaintReply and unused otherwise.
type PendingAction struct {
	Kind   ActionKind
	Target int64
}

func (e *Engine) Pending() PendingAction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// BeginAction puts the slot into kind. Any earlier pending action is replaced.
func (e *Engine) BeginAction(id int64, kind ActionKind, target int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.admins[id] {
		return ErrNotAdmin
	}
	if kind == ActionComplaintReply && !e.hasComplaint(target) {
		return ErrComplaintNotFound
	}
	e.pending = PendingAction{Kind: kind, Target: target}
	return nil
}

// CancelAction returns the slot to idle.
func (e *Engine) CancelAction(id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.admins[id] {
		return ErrNotAdmin
	}
	e.pending = PendingAction{}
	return nil
}

// Resolution describes what a resolved admin action did.
type Resolution struct {
	Kind ActionKind

	// ActionBanTarget
	Target int64
	Banned bool

	// ActionBroadcastBody
	Sent int
}

// Resolve interprets text from admin id against the pending action and
// returns the slot to idle. The slot is idle afterwards in every case.
func (e *Engine) Resolve(ctx context.Context, id int64, text string) (Resolution, error) {
	e.mu.Lock()
	if !e.admins[id] {
		e.mu.Unlock()
		return Resolution{}, ErrNotAdmin
	}
	p := e.pending
	e.pending = PendingAction{}
	e.mu.Unlock()

	res := Resolution{Kind: p.Kind}
	switch p.Kind {
	case ActionBanTarget:
		target, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return res, ErrInvalidIdentity
		}
		res.Target = target
		res.Banned = e.ToggleBan(ctx, target)
		return res, nil

	case ActionBroadcastBody:
		res.Sent = e.Broadcast(ctx, text)
		return res, nil

	case ActionComplaintReply:
		res.Target = p.Target
		return res, e.ReplyToComplaint(ctx, p.Target, text)

	case ActionResetConfirmation:
		return res, e.Reset(ctx, id, text)
	}
	return res, ErrNoPendingAction
}

// Broadcast sends text with the admin marker to every registered user and
// returns the number of successful sends.
func (e *Engine) Broadcast(ctx context.Context, text string) int {
	e.mu.Lock()
	to := e.recipients()
	e.mu.Unlock()
	return e.sendAll(ctx, to, TextMessage(BroadcastPrefix+text))
}

// Reset replaces the whole state with an empty one after checking the admin
// password, and writes one audit line. Admin sessions and the entry and
// complaint counters survive so numbers are never reused.
func (e *Engine) Reset(ctx context.Context, actor int64, password string) error {
	if !e.cred.Verify(password) {
		return ErrBadCredential
	}

	e.mu.Lock()
	fresh := models.NewState()
	fresh.NextSeq = e.state.NextSeq
	fresh.NextComplaintSeq = e.state.NextComplaintSeq
	e.state = fresh
	e.pending = PendingAction{}
	now := e.clock.Now()
	e.mu.Unlock()

	if e.audit != nil {
		if err := e.audit.Append("reset", actor, now); err != nil {
			e.log.Error("failed to write audit log", zap.Error(err))
		}
	}
	e.log.Warn("state reset", zap.Int64("actor", actor))
	e.persist(ctx)
	return nil
}
