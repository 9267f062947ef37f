package relay

import (
	"context"
	"fmt"

	"anonrelay/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BeginComplaint arms the one-shot complaint prompt for id, optionally
// scoped to ledger entry target.
func (e *Engine) BeginComplaint(ctx context.Context, id int64, target *int64) error {
	e.mu.Lock()
	if e.admins[id] {
		e.mu.Unlock()
		return ErrAdminComplaint
	}
	u := e.user(id)
	if target != nil {
		t := *target
		u.AwaitingComplaintFor = &t
	} else {
		u.AwaitingComplaint = true
	}
	e.mu.Unlock()

	e.persist(ctx)
	return nil
}

func (e *Engine) AwaitingComplaint(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	u, ok := e.state.Users[id]
	return ok && (u.AwaitingComplaint || u.AwaitingComplaintFor != nil)
}

// FileComplaint consumes the complaint prompt, stores reason as a complaint
// and notifies every admin session.
func (e *Engine) FileComplaint(ctx context.Context, id int64, reason string) (*models.Complaint, error) {
	e.mu.Lock()
	u, ok := e.state.Users[id]
	if !ok || (!u.AwaitingComplaint && u.AwaitingComplaintFor == nil) {
		e.mu.Unlock()
		return nil, ErrNotAwaiting
	}

	c := &models.Complaint{
		ID:             uuid.NewString(),
		Seq:            e.state.NextComplaintSeq,
		ReporterID:     id,
		ReporterHandle: u.Handle,
		Reason:         reason,
		CreatedAt:      e.clock.Now(),
		Target:         u.AwaitingComplaintFor,
	}
	u.AwaitingComplaint = false
	u.AwaitingComplaintFor = nil
	e.state.NextComplaintSeq++
	e.state.Complaints = append(e.state.Complaints, c)

	var target *models.ChatEntry
	if c.Target != nil {
		if t := e.findBySeq(*c.Target); t != nil {
			target = cloneEntry(t)
		}
	}
	notice := e.renderComplaintNotice(c, target)
	out := *c
	e.mu.Unlock()

	e.obs.ComplaintFiled()
	e.persist(ctx)
	e.Notify(ctx, notice)
	return &out, nil
}

// ComplaintView pairs a complaint with its target entry, nil when the
// complaint is untargeted or the entry no longer exists.
type ComplaintView struct {
	Complaint models.Complaint
	Target    *models.ChatEntry
}

func (e *Engine) Complaints() []ComplaintView {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]ComplaintView, 0, len(e.state.Complaints))
	for _, c := range e.state.Complaints {
		v := ComplaintView{Complaint: *c}
		if c.Target != nil {
			if t := e.findBySeq(*c.Target); t != nil {
				v.Target = cloneEntry(t)
			}
		}
		out = append(out, v)
	}
	return out
}

// takeComplaint removes complaint seq and returns it. Caller holds mu.
func (e *Engine) takeComplaint(seq int64) (*models.Complaint, bool) {
	for i, c := range e.state.Complaints {
		if c.Seq == seq {
			e.state.Complaints = append(e.state.Complaints[:i], e.state.Complaints[i+1:]...)
			return c, true
		}
	}
	return nil, false
}

func (e *Engine) hasComplaint(seq int64) bool {
	for _, c := range e.state.Complaints {
		if c.Seq == seq {
			return true
		}
	}
	return false
}

// ReplyToComplaint sends text to the reporter as an anonymous admin notice
// and removes the complaint. The complaint is removed even if the send fails.
func (e *Engine) ReplyToComplaint(ctx context.Context, seq int64, text string) error {
	e.mu.Lock()
	c, ok := e.takeComplaint(seq)
	e.mu.Unlock()
	if !ok {
		return ErrComplaintNotFound
	}
	e.persist(ctx)

	if _, err := e.tr.Send(ctx, c.ReporterID, TextMessage(ReplyPrefix+text)); err != nil {
		e.log.Debug("complaint reply failed", zap.Int64("to", c.ReporterID), zap.Error(err))
		return fmt.Errorf("reply to reporter %d: %w", c.ReporterID, err)
	}
	return nil
}

type TargetOutcome int

const (
	// TargetNone: the complaint had no target.
	TargetNone TargetOutcome = iota
	// TargetMissing: the target entry was already gone.
	TargetMissing
	TargetDeleted
)

type DeleteResult struct {
	Outcome TargetOutcome
	Entry   int64
	Copies  int
}

// DeleteTarget removes complaint seq and, if its target entry still exists,
// deletes that entry everywhere and tells the reporter.
func (e *Engine) DeleteTarget(ctx context.Context, seq int64) (DeleteResult, error) {
	e.mu.Lock()
	c, ok := e.takeComplaint(seq)
	e.mu.Unlock()
	if !ok {
		return DeleteResult{}, ErrComplaintNotFound
	}

	if c.Target == nil {
		e.persist(ctx)
		return DeleteResult{Outcome: TargetNone}, nil
	}

	res := DeleteResult{Outcome: TargetMissing, Entry: *c.Target}
	n, err := e.DeleteEntry(ctx, *c.Target)
	if err != nil {
		// entry already gone; DeleteEntry did not persist
		e.persist(ctx)
		return res, nil
	}
	res.Outcome = TargetDeleted
	res.Copies = n

	if _, err := e.tr.Send(ctx, c.ReporterID, TextMessage(RequestFulfilled)); err != nil {
		e.log.Debug("reporter notice failed", zap.Int64("to", c.ReporterID), zap.Error(err))
	}
	return res, nil
}

// Dismiss removes complaint seq with no other effect.
func (e *Engine) Dismiss(ctx context.Context, seq int64) error {
	e.mu.Lock()
	_, ok := e.takeComplaint(seq)
	e.mu.Unlock()
	if !ok {
		return ErrComplaintNotFound
	}
	e.persist(ctx)
	return nil
}
