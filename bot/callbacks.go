package bot

import (
	"context"
	"errors"
	"fmt"

	"anonrelay/protocol"
	"anonrelay/relay"

	"go.uber.org/zap"
)

func (b *Bot) handleCallback(ctx context.Context, u Update) {
	pkt, err := protocol.ParseAction(u.Data)
	if err != nil {
		b.answer(ctx, u, msgError)
		return
	}

	switch pkt.Type {
	case cbAcceptTerms:
		b.acceptTerms(ctx, u)
	case cbDeclineTerms:
		b.sendText(ctx, u.ChatID, msgDeclined)
		b.answer(ctx, u, "")
	case cbConfirmSend:
		b.answer(ctx, u, "")
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.confirmDraft(ctx, u)
		}()
	case cbCancelSend:
		b.engine.Cancel(ctx, u.From)
		b.deleteMessage(ctx, u.ChatID, u.MessageID)
		b.sendTemp(ctx, u.ChatID, msgCancelled)
		b.answer(ctx, u, "")
	case relay.CallbackComplaint:
		b.complainAbout(ctx, u, pkt)
	default:
		if !b.engine.IsAdmin(u.From) {
			b.answer(ctx, u, msgNotAdmin)
			return
		}
		b.handleAdminCallback(ctx, u, pkt)
	}
}

func (b *Bot) acceptTerms(ctx context.Context, u Update) {
	defer b.answer(ctx, u, "")
	if err := b.engine.AcceptTerms(ctx, u.From); err != nil {
		b.sendText(ctx, u.ChatID, msgBannedTerms)
		return
	}
	b.sendText(ctx, u.ChatID, acceptedText)
	b.send(ctx, u.ChatID, withUserKeyboard(relay.TextMessage(helpText)))
}

func (b *Bot) confirmDraft(ctx context.Context, u Update) {
	entry, err := b.engine.Confirm(ctx, u.From)
	if err != nil {
		b.sendText(ctx, u.ChatID, ineligibleText(err))
		return
	}
	b.log.Debug("entry delivered", zap.Int64("seq", entry.Seq), zap.Int("recipients", len(entry.Delivered)))
	b.deleteMessage(ctx, u.ChatID, u.MessageID)
	b.sendTemp(ctx, u.ChatID, msgSent)
}

func (b *Bot) complainAbout(ctx context.Context, u Update, pkt *protocol.Packet) {
	seq, err := pkt.Int64(0)
	if err != nil {
		b.answer(ctx, u, msgError)
		return
	}
	if err := b.engine.BeginComplaint(ctx, u.From, &seq); err != nil {
		b.answer(ctx, u, msgAdminNoComplaints)
		return
	}
	b.sendText(ctx, u.ChatID, msgComplainFor)
	b.answer(ctx, u, "")
}

func (b *Bot) handleAdminCallback(ctx context.Context, u Update, pkt *protocol.Packet) {
	switch pkt.Type {
	case cbReplyComplaint, cbDeleteMsg, cbDelComplaint, cbSkipComplaint:
		seq, err := pkt.Int64(0)
		if err != nil {
			b.answer(ctx, u, msgError)
			return
		}
		b.moderate(ctx, u, pkt.Type, seq)

	case cbConfirmWipe:
		b.engine.WipeHistory(ctx)
		b.edit(ctx, u, msgHistoryWiped)
		b.answer(ctx, u, msgHistoryWipedShort)
	case cbCancelWipe:
		b.edit(ctx, u, msgWipeCancelled)
		b.answer(ctx, u, msgCancelledShort)

	case cbConfirmDeleteLast:
		n := b.engine.DeleteRecent(ctx, deleteRecentSize)
		b.edit(ctx, u, fmt.Sprintf(msgDeletedLast, n))
		b.answer(ctx, u, msgDeletedLastShort)
	case cbCancelDeleteLast:
		b.edit(ctx, u, msgDeleteCancelled)
		b.answer(ctx, u, msgCancelledShort)

	case cbConfirmReset:
		if err := b.engine.BeginAction(u.From, relay.ActionResetConfirmation, 0); err != nil {
			b.answer(ctx, u, msgNotAdmin)
			return
		}
		b.sendText(ctx, u.ChatID, msgResetPrompt)
		b.answer(ctx, u, "")
	case cbCancelReset:
		_ = b.engine.CancelAction(u.From)
		b.edit(ctx, u, msgResetCancelled)
		b.answer(ctx, u, msgCancelledShort)

	default:
		b.answer(ctx, u, msgError)
	}
}

// moderate applies one of the four complaint actions to complaint seq.
func (b *Bot) moderate(ctx context.Context, u Update, action string, seq int64) {
	switch action {
	case cbReplyComplaint:
		if err := b.engine.BeginAction(u.From, relay.ActionComplaintReply, seq); err != nil {
			b.answer(ctx, u, msgComplaintNotFound)
			return
		}
		b.sendText(ctx, u.ChatID, fmt.Sprintf(msgReplyPrompt, seq))
		b.answer(ctx, u, "")

	case cbDeleteMsg:
		res, err := b.engine.DeleteTarget(ctx, seq)
		if errors.Is(err, relay.ErrComplaintNotFound) {
			b.answer(ctx, u, msgComplaintNotFound)
			return
		}
		switch res.Outcome {
		case relay.TargetDeleted:
			b.edit(ctx, u, msgTargetDeleted)
			b.answer(ctx, u, msgMessageDeleted)
		case relay.TargetNone:
			b.edit(ctx, u, msgTargetNone)
			b.expire(u.ChatID, u.MessageID)
			b.answer(ctx, u, msgComplaintDeleted)
		default:
			b.edit(ctx, u, msgTargetMissing)
			b.expire(u.ChatID, u.MessageID)
			b.answer(ctx, u, msgTargetMissing)
		}

	case cbDelComplaint:
		if err := b.engine.Dismiss(ctx, seq); err != nil {
			b.answer(ctx, u, msgComplaintNotFound)
			return
		}
		b.edit(ctx, u, msgComplaintDeleted)
		b.expire(u.ChatID, u.MessageID)
		b.answer(ctx, u, "")

	case cbSkipComplaint:
		if err := b.engine.Dismiss(ctx, seq); err != nil {
			b.answer(ctx, u, msgComplaintNotFound)
			return
		}
		b.edit(ctx, u, msgComplaintSkipped)
		b.answer(ctx, u, msgSkipped)
	}
}
