package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"anonrelay/models"
	"anonrelay/relay"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

func (b *Bot) handleMessage(ctx context.Context, u Update) {
	switch u.Command {
	case "start":
		b.send(ctx, u.ChatID, relay.Outgoing{Kind: models.KindText, Text: termsText, Buttons: termsButtons})
		return
	case "admin":
		b.engine.BeginLogin(ctx, u.From)
		b.sendText(ctx, u.ChatID, msgPasswordPrompt)
		return
	}

	if u.Text != "" && b.engine.AwaitingPassword(u.From) {
		if err := b.engine.Login(ctx, u.From, u.Text); err != nil {
			b.sendText(ctx, u.ChatID, msgWrongPassword)
			return
		}
		b.log.Info("admin login", zap.Int64("user", u.From))
		b.send(ctx, u.ChatID, withAdminKeyboard(relay.TextMessage(msgAdminGranted)))
		return
	}

	if b.engine.IsAdmin(u.From) {
		b.handleAdminMessage(ctx, u)
		return
	}

	switch u.Text {
	case btnMenu:
		b.send(ctx, u.ChatID, withUserKeyboard(relay.TextMessage(helpText)))
		return
	case btnComplain:
		if err := b.engine.BeginComplaint(ctx, u.From, nil); err != nil {
			b.sendText(ctx, u.ChatID, msgAdminNoComplaints)
			return
		}
		b.sendText(ctx, u.ChatID, msgComplainPrompt)
		return
	}

	// a stale admin keyboard after logout
	if isAdminButton(u.Text) {
		b.send(ctx, u.ChatID, relay.Outgoing{Kind: models.KindText, Text: msgNotAdmin, RemoveKeyboard: true})
		return
	}

	if b.engine.AwaitingComplaint(u.From) {
		reason := u.Text
		if reason == "" {
			reason = u.Content.Caption
		}
		if _, err := b.engine.FileComplaint(ctx, u.From, reason); err == nil {
			b.send(ctx, u.ChatID, withUserKeyboard(relay.TextMessage(msgComplaintSent)))
			return
		}
	}

	b.submit(ctx, u)
}

// submit stores the content as a draft and shows the author a preview.
func (b *Bot) submit(ctx context.Context, u Update) {
	if !u.Content.Kind.Valid() {
		b.sendText(ctx, u.ChatID, msgUnsupported)
		return
	}

	d, err := b.engine.Submit(ctx, u.From, u.Content, u.ReplyTo)
	if err != nil {
		b.sendText(ctx, u.ChatID, ineligibleText(err))
		return
	}

	preview := relay.Outgoing{Kind: d.Kind, Buttons: confirmSendButtons, ReplyTo: u.MessageID}
	switch d.Kind {
	case models.KindText:
		preview.Text = msgPreviewText + d.Body
		preview.ReplyTo = 0
	case models.KindPhoto:
		preview.Media = d.Body
		preview.Caption = withCaption(msgPreviewPhoto, d.Caption)
	case models.KindVideo:
		preview.Media = d.Body
		preview.Caption = withCaption(msgPreviewVideo, d.Caption)
	}
	b.send(ctx, u.ChatID, preview)
}

func withCaption(prompt, caption string) string {
	if caption == "" {
		return prompt
	}
	return prompt + "\n\n" + caption
}

func ineligibleText(err error) string {
	var rl *relay.RateLimitedError
	switch {
	case errors.As(err, &rl):
		return fmt.Sprintf(msgRateLimited, rl.Seconds())
	case errors.Is(err, relay.ErrBanned):
		return msgBanned
	case errors.Is(err, relay.ErrDisabled):
		return msgDisabled
	case errors.Is(err, relay.ErrNotAccepted):
		return msgNotAccepted
	case errors.Is(err, relay.ErrInvalidContent):
		return msgUnsupported
	case errors.Is(err, relay.ErrNoDraft):
		return msgNoDraft
	}
	return msgError
}

func (b *Bot) handleAdminMessage(ctx context.Context, u Update) {
	switch u.Text {
	case btnExit:
		b.engine.Logout(u.From)
		b.send(ctx, u.ChatID, relay.Outgoing{Kind: models.KindText, Text: msgExit, RemoveKeyboard: true})
		return

	case btnToggle:
		if b.engine.ToggleEnabled(ctx) {
			b.sendText(ctx, u.ChatID, "Бот включён.")
		} else {
			b.sendText(ctx, u.ChatID, "Бот выключен.")
		}
		return

	case btnStats:
		b.sendText(ctx, u.ChatID, renderStats(b.engine.Stats()))
		return

	case btnUsers:
		b.sendText(ctx, u.ChatID, renderUsers(b.engine.Users()))
		return

	case btnStop:
		b.sendText(ctx, u.ChatID, msgStopping)
		b.sendText(ctx, u.ChatID, msgStopped)
		b.engine.Logout(u.From)
		b.send(ctx, u.ChatID, relay.Outgoing{Kind: models.KindText, Text: msgLoggedOut, RemoveKeyboard: true})
		b.log.Warn("stop requested by admin", zap.Int64("admin", u.From))
		b.stop("stopped by admin")
		return

	case btnComplaints:
		views := b.engine.Complaints()
		if len(views) == 0 {
			b.sendText(ctx, u.ChatID, msgNoComplaints)
			return
		}
		for _, v := range views {
			b.send(ctx, u.ChatID, b.engine.RenderComplaint(v, complaintActions(v.Complaint.Seq)))
		}
		return

	case btnHistory:
		chunks := b.engine.History()
		if len(chunks) == 0 {
			b.sendText(ctx, u.ChatID, msgHistoryEmpty)
			return
		}
		for _, c := range chunks {
			b.sendText(ctx, u.ChatID, c)
		}
		return

	case btnClearDrafts:
		b.engine.ClearDrafts(ctx)
		b.sendText(ctx, u.ChatID, msgDraftsCleared)
		return

	case btnWipeHistory:
		b.send(ctx, u.ChatID, relay.Outgoing{Kind: models.KindText, Text: msgWipeConfirm,
			Buttons: yesNo("✅ Да, стереть", cbConfirmWipe, cbCancelWipe)})
		return

	case btnDeleteRecent:
		b.send(ctx, u.ChatID, relay.Outgoing{Kind: models.KindText, Text: fmt.Sprintf(msgDeleteLastConfirm, deleteRecentSize),
			Buttons: yesNo("✅ Да, удалить", cbConfirmDeleteLast, cbCancelDeleteLast)})
		return

	case btnReset:
		b.send(ctx, u.ChatID, relay.Outgoing{Kind: models.KindText, Text: msgResetConfirm,
			Buttons: yesNo("✅ Да, удалить", cbConfirmReset, cbCancelReset)})
		return

	case btnBan:
		if b.engine.BeginAction(u.From, relay.ActionBanTarget, 0) == nil {
			b.sendText(ctx, u.ChatID, msgBanPrompt)
		}
		return

	case btnBroadcast:
		if b.engine.BeginAction(u.From, relay.ActionBroadcastBody, 0) == nil {
			b.sendText(ctx, u.ChatID, msgBroadcastPrompt)
		}
		return
	}

	if u.Text == "" {
		b.send(ctx, u.ChatID, withAdminKeyboard(relay.TextMessage(msgUsePanel)))
		return
	}
	b.resolve(ctx, u)
}

// resolve hands admin free text to the pending action and reports the result.
func (b *Bot) resolve(ctx context.Context, u Update) {
	res, err := b.engine.Resolve(ctx, u.From, u.Text)
	if errors.Is(err, relay.ErrNoPendingAction) {
		b.send(ctx, u.ChatID, withAdminKeyboard(relay.TextMessage(msgUsePanel)))
		return
	}

	var text string
	switch res.Kind {
	case relay.ActionBanTarget:
		switch {
		case err != nil:
			text = msgInvalidID
		case res.Banned:
			text = fmt.Sprintf(msgUserBanned, res.Target)
		default:
			text = fmt.Sprintf(msgUserUnbanned, res.Target)
		}
	case relay.ActionBroadcastBody:
		text = fmt.Sprintf(msgBroadcastDone, res.Sent)
	case relay.ActionComplaintReply:
		switch {
		case errors.Is(err, relay.ErrComplaintNotFound):
			text = msgReplyNoComplaint
		case err != nil:
			text = msgReplyFailed
		default:
			text = msgReplyDone
		}
	case relay.ActionResetConfirmation:
		if err != nil {
			text = msgResetBadPassword
		} else {
			text = msgResetDone
		}
	default:
		text = msgError
	}
	b.sendText(ctx, u.ChatID, text)
}

func renderStats(s relay.Stats) string {
	return fmt.Sprintf("Пользователей: %s\nЧерновиков: %s\nСообщений в чате: %s\nВсего отправлено сообщений: %s\nЖалоб: %s",
		humanize.Comma(int64(s.Users)),
		humanize.Comma(int64(s.Drafts)),
		humanize.Comma(int64(s.Entries)),
		humanize.Comma(int64(s.Published)),
		humanize.Comma(int64(s.Complaints)),
	)
}

func renderUsers(users []relay.UserInfo) string {
	if len(users) == 0 {
		return msgNoUsers
	}
	lines := make([]string, 0, len(users))
	for _, u := range users {
		banned := ""
		if u.Banned {
			banned = " (забанен)"
		}
		lines = append(lines, fmt.Sprintf("%s - %d соо%s", relay.DisplayName(u.Handle, u.ID), u.PublishCount, banned))
	}
	return fmt.Sprintf("Пользователей: %d\n\n", len(users)) + strings.Join(lines, "\n")
}
