package relay

import (
	"fmt"
	"strconv"

	"anonrelay/models"
	"anonrelay/protocol"
)

// Callback payload types attached by the engine.
const (
	CallbackComplaint = "complaint"
)

const (
	BroadcastPrefix   = "Рассылка от админа:\n"
	ReplyPrefix       = "Ответ от администратора:\n\n"
	RequestFulfilled  = "Ваша просьба выполнена."
	adminStampLayout  = "02.01.2006 15:04:05"
	attributionLayout = "📤 От: %s (%d)\n\n"
)

// DisplayName is the handle snapshot, or "ID n" when there is none.
func DisplayName(handle string, id int64) string {
	if handle != "" {
		return handle
	}
	return "ID " + strconv.FormatInt(id, 10)
}

// renderDelivery builds the copy of entry for one recipient. Admins see who
// wrote it; everybody else gets the footer and a complaint button.
func (e *Engine) renderDelivery(entry *models.ChatEntry, admin bool, replyTo int) Outgoing {
	header := ""
	if admin {
		header = fmt.Sprintf(attributionLayout, DisplayName(entry.AuthorHandle, entry.AuthorID), entry.AuthorID)
	}

	msg := Outgoing{Kind: entry.Kind, ReplyTo: replyTo}
	if entry.Kind == models.KindText {
		msg.Text = header + entry.Body + e.footerSuffix()
	} else {
		msg.Media = entry.Body
		caption := header + entry.Caption
		switch {
		case caption != "" && e.footer != "":
			msg.Caption = caption + "\n\n" + e.footer
		case caption != "":
			msg.Caption = caption
		default:
			msg.Caption = e.footer
		}
	}

	if !admin {
		msg.Buttons = [][]Button{{{
			Text: "⚠️ Пожаловаться",
			Data: protocol.FormatAction(CallbackComplaint, strconv.FormatInt(entry.Seq, 10)),
		}}}
	}
	return msg
}

func (e *Engine) footerSuffix() string {
	if e.footer == "" {
		return ""
	}
	return "\n\n" + e.footer
}

// renderComplaintNotice builds the admin notification for a new complaint,
// showing the targeted entry inline when it still exists.
func (e *Engine) renderComplaintNotice(c *models.Complaint, target *models.ChatEntry) Outgoing {
	reporter := DisplayName(c.ReporterHandle, c.ReporterID)
	stamp := c.CreatedAt.In(e.loc).Format(adminStampLayout)

	if target == nil {
		return TextMessage(fmt.Sprintf("Новая жалоба от %s (%d)\nПричина: %s\nВремя: %s",
			reporter, c.ReporterID, c.Reason, stamp))
	}

	head := fmt.Sprintf("Новая жалоба от %s (%d)\nНа сообщение #%d от %s:\n",
		reporter, c.ReporterID, target.Seq, DisplayName(target.AuthorHandle, target.AuthorID))
	tail := fmt.Sprintf("Причина: %s\nВремя: %s", c.Reason, stamp)
	if target.Kind == models.KindText {
		return TextMessage(head + target.Body + "\n" + tail)
	}
	return Outgoing{Kind: target.Kind, Media: target.Body, Caption: head + tail}
}

// RenderComplaint builds the moderator view of a complaint with its actions.
func (e *Engine) RenderComplaint(v ComplaintView, actions [][]Button) Outgoing {
	c := v.Complaint
	reporter := DisplayName(c.ReporterHandle, c.ReporterID)
	stamp := c.CreatedAt.In(e.loc).Format(adminStampLayout)

	var msg Outgoing
	switch {
	case v.Target == nil && c.Target != nil:
		msg = TextMessage(fmt.Sprintf("Жалоба #%d от %s (%d), %s:\nНа сообщение #%d (удалено)\n%s",
			c.Seq, reporter, c.ReporterID, stamp, *c.Target, c.Reason))
	case v.Target == nil:
		msg = TextMessage(fmt.Sprintf("Жалоба #%d от %s (%d), %s:\n%s",
			c.Seq, reporter, c.ReporterID, stamp, c.Reason))
	default:
		t := v.Target
		head := fmt.Sprintf("Жалоба #%d от %s (%d), %s:\nНа сообщение #%d от %s:\n",
			c.Seq, reporter, c.ReporterID, stamp, t.Seq, DisplayName(t.AuthorHandle, t.AuthorID))
		if t.Kind == models.KindText {
			msg = TextMessage(head + t.Body + "\nПричина: " + c.Reason)
		} else {
			msg = Outgoing{Kind: t.Kind, Media: t.Body, Caption: head + "Причина: " + c.Reason}
		}
	}
	msg.Buttons = actions
	return msg
}
