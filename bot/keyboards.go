package bot

import (
	"strconv"

	"anonrelay/protocol"
	"anonrelay/relay"
)

// reply keyboard buttons
const (
	btnComplain = "⚠️ Пожаловаться"
	btnMenu     = "ℹ️ Меню"

	btnToggle        = "Включить/Выключить бота"
	btnStats         = "Статистика"
	btnUsers         = "Пользователи"
	btnStop          = "Остановить бота"
	btnHistory       = "История чата"
	btnBan           = "Бан/Разбан"
	btnBroadcast     = "Рассылка"
	btnClearDrafts   = "Очистка чата"
	btnWipeHistory   = "Стереть историю"
	btnDeleteRecent  = "Удалить все сообщения"
	btnReset         = "Сброс данных"
	btnComplaints    = "Просмотр жалоб"
	btnExit          = "Выход"
	deleteRecentSize = 50
)

// callback payload types
const (
	cbAcceptTerms       = "accept_terms"
	cbDeclineTerms      = "decline_terms"
	cbConfirmSend       = "confirm_send"
	cbCancelSend        = "cancel_send"
	cbReplyComplaint    = "reply_complaint"
	cbDeleteMsg         = "delete_msg"
	cbDelComplaint      = "del_complaint"
	cbSkipComplaint     = "skip_complaint"
	cbConfirmWipe       = "confirm_clear_history"
	cbCancelWipe        = "cancel_clear_history"
	cbConfirmDeleteLast = "confirm_delete_all_msgs"
	cbCancelDeleteLast  = "cancel_delete_all_msgs"
	cbConfirmReset      = "confirm_reset_data"
	cbCancelReset       = "cancel_reset_data"
)

var userKeyboard = [][]string{{btnComplain, btnMenu}}

var adminKeyboard = [][]string{
	{btnToggle},
	{btnStats},
	{btnUsers},
	{btnStop},
	{btnHistory},
	{btnBan},
	{btnBroadcast},
	{btnClearDrafts},
	{btnWipeHistory, btnDeleteRecent},
	{btnReset},
	{btnComplaints},
	{btnExit},
}

func button(text, action string, fields ...string) relay.Button {
	return relay.Button{Text: text, Data: protocol.FormatAction(action, fields...)}
}

var termsButtons = [][]relay.Button{
	{button("✅ Принять", cbAcceptTerms)},
	{button("❌ Не согласен", cbDeclineTerms)},
}

var confirmSendButtons = [][]relay.Button{
	{button("✅ Отправить", cbConfirmSend)},
	{button("❌ Отменить", cbCancelSend)},
}

func yesNo(yes, confirm, cancel string) [][]relay.Button {
	return [][]relay.Button{{button(yes, confirm), button("❌ Отмена", cancel)}}
}

func complaintActions(seq int64) [][]relay.Button {
	n := strconv.FormatInt(seq, 10)
	return [][]relay.Button{
		{button("✉️ Ответить", cbReplyComplaint, n), button("🗑️ Удалить сообщение", cbDeleteMsg, n)},
		{button("⚠️ Удалить жалобу", cbDelComplaint, n), button("⏭️ Пропустить", cbSkipComplaint, n)},
	}
}

func withUserKeyboard(msg relay.Outgoing) relay.Outgoing {
	msg.ReplyKeyboard = userKeyboard
	return msg
}

func withAdminKeyboard(msg relay.Outgoing) relay.Outgoing {
	msg.ReplyKeyboard = adminKeyboard
	return msg
}

func isAdminButton(text string) bool {
	for _, row := range adminKeyboard {
		for _, b := range row {
			if b == text {
				return true
			}
		}
	}
	return false
}
