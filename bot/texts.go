package bot

const termsText = "Условия пользования:\n" +
	"- Все сообщения и материалы публикуются пользователями под их личную ответственность.\n" +
	"- Публикация фото и медиа с изображением других лиц возможна, но ответственность за публикацию лежит на пользователе.\n" +
	"- При первой жалобе на материалы с изображением третьих лиц они будут удалены без обсуждения.\n" +
	"- Администрация не поощряет публикацию материалов без согласия изображённых лиц.\n" +
	"- Запрещено распространять материалы из этого бота за его пределы; ответственность лежит на пользователе.\n" +
	"- Администрация не несёт ответственности за пользовательский контент, шутки, подколы или последствия общения.\n" +
	"- Администраторы действуют в рамках закона и вправе ограничить доступ к боту.\n" +
	"- Администраторы не связаны с учебным заведением и не представляют его интересы.\n" +
	"- Использование бота означает согласие с правилами и осознание возможных рисков.\n" +
	"- Незнание условий не снимает с вас ответственности.\n" +
	"Нажмите ✅ Принять для продолжения или \n ❌ Не согласен для отказа."

const acceptedText = "✅ Вы приняли условия пользования!\n\n" +
	"Теперь вы можете писать сообщения в анонимный чат. 🎉\n"

const helpText = "📋 МЕНЮ И СПРАВКА:\n\n" +
	"👤 ОТПРАВКА СООБЩЕНИЙ:\n" +
	"- Отправьте текст, фото или видео\n" +
	"- Появится превью и кнопка подтверждения\n" +
	"- После подтверждения сообщение станет анонимным\n" +
	"- Лимит: 1 сообщение на 30 секунд (антиспам)\n\n" +
	"⚠️ ЖАЛОБЫ:\n" +
	"- Нажмите \"⚠️ Пожаловаться\" под сообщением\n" +
	"- Или используйте кнопку \"⚠️ Пожаловаться\"\n\n" +
	"⚠️ ПРАВИЛА:\n" +
	"- Мы не поддерживаем публикацию материалов без согласия изображённых лиц (фото/видео).\n" +
	"- Такие материалы могут быть удалены по просьбе через жалобу с объяснением причины.\n" +
	"- Можете выражать себя как хотите, мат, шутки, подколы допускаются.\n" +
	"- Мы ценим дружелюбное отношение к пользователям и стараемся поддерживать безопасную атмосферу.\n\n" +
	"💬 КОМАНДЫ:\n" +
	"- \"ℹ️ Меню\" показать эту справку\n" +
	"- \"/start\" начать заново\n\n" +
	"🕊️ Команда FreeBird всегда к вашим услугам!"

const (
	msgDeclined          = "Вы отказались от условий. Для использования бота нужно принять условия (/start)."
	msgBannedTerms       = "Вы забанены и не можете пользоваться ботом."
	msgBanned            = "Вы забанены."
	msgDisabled          = "Бот временно отключён."
	msgNotAccepted       = "Примите условия (/start) прежде чем отправлять сообщения."
	msgRateLimited       = "Антиспам: подождите %d секунд."
	msgUnsupported       = "Можно отправлять только текст, фото или видео."
	msgNoDraft           = "Черновик не найден."
	msgSent              = "Сообщение отправлено в чат."
	msgCancelled         = "Отправка отменена."
	msgPreviewText       = "Вы уверены, что хотите отправить следующее сообщение?\n\n"
	msgPreviewPhoto      = "Вы уверены, что хотите отправить это фото?"
	msgPreviewVideo      = "Вы уверены, что хотите отправить это видео?"
	msgComplainPrompt    = "Отправьте текст жалобы (коротко):"
	msgComplainFor       = "Опишите, пожалуйста, причину жалобы (коротко):"
	msgComplaintSent     = "Жалоба отправлена администраторам."
	msgAdminNoComplaints = "Админы не могут отправлять жалобы через эту кнопку."
	msgPasswordPrompt    = "Введите пароль администратора:"
	msgAdminGranted      = "Доступ в админ-панель предоставлен."
	msgWrongPassword     = "Неверный пароль."
	msgNotAdmin          = "Вы не админ."
	msgError             = "Ошибка."
	msgUsePanel          = "Вы в админ-панели. Пожалуйста, используйте кнопки панели для действий."
	msgExit              = "Выход из админ-панели."
	msgStopping          = "Останавливаю бота..."
	msgStopped           = "Бот остановлен."
	msgLoggedOut         = "Вы вышли из админ-панели."
	msgNoUsers           = "Пользователей нет."
	msgNoComplaints      = "Жалоб нет."
	msgHistoryEmpty      = "История чата пуста."
	msgDraftsCleared     = "Все черновики пользователей удалены."
	msgWipeConfirm       = "⚠️ Вы уверены? Это удалит всю историю сообщений навсегда!"
	msgDeleteLastConfirm = "⚠️ Вы уверены? Это удалит последние %d сообщений у всех пользователей в чате!"
	msgResetConfirm      = "⚠️ Вы уверены? Это удалит ВСЕ данные (пользователи, история, жалобы) навсегда!"
	msgBanPrompt         = "Отправьте ID пользователя для бан/разбан:"
	msgBroadcastPrompt   = "Отправьте текст рассылки:"
	msgReplyPrompt       = "Введите ответ на жалобу #%d:"
	msgResetPrompt       = "Введите пароль администратора для подтверждения удаления данных:"
	msgInvalidID         = "Неверный ID."
	msgUserBanned        = "Пользователь %d забанен."
	msgUserUnbanned      = "Пользователь %d разбанен."
	msgBroadcastDone     = "Рассылка отправлена (%d)."
	msgReplyDone         = "Ответ отправлен заявителю."
	msgReplyFailed       = "Не удалось отправить ответ заявителю."
	msgReplyNoComplaint  = "Целевая жалоба не найдена."
	msgResetDone         = "✅ Все данные удалены."
	msgResetBadPassword  = "Неверный пароль. Операция отменена."
	msgComplaintNotFound = "Жалоба не найдена."
	msgComplaintDeleted  = "Жалоба удалена."
	msgComplaintSkipped  = "Жалоба пропущена (удалена из списка)."
	msgSkipped           = "Жалоба пропущена."
	msgTargetDeleted     = "Сообщение удалено и жалоба обработана."
	msgTargetNone        = "Жалоба удалена (сообщение не найдено)."
	msgTargetMissing     = "Целевое сообщение не найдено, жалоба удалена."
	msgMessageDeleted    = "Сообщение удалено."
	msgHistoryWiped      = "✅ История чата полностью удалена."
	msgHistoryWipedShort = "История стёрта."
	msgWipeCancelled     = "❌ Отменено. История чата сохранена."
	msgDeletedLast       = "✅ Удалено %d последних сообщений у всех пользователей."
	msgDeletedLastShort  = "Сообщения удалены."
	msgDeleteCancelled   = "❌ Отменено. Сообщения сохранены."
	msgResetCancelled    = "❌ Отменено. Данные сохранены."
	msgCancelledShort    = "Отменено."
)
