package telegram

import (
	"context"
	"strings"

	"anonrelay/bot"
	"anonrelay/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Source long-polls the Bot API for messages and button presses.
type Source struct {
	bot     *tgbotapi.BotAPI
	timeout int
	log     *zap.Logger
}

func NewSource(b *tgbotapi.BotAPI, log *zap.Logger) *Source {
	return &Source{bot: b, timeout: 60, log: log}
}

func (s *Source) Run(ctx context.Context, handle func(bot.Update)) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = s.timeout
	cfg.AllowedUpdates = []string{"message", "callback_query"}

	updates := s.bot.GetUpdatesChan(cfg)
	s.log.Info("polling started", zap.String("bot", s.bot.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			s.bot.StopReceivingUpdates()
			return nil
		case raw, ok := <-updates:
			if !ok {
				return nil
			}
			if u, ok := convert(raw); ok {
				handle(u)
			}
		}
	}
}

// handle is "@username", or the full name when the user has none.
func handle(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func convert(raw tgbotapi.Update) (bot.Update, bool) {
	if cq := raw.CallbackQuery; cq != nil {
		if cq.From == nil {
			return bot.Update{}, false
		}
		u := bot.Update{
			Kind:       bot.UpdateCallback,
			From:       cq.From.ID,
			Handle:     handle(cq.From),
			ChatID:     cq.From.ID,
			CallbackID: cq.ID,
			Data:       cq.Data,
		}
		if cq.Message != nil {
			u.MessageID = cq.Message.MessageID
			if cq.Message.Chat != nil {
				u.ChatID = cq.Message.Chat.ID
			}
		}
		return u, true
	}

	m := raw.Message
	if m == nil || m.From == nil {
		return bot.Update{}, false
	}
	u := bot.Update{
		Kind:      bot.UpdateMessage,
		From:      m.From.ID,
		Handle:    handle(m.From),
		ChatID:    m.From.ID,
		MessageID: m.MessageID,
		Text:      m.Text,
	}
	if m.Chat != nil {
		u.ChatID = m.Chat.ID
	}
	if m.ReplyToMessage != nil {
		u.ReplyTo = m.ReplyToMessage.MessageID
	}

	switch {
	case m.IsCommand():
		u.Command = m.Command()
		u.Args = m.CommandArguments()
	case len(m.Photo) > 0:
		u.Content = models.Content{Kind: models.KindPhoto, Body: m.Photo[len(m.Photo)-1].FileID, Caption: m.Caption}
	case m.Video != nil:
		u.Content = models.Content{Kind: models.KindVideo, Body: m.Video.FileID, Caption: m.Caption}
	case m.Text != "":
		u.Content = models.Content{Kind: models.KindText, Body: m.Text}
	}
	return u, true
}
