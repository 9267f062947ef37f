package telegram

import (
	"context"
	"errors"
	"fmt"

	"anonrelay/models"
	"anonrelay/relay"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

var ErrUnsupportedKind = errors.New("unsupported content kind")

// api is the part of *tgbotapi.BotAPI the transport calls.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Transport sends relay messages through the Bot API. Every call waits on a
// shared limiter so fan-out stays under the API flood limits.
type Transport struct {
	api     api
	limiter *rate.Limiter
}

func NewTransport(bot *tgbotapi.BotAPI, perSecond float64) *Transport {
	return newTransport(bot, perSecond)
}

func newTransport(a api, perSecond float64) *Transport {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &Transport{api: a, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t *Transport) Send(ctx context.Context, to int64, msg relay.Outgoing) (int, error) {
	c, err := chattable(to, msg)
	if err != nil {
		return 0, err
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	sent, err := t.api.Send(c)
	if err != nil {
		return 0, fmt.Errorf("send to %d: %w", to, err)
	}
	return sent.MessageID, nil
}

func (t *Transport) Delete(ctx context.Context, chat int64, msgID int) error {
	return t.request(ctx, tgbotapi.NewDeleteMessage(chat, msgID))
}

func (t *Transport) EditText(ctx context.Context, chat int64, msgID int, text string) error {
	return t.request(ctx, tgbotapi.NewEditMessageText(chat, msgID, text))
}

func (t *Transport) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return t.request(ctx, tgbotapi.NewCallback(callbackID, text))
}

func (t *Transport) request(ctx context.Context, c tgbotapi.Chattable) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := t.api.Request(c)
	return err
}

func chattable(to int64, msg relay.Outgoing) (tgbotapi.Chattable, error) {
	markup := replyMarkup(msg)

	switch msg.Kind {
	case models.KindText, "":
		m := tgbotapi.NewMessage(to, msg.Text)
		m.ReplyToMessageID = msg.ReplyTo
		if markup != nil {
			m.ReplyMarkup = markup
		}
		return m, nil
	case models.KindPhoto:
		m := tgbotapi.NewPhoto(to, tgbotapi.FileID(msg.Media))
		m.Caption = msg.Caption
		m.ReplyToMessageID = msg.ReplyTo
		if markup != nil {
			m.ReplyMarkup = markup
		}
		return m, nil
	case models.KindVideo:
		m := tgbotapi.NewVideo(to, tgbotapi.FileID(msg.Media))
		m.Caption = msg.Caption
		m.ReplyToMessageID = msg.ReplyTo
		if markup != nil {
			m.ReplyMarkup = markup
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, msg.Kind)
}

// replyMarkup picks one markup: inline buttons win over reply keyboards.
func replyMarkup(msg relay.Outgoing) interface{} {
	switch {
	case len(msg.Buttons) > 0:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(msg.Buttons))
		for _, row := range msg.Buttons {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	case len(msg.ReplyKeyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(msg.ReplyKeyboard))
		for _, row := range msg.ReplyKeyboard {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, text := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(text))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.ResizeKeyboard = true
		return kb
	case msg.RemoveKeyboard:
		return tgbotapi.NewRemoveKeyboard(false)
	}
	return nil
}
