package bot

import (
	"context"

	"anonrelay/models"
	"anonrelay/relay"
)

type UpdateKind int

const (
	UpdateMessage UpdateKind = iota
	UpdateCallback
)

// Update is one inbound event, independent of the transport it came from.
type Update struct {
	Kind   UpdateKind
	From   int64
	Handle string
	ChatID int64
	// MessageID is the message itself, or for callbacks the message carrying the button.
	MessageID int

	// messages
	Text    string
	Content models.Content
	ReplyTo int
	Command string
	Args    string

	// callbacks
	CallbackID string
	Data       string
}

// Transport is the outbound side of a transport, as used by the bot.
type Transport interface {
	relay.Transport
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Source produces updates until ctx is done, calling handle for each one in order.
type Source interface {
	Run(ctx context.Context, handle func(Update)) error
}
