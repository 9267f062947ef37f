package server

import (
	"context"
	"fmt"
	"strconv"

	"anonrelay/bot"
	"anonrelay/models"
	"anonrelay/protocol"
	"anonrelay/relay"
)

// Run accepts clients and hands their updates to handle, one at a time,
// until ctx is done.
func (s *Server) Run(ctx context.Context, handle func(bot.Update)) error {
	if s.Addr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.mu.RLock()
	listener := s.listener
	s.mu.RUnlock()
	go s.acceptLoop(listener)

	for {
		select {
		case <-ctx.Done():
			listener.Close()
			return nil
		case <-s.done:
			return nil
		case u := <-s.updates:
			handle(u)
		}
	}
}

// Send writes msg to a connected client as
// msg|id|kind|body|caption|replyTo followed by one btn line per inline
// button and a kb line when the reply keyboard changes.
func (s *Server) Send(ctx context.Context, to int64, msg relay.Outgoing) (int, error) {
	session, ok := s.getSession(to)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNotConnected, to)
	}

	kind := msg.Kind
	if kind == "" {
		kind = models.KindText
	}
	body := msg.Text
	if kind != models.KindText {
		body = msg.Media
	}

	id := s.nextMessageID(to)
	ext := strconv.Itoa(id)
	lines := []string{protocol.FormatPacket("msg", ext, string(kind), body, msg.Caption, strconv.Itoa(msg.ReplyTo))}
	for _, row := range msg.Buttons {
		for _, b := range row {
			lines = append(lines, protocol.FormatPacket("btn", ext, b.Text, b.Data))
		}
	}
	switch {
	case len(msg.ReplyKeyboard) > 0:
		var keys []string
		for _, row := range msg.ReplyKeyboard {
			keys = append(keys, row...)
		}
		lines = append(lines, protocol.FormatListPacket("kb", keys))
	case msg.RemoveKeyboard:
		lines = append(lines, protocol.FormatPacket("kb"))
	}

	if err := s.write(session, lines...); err != nil {
		return 0, fmt.Errorf("send to %d: %w", to, err)
	}
	return id, nil
}

func (s *Server) Delete(ctx context.Context, chat int64, msgID int) error {
	return s.notify(chat, "del", strconv.Itoa(msgID))
}

func (s *Server) EditText(ctx context.Context, chat int64, msgID int, text string) error {
	return s.notify(chat, "edit", strconv.Itoa(msgID), text)
}

// AnswerCallback sends ans|text to the client that pressed the button.
// Unknown or already answered ids are ignored.
func (s *Server) AnswerCallback(ctx context.Context, callbackID, text string) error {
	s.mu.Lock()
	id, ok := s.callbacks[callbackID]
	delete(s.callbacks, callbackID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.notify(id, "ans", text)
}

func (s *Server) notify(to int64, pktType string, fields ...string) error {
	session, ok := s.getSession(to)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotConnected, to)
	}
	return s.write(session, protocol.FormatPacket(pktType, fields...))
}
