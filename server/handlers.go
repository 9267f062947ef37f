package server

import (
	"strconv"
	"time"

	"anonrelay/bot"
	"anonrelay/models"
	"anonrelay/protocol"

	"go.uber.org/zap"
)

var commands = []string{"ping", "auth", "text", "reply", "photo", "video", "cmd", "cb", "bye", "help"}

func (s *Server) handlePacket(session *Session, pkt *protocol.Packet) {
	session.mu.Lock()
	session.LastPing = time.Now()
	session.mu.Unlock()

	switch pkt.Type {
	case "ping":
		s.sendPacket(session, "pong")
		return
	case "help":
		s.write(session, protocol.FormatListPacket("help", commands))
		return
	case "bye":
		s.sendBye(session, "")
		return
	case "auth":
		s.handleAuth(session, pkt)
		return
	}

	if session.ID == 0 {
		s.sendError(session, pkt.Type, "Not authenticated")
		return
	}

	switch pkt.Type {
	case "text":
		s.handleContent(session, pkt.Type, models.Content{Kind: models.KindText, Body: pkt.Rest(0)}, 0)
	case "reply":
		replyTo, err := pkt.Int(0)
		if err != nil {
			s.sendError(session, "reply", "Invalid message id")
			return
		}
		s.handleContent(session, pkt.Type, models.Content{Kind: models.KindText, Body: pkt.Rest(1)}, replyTo)
	case "photo", "video":
		ref := pkt.Field(0)
		if ref == "" {
			s.sendError(session, pkt.Type, "Media reference required")
			return
		}
		s.handleContent(session, pkt.Type, models.Content{Kind: models.ContentKind(pkt.Type), Body: ref, Caption: pkt.Rest(1)}, 0)
	case "cmd":
		s.handleCommand(session, pkt)
	case "cb":
		s.handleCallback(session, pkt)
	default:
		s.sendError(session, "", "Unknown packet type")
	}
}

func (s *Server) handleAuth(session *Session, pkt *protocol.Packet) {
	id, err := pkt.Int64(0)
	if err != nil || id <= 0 {
		s.sendError(session, "auth", "Invalid identity")
		return
	}
	if session.ID != 0 {
		s.sendOK(session, "auth")
		return
	}

	session.ID = id
	session.Handle = pkt.Field(1)
	if old := s.addSession(session); old != nil {
		s.sendBye(old, "replaced")
		old.Conn.Close()
	}
	s.sendOK(session, "auth")
	s.log.Info("client authenticated", zap.Int64("id", id), zap.String("handle", session.Handle))
}

// handleContent turns an inbound message into an update and reports its id to the client.
func (s *Server) handleContent(session *Session, op string, content models.Content, replyTo int) {
	u := s.newMessage(session)
	u.Content = content
	u.ReplyTo = replyTo
	if content.Kind == models.KindText {
		u.Text = content.Body
	}
	s.sendOK(session, op, strconv.Itoa(u.MessageID))
	s.push(u)
}

func (s *Server) handleCommand(session *Session, pkt *protocol.Packet) {
	name := pkt.Field(0)
	if name == "" {
		s.sendError(session, "cmd", "Command required")
		return
	}
	u := s.newMessage(session)
	u.Command = name
	u.Args = pkt.Rest(1)
	u.Text = "/" + name
	s.sendOK(session, "cmd", strconv.Itoa(u.MessageID))
	s.push(u)
}

func (s *Server) handleCallback(session *Session, pkt *protocol.Packet) {
	msgID, err := pkt.Int(0)
	data := pkt.Rest(1)
	if err != nil || data == "" {
		s.sendError(session, "cb", "Invalid callback")
		return
	}

	s.mu.Lock()
	s.nextCB++
	cbID := strconv.FormatInt(s.nextCB, 10)
	s.callbacks[cbID] = session.ID
	s.mu.Unlock()

	s.push(bot.Update{
		Kind:       bot.UpdateCallback,
		From:       session.ID,
		Handle:     session.Handle,
		ChatID:     session.ID,
		MessageID:  msgID,
		CallbackID: cbID,
		Data:       data,
	})
}

func (s *Server) newMessage(session *Session) bot.Update {
	return bot.Update{
		Kind:      bot.UpdateMessage,
		From:      session.ID,
		Handle:    session.Handle,
		ChatID:    session.ID,
		MessageID: s.nextMessageID(session.ID),
	}
}

// push queues an update for Run; updates arriving after shutdown are dropped.
func (s *Server) push(u bot.Update) {
	select {
	case s.updates <- u:
	case <-s.done:
	}
}
