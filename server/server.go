package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"anonrelay/bot"
	"anonrelay/protocol"

	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("recipient not connected")

// Server is the TCP line gateway: each client authenticates with an identity
// and then exchanges pipe-delimited packets with the relay.
type Server struct {
	config   *ServerConfig
	log      *zap.Logger
	sessions map[int64]*Session
	mu       sync.RWMutex

	// per-identity message counters, kept across reconnects
	counters  map[int64]int
	callbacks map[string]int64
	nextCB    int64

	updates  chan bot.Update
	listener net.Listener
	done     chan struct{}
	stopOnce sync.Once

	// every open connection, authenticated or not
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Session struct {
	ID       int64
	Handle   string
	Conn     net.Conn
	LastPing time.Time
	mu       sync.Mutex
}

func New(config *ServerConfig, log *zap.Logger) *Server {
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 120 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		config:    config,
		log:       log,
		sessions:  make(map[int64]*Session),
		counters:  make(map[int64]int),
		callbacks: make(map[string]int64),
		conns:     make(map[net.Conn]struct{}),
		updates:   make(chan bot.Update, 256),
		done:      make(chan struct{}),
	}
}

// Listen binds the gateway port. Run calls it when it was not called before.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.config.Port))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.log.Info("gateway listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", zap.Error(err))
			continue
		}

		s.mu.Lock()
		select {
		case <-s.done:
			s.mu.Unlock()
			conn.Close()
			return
		default:
		}
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	session := &Session{Conn: conn, LastPing: time.Now()}
	remoteAddr := conn.RemoteAddr().String()
	s.log.Debug("client connected", zap.String("remote", remoteAddr))

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		if session.ID != 0 {
			s.removeSession(session)
			s.log.Info("client disconnected", zap.Int64("id", session.ID), zap.String("remote", remoteAddr))
		}
		conn.Close()
	}()

	reader := bufio.NewReader(conn)
	for {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		line, err := reader.ReadString('\n')
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.sendBye(session, "timeout")
				return
			}
			if err != io.EOF && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				s.log.Debug("read failed", zap.String("remote", remoteAddr), zap.Error(err))
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		pkt, err := protocol.ParsePacket(line)
		if err != nil {
			s.sendError(session, "", "Invalid packet format")
			continue
		}

		s.handlePacket(session, pkt)
		if pkt.Type == "bye" {
			return
		}
	}
}

// write sends the given lines to one session under its write lock.
func (s *Server) write(session *Session, lines ...string) error {
	session.mu.Lock()
	defer session.mu.Unlock()
	session.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	_, err := session.Conn.Write([]byte(strings.Join(lines, "")))
	return err
}

func (s *Server) sendPacket(session *Session, pktType string, fields ...string) {
	if err := s.write(session, protocol.FormatPacket(pktType, fields...)); err != nil {
		s.log.Debug("write failed", zap.Int64("id", session.ID), zap.Error(err))
	}
}

func (s *Server) sendOK(session *Session, fields ...string) {
	s.sendPacket(session, "ok", fields...)
}

func (s *Server) sendError(session *Session, operation, description string) {
	if operation != "" {
		s.sendPacket(session, "fail", operation, description)
	} else {
		s.sendPacket(session, "fail", description)
	}
}

func (s *Server) sendBye(session *Session, reason string) {
	if reason != "" {
		s.sendPacket(session, "bye", reason)
	} else {
		s.sendPacket(session, "bye")
	}
}

// addSession registers session under its identity. A previous connection
// for the same identity is returned so the caller can close it.
func (s *Server) addSession(session *Session) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.sessions[session.ID]
	s.sessions[session.ID] = session
	return old
}

func (s *Server) removeSession(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[session.ID] == session {
		delete(s.sessions, session.ID)
	}
}

func (s *Server) getSession(id int64) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// nextMessageID allocates the next message id in id's conversation.
func (s *Server) nextMessageID(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[id]++
	return s.counters[id]
}

// GetStats returns server statistics as a formatted string
func (s *Server) GetStats() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	users := make([]string, len(ids))
	for i, id := range ids {
		users[i] = strconv.FormatInt(id, 10)
	}
	return "connections=" + strconv.Itoa(len(ids)) + ",users=" + strings.Join(users, ";")
}

// Shutdown says bye to every client, closes every connection, stops accepting
// new ones and waits for the connection handlers to return.
func (s *Server) Shutdown(reason string) {
	s.stopOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	for _, sess := range sessions {
		s.sendBye(sess, reason)
		sess.Conn.Close()
		s.removeSession(sess)
	}
	for _, conn := range conns {
		conn.Close()
	}
	s.wg.Wait()
	s.log.Info("gateway stopped", zap.String("reason", reason), zap.Int("clients", len(sessions)))
}
