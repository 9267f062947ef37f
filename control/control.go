package control

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"anonrelay/protocol"

	"go.uber.org/zap"
)

var ErrCommandFailed = errors.New("control command failed")

// Handler executes control commands for a running process.
type Handler interface {
	Stats() string
	Shutdown(reason string)
}

// Socket serves management commands on a unix socket:
//
//	stats            -> OK|<stats>
//	shutdown|reason  -> OK|Shutting down
type Socket struct {
	path     string
	handler  Handler
	log      *zap.Logger
	listener net.Listener
}

func Listen(path string, h Handler, log *zap.Logger) (*Socket, error) {
	// stale socket from a previous run
	os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("control socket %s: %w", path, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("control socket listening", zap.String("path", path))
	return &Socket{path: path, handler: h, log: log, listener: listener}, nil
}

// Serve accepts connections until Close.
func (s *Socket) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		go s.handleCommand(conn)
	}
}

func (s *Socket) Close() error {
	err := s.listener.Close()
	os.Remove(s.path)
	return err
}

func (s *Socket) handleCommand(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}

	pkt, err := protocol.ParsePacket(strings.TrimSpace(line))
	if err != nil {
		conn.Write([]byte("ERROR|Invalid command\n"))
		return
	}

	switch pkt.Type {
	case "stats":
		conn.Write([]byte("OK|" + s.handler.Stats() + "\n"))

	case "shutdown":
		reason := pkt.Field(0)
		if reason == "" {
			reason = "maintenance"
		}
		conn.Write([]byte("OK|Shutting down\n"))
		conn.Close()

		s.log.Warn("shutdown requested", zap.String("reason", reason))
		s.handler.Shutdown(reason)

	default:
		conn.Write([]byte("ERROR|Unknown command\n"))
	}
}

// Send runs one command against the socket at path and returns the reply payload.
func Send(path, command string, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))
	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return "", err
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", err
	}

	status, payload, _ := strings.Cut(strings.TrimSpace(line), "|")
	if status != "OK" {
		return "", fmt.Errorf("%w: %s", ErrCommandFailed, payload)
	}
	return payload, nil
}
