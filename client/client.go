package client

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"time"

	"anonrelay/protocol"
)

// Packet types sent by the gateway
const (
	TypePong = "pong"
	TypeBye  = "bye"
	TypeOk   = "ok"
	TypeFail = "fail"
	TypeMsg  = "msg"
	TypeBtn  = "btn"
	TypeKb   = "kb"
	TypeDel  = "del"
	TypeEdit = "edit"
	TypeAns  = "ans"
)

// Client is a line protocol client for the relay gateway.
type Client struct {
	conn       net.Conn
	reader     *bufio.Reader
	mu         sync.Mutex
	sendMu     sync.Mutex
	handlers   map[string][]func(*protocol.Packet)
	pingTicker *time.Ticker
	done       chan struct{}
	closeOnce  sync.Once
	connected  bool
	lastPong   time.Time
}

func NewClient() *Client {
	return &Client{
		handlers: make(map[string][]func(*protocol.Packet)),
		done:     make(chan struct{}),
	}
}

// Connect dials the gateway and starts the read and keepalive loops.
// Handlers should be registered before Connect.
func (c *Client) Connect(addr string, keepalive time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.connected = true
	c.lastPong = time.Now()
	c.mu.Unlock()

	c.OnPacket(TypePong, func(*protocol.Packet) {
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()
	})

	if keepalive > 0 {
		c.pingTicker = time.NewTicker(keepalive)
		go c.pingLoop()
	}
	go c.readLoop()
	return nil
}

// Auth identifies the client; the result arrives as ok|auth or fail|auth.
func (c *Client) Auth(id int64, handle string) error {
	return c.Send("auth", formatID(id), handle)
}

// Disconnect says bye and closes the connection.
func (c *Client) Disconnect() error {
	if !c.IsConnected() {
		return nil
	}
	c.Send(TypeBye)
	c.shutdown()
	return c.conn.Close()
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(c.done)
		if c.pingTicker != nil {
			c.pingTicker.Stop()
		}
	})
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LastPongTime returns time since the last pong.
func (c *Client) LastPongTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastPong)
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) pingLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.pingTicker.C:
			c.Send("ping")
		}
	}
}

func (c *Client) readLoop() {
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if c.IsConnected() {
				c.notifyHandlers(&protocol.Packet{Type: TypeBye, Fields: []string{"connection_lost"}})
			}
			c.shutdown()
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		pkt, err := protocol.ParsePacket(line)
		if err != nil {
			continue
		}
		c.notifyHandlers(pkt)
	}
}

func (c *Client) notifyHandlers(pkt *protocol.Packet) {
	c.mu.Lock()
	handlers := append([]func(*protocol.Packet){}, c.handlers[pkt.Type]...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(pkt)
	}
}

// OnPacket registers a handler for a packet type. Handlers run on the read loop.
func (c *Client) OnPacket(pktType string, handler func(*protocol.Packet)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[pktType] = append(c.handlers[pktType], handler)
}

// Send writes one packet.
func (c *Client) Send(pktType string, fields ...string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_, err := c.conn.Write([]byte(protocol.FormatPacket(pktType, fields...)))
	return err
}
