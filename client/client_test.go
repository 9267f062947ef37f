package client

import (
	"context"
	"testing"
	"time"

	"anonrelay/bot"
	"anonrelay/protocol"
	"anonrelay/relay"
	"anonrelay/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTranslate(t *testing.T) {
	buttons := NewButtons()
	buttons.Add(3, "confirm_send")
	assert.Equal(t, 2, buttons.Add(3, "cancel_send"))

	cases := []struct {
		line   string
		typ    string
		fields []string
	}{
		{"hello", "text", []string{"hello"}},
		{"/start", "cmd", []string{"start", ""}},
		{"/admin now", "cmd", []string{"admin", "now"}},
		{"!reply 7 me too", "reply", []string{"7", "me too"}},
		{"!photo file-1 look", "photo", []string{"file-1", "look"}},
		{"!press 3 2", "cb", []string{"3", "cancel_send"}},
		{"!shrug", "text", []string{"!shrug"}},
	}
	for _, c := range cases {
		typ, fields, err := Translate(c.line, buttons)
		require.NoError(t, err, c.line)
		assert.Equal(t, c.typ, typ, c.line)
		assert.Equal(t, c.fields, fields, c.line)
	}

	_, _, err := Translate("!press 3 9", buttons)
	assert.ErrorIs(t, err, ErrUnknownButton)
	_, _, err = Translate("!reply x hi", buttons)
	assert.Error(t, err)

	buttons.Forget(3)
	_, ok := buttons.Get(3, 1)
	assert.False(t, ok)
}

func TestRender(t *testing.T) {
	out, ok := Render(&protocol.Packet{Type: TypeMsg, Fields: []string{"4", "text", "hi", "", "2"}})
	require.True(t, ok)
	assert.Equal(t, "[4] ↪2 hi", out)

	out, _ = Render(&protocol.Packet{Type: TypeMsg, Fields: []string{"5", "photo", "f1", "cap", "0"}})
	assert.Equal(t, "[5] <photo f1> cap", out)

	_, ok = Render(&protocol.Packet{Type: TypeAns, Fields: []string{""}})
	assert.False(t, ok)

	out, _ = Render(&protocol.Packet{Type: TypeKb})
	assert.Equal(t, "(keyboard removed)", out)
}

func TestClientAgainstGateway(t *testing.T) {
	gw := server.New(&server.ServerConfig{Port: 0}, zaptest.NewLogger(t))
	require.NoError(t, gw.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// echo every text back with a button
	go gw.Run(ctx, func(u bot.Update) {
		if u.Kind == bot.UpdateMessage && u.Text != "" {
			gw.Send(ctx, u.From, relay.Outgoing{Text: "echo: " + u.Text,
				Buttons: [][]relay.Button{{{Text: "ok", Data: "complaint|1"}}}})
		}
	})

	c := NewClient()
	msgs := make(chan *protocol.Packet, 4)
	btns := make(chan *protocol.Packet, 4)
	c.OnPacket(TypeMsg, func(p *protocol.Packet) { msgs <- p })
	c.OnPacket(TypeBtn, func(p *protocol.Packet) { btns <- p })

	require.NoError(t, c.Connect(gw.Addr().String(), time.Hour))
	defer c.Disconnect()
	require.NoError(t, c.Auth(9, "@nine"))
	require.NoError(t, c.Send("text", "ping?"))

	select {
	case p := <-msgs:
		assert.Equal(t, "echo: ping?", p.Field(2))
	case <-time.After(5 * time.Second):
		t.Fatal("no echo")
	}
	select {
	case p := <-btns:
		assert.Equal(t, "complaint|1", p.Field(2))
	case <-time.After(5 * time.Second):
		t.Fatal("no button")
	}
	assert.True(t, c.IsConnected())
}
