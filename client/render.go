package client

import (
	"fmt"
	"strings"

	"anonrelay/protocol"
)

// Render formats a gateway packet for a console. The second result is false
// for packets that need no output.
func Render(pkt *protocol.Packet) (string, bool) {
	switch pkt.Type {
	case TypeMsg:
		id, kind, body, caption := pkt.Field(0), pkt.Field(1), pkt.Field(2), pkt.Field(3)
		head := "[" + id + "]"
		if r := pkt.Field(4); r != "" && r != "0" {
			head += " ↪" + r
		}
		if kind == "text" {
			return head + " " + body, true
		}
		out := fmt.Sprintf("%s <%s %s>", head, kind, body)
		if caption != "" {
			out += " " + caption
		}
		return out, true
	case TypeBtn:
		return fmt.Sprintf("    [%s] button %q", pkt.Field(0), pkt.Field(1)), true
	case TypeKb:
		if len(pkt.Fields) == 0 {
			return "(keyboard removed)", true
		}
		return "keyboard: " + strings.Join(pkt.Fields, " | "), true
	case TypeDel:
		return fmt.Sprintf("[%s] deleted", pkt.Field(0)), true
	case TypeEdit:
		return fmt.Sprintf("[%s] edited: %s", pkt.Field(0), pkt.Field(1)), true
	case TypeAns:
		if pkt.Field(0) == "" {
			return "", false
		}
		return "» " + pkt.Field(0), true
	case TypeFail:
		return "error: " + strings.Join(pkt.Fields, ": "), true
	case TypeBye:
		return "disconnected " + pkt.Field(0), true
	}
	return "", false
}
