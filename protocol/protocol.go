package protocol

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrInvalidPacket = errors.New("invalid packet format")
	ErrMissingField  = errors.New("missing packet field")
)

// Packet is one pipe-delimited line: TYPE|FIELD1|FIELD2|...
// The same encoding is used by the line gateway, by inline button payloads
// and by the control socket.
type Packet struct {
	Type   string
	Fields []string
}

func ParsePacket(line string) (*Packet, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return nil, ErrInvalidPacket
	}

	parts := splitUnescaped(line, '|')
	pkt := &Packet{Type: unescape(parts[0])}
	if pkt.Type == "" {
		return nil, ErrInvalidPacket
	}
	for _, p := range parts[1:] {
		pkt.Fields = append(pkt.Fields, unescape(p))
	}
	return pkt, nil
}

// Field returns the i-th field or "" when absent.
func (p *Packet) Field(i int) string {
	if i < 0 || i >= len(p.Fields) {
		return ""
	}
	return p.Fields[i]
}

// Rest joins fields from i onwards back with "|", for free text that may contain pipes.
func (p *Packet) Rest(i int) string {
	if i >= len(p.Fields) {
		return ""
	}
	return strings.Join(p.Fields[i:], "|")
}

func (p *Packet) Int64(i int) (int64, error) {
	if i < 0 || i >= len(p.Fields) {
		return 0, ErrMissingField
	}
	return strconv.ParseInt(strings.TrimSpace(p.Fields[i]), 10, 64)
}

func (p *Packet) Int(i int) (int, error) {
	v, err := p.Int64(i)
	return int(v), err
}

// FormatPacket encodes a packet with a trailing newline. Each field is escaped separately.
func FormatPacket(pktType string, fields ...string) string {
	return FormatAction(pktType, fields...) + "\n"
}

// FormatAction encodes a packet without the trailing newline (button payloads).
func FormatAction(pktType string, fields ...string) string {
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, Escape(pktType))
	for _, f := range fields {
		parts = append(parts, Escape(f))
	}
	return strings.Join(parts, "|")
}

// ParseAction decodes a button payload produced by FormatAction.
func ParseAction(data string) (*Packet, error) {
	return ParsePacket(data)
}

func FormatListPacket(pktType string, items []string) string {
	escaped := make([]string, len(items))
	for i, it := range items {
		escaped[i] = Escape(it)
	}
	return Escape(pktType) + "|" + strings.Join(escaped, ",") + "\n"
}

// splitUnescaped разбивает строку по разделителю, игнорируя экранированные символы
func splitUnescaped(s string, delimiter rune) []string {
	var parts []string
	var current strings.Builder
	escape := false

	for _, r := range s {
		if escape {
			current.WriteRune(r)
			escape = false
			continue
		}

		if r == '\\' {
			escape = true
			current.WriteRune(r)
			continue
		}

		if r == delimiter {
			parts = append(parts, current.String())
			current.Reset()
			continue
		}

		current.WriteRune(r)
	}

	parts = append(parts, current.String())
	return parts
}

// unescape раскодирует экранированные символы
func unescape(s string) string {
	var result strings.Builder
	escape := false

	for i, r := range s {
		if escape {
			switch r {
			case '|':
				result.WriteRune('|')
			case ',':
				result.WriteRune(',')
			case '\\':
				result.WriteRune('\\')
			case 'n':
				result.WriteRune('\n')
			case 'r':
				result.WriteRune('\r')
			default:
				// unknown escape, keep it verbatim
				result.WriteRune('\\')
				result.WriteRune(r)
			}
			escape = false
			continue
		}

		if r == '\\' && i < len(s)-1 {
			escape = true
			continue
		}

		result.WriteRune(r)
	}

	return result.String()
}

// Escape экранирует специальные символы
func Escape(s string) string {
	var result strings.Builder

	for _, r := range s {
		switch r {
		case '|':
			result.WriteString("\\|")
		case ',':
			result.WriteString("\\,")
		case '\\':
			result.WriteString("\\\\")
		case '\n':
			result.WriteString("\\n")
		case '\r':
			result.WriteString("\\r")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}
