package client

import (
	"errors"
	"strconv"
	"strings"
	"sync"
)

var ErrUnknownButton = errors.New("unknown button")

// Buttons remembers the inline buttons attached to received messages.
type Buttons struct {
	mu    sync.Mutex
	byMsg map[int][]string
}

func NewButtons() *Buttons {
	return &Buttons{byMsg: make(map[int][]string)}
}

func (b *Buttons) Add(msgID int, data string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byMsg[msgID] = append(b.byMsg[msgID], data)
	return len(b.byMsg[msgID])
}

func (b *Buttons) Forget(msgID int) {
	b.mu.Lock()
	delete(b.byMsg, msgID)
	b.mu.Unlock()
}

// Get returns the data of the n-th (1-based) button of msgID.
func (b *Buttons) Get(msgID, n int) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.byMsg[msgID]
	if n < 1 || n > len(list) {
		return "", false
	}
	return list[n-1], true
}

// Translate turns one console line into a packet:
//
//	/name args            -> cmd|name|args
//	!reply <id> <text>    -> reply|id|text
//	!photo <ref> [caption] and !video <ref> [caption]
//	!press <id> <n>       -> cb|id|<data of button n>
//	anything else         -> text|line
func Translate(line string, buttons *Buttons) (string, []string, error) {
	switch {
	case strings.HasPrefix(line, "/"):
		name, args, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
		return "cmd", []string{name, args}, nil

	case strings.HasPrefix(line, "!"):
		verb, rest, _ := strings.Cut(strings.TrimPrefix(line, "!"), " ")
		first, tail, _ := strings.Cut(strings.TrimSpace(rest), " ")
		switch verb {
		case "reply":
			if _, err := strconv.Atoi(first); err != nil {
				return "", nil, err
			}
			return "reply", []string{first, tail}, nil
		case "photo", "video":
			return verb, []string{first, tail}, nil
		case "press":
			id, err := strconv.Atoi(first)
			if err != nil {
				return "", nil, err
			}
			n, err := strconv.Atoi(strings.TrimSpace(tail))
			if err != nil {
				return "", nil, err
			}
			data, ok := buttons.Get(id, n)
			if !ok {
				return "", nil, ErrUnknownButton
			}
			return "cb", []string{first, data}, nil
		}
	}
	return "text", []string{line}, nil
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
