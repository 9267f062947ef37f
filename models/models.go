package models

import (
	"sort"
	"time"
)

type ContentKind string

const (
	KindText  ContentKind = "text"
	KindPhoto ContentKind = "photo"
	KindVideo ContentKind = "video"
)

// Valid reports whether the relay knows how to deliver this kind.
func (k ContentKind) Valid() bool {
	switch k {
	case KindText, KindPhoto, KindVideo:
		return true
	}
	return false
}

// Content is a submission body: text for KindText, an opaque media reference otherwise.
type Content struct {
	Kind    ContentKind `json:"type"`
	Body    string      `json:"content"`
	Caption string      `json:"caption,omitempty"`
}

type User struct {
	ID           int64      `json:"id"`
	Handle       string     `json:"username,omitempty"`
	LastPublish  *time.Time `json:"last_message,omitempty"`
	PublishCount int        `json:"msg_count"`

	AwaitingAdminPassword bool   `json:"awaiting_admin_password,omitempty"`
	AwaitingComplaint     bool   `json:"awaiting_complaint,omitempty"`
	AwaitingComplaintFor  *int64 `json:"awaiting_complaint_for,omitempty"`
}

// Draft is a user's single pending, unconfirmed submission.
type Draft struct {
	Content
	CreatedAt   time.Time `json:"timestamp"`
	ReplyTarget *int64    `json:"reply_target_idx,omitempty"`
}

// ChatEntry is one published broadcast. Seq is the number shown to moderators
// and is never reused; ID is a generated identifier that survives resets of Seq.
type ChatEntry struct {
	ID           string `json:"id"`
	Seq          int64  `json:"seq"`
	AuthorID     int64  `json:"from_id"`
	AuthorHandle string `json:"username,omitempty"`
	Content
	PublishedAt time.Time `json:"timestamp"`
	ReplyTarget *int64    `json:"reply_target_idx,omitempty"`
	// Delivered maps recipient -> recipient-scoped message id.
	Delivered map[int64]int `json:"delivered"`
}

type Complaint struct {
	ID             string    `json:"id"`
	Seq            int64     `json:"seq"`
	ReporterID     int64     `json:"from"`
	ReporterHandle string    `json:"from_username,omitempty"`
	Reason         string    `json:"text"`
	CreatedAt      time.Time `json:"timestamp"`
	Target         *int64    `json:"target"`
}

// IDSet is a small ordered set of identities, stored as a JSON list.
type IDSet []int64

func (s IDSet) Has(id int64) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

func (s *IDSet) Add(id int64) bool {
	if s.Has(id) {
		return false
	}
	*s = append(*s, id)
	return true
}

func (s *IDSet) Remove(id int64) bool {
	for i, v := range *s {
		if v == id {
			*s = append((*s)[:i], (*s)[i+1:]...)
			return true
		}
	}
	return false
}

// State is the whole persisted document.
type State struct {
	Users            map[int64]*User  `json:"users"`
	Drafts           map[int64]*Draft `json:"drafts"`
	Chat             []*ChatEntry     `json:"chat"`
	Complaints       []*Complaint     `json:"complaints"`
	Banned           IDSet            `json:"banned"`
	Accepted         IDSet            `json:"accepted"`
	Enabled          bool             `json:"enabled"`
	NextSeq          int64            `json:"next_seq"`
	NextComplaintSeq int64            `json:"next_complaint_seq"`
}

func NewState() *State {
	return &State{
		Users:      make(map[int64]*User),
		Drafts:     make(map[int64]*Draft),
		Chat:       []*ChatEntry{},
		Complaints: []*Complaint{},
		Banned:     IDSet{},
		Accepted:   IDSet{},
		Enabled:    true,
	}
}

// Normalize repairs a decoded document so callers never see nil collections
// and the sequence counters stay ahead of every stored number.
func (s *State) Normalize() {
	if s.Users == nil {
		s.Users = make(map[int64]*User)
	}
	if s.Drafts == nil {
		s.Drafts = make(map[int64]*Draft)
	}
	if s.Chat == nil {
		s.Chat = []*ChatEntry{}
	}
	if s.Complaints == nil {
		s.Complaints = []*Complaint{}
	}
	if s.Banned == nil {
		s.Banned = IDSet{}
	}
	if s.Accepted == nil {
		s.Accepted = IDSet{}
	}
	for id, d := range s.Drafts {
		if d == nil {
			delete(s.Drafts, id)
		}
	}
	chat := s.Chat[:0]
	for _, e := range s.Chat {
		if e != nil {
			chat = append(chat, e)
		}
	}
	s.Chat = chat
	complaints := s.Complaints[:0]
	for _, c := range s.Complaints {
		if c != nil {
			complaints = append(complaints, c)
		}
	}
	s.Complaints = complaints
	for id, u := range s.Users {
		if u == nil {
			s.Users[id] = &User{ID: id}
			continue
		}
		u.ID = id
	}
	sort.SliceStable(s.Chat, func(i, j int) bool { return s.Chat[i].Seq < s.Chat[j].Seq })
	for _, e := range s.Chat {
		if e.Delivered == nil {
			e.Delivered = make(map[int64]int)
		}
		if e.Seq >= s.NextSeq {
			s.NextSeq = e.Seq + 1
		}
	}
	for _, c := range s.Complaints {
		if c.Seq >= s.NextComplaintSeq {
			s.NextComplaintSeq = c.Seq + 1
		}
	}
}
