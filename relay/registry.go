package relay

import (
	"context"
	"sort"

	"anonrelay/models"
)

// Register records a user on first contact and refreshes the handle
// snapshot used for future publishes. It reports whether the user is new.
func (e *Engine) Register(ctx context.Context, id int64, handle string) bool {
	e.mu.Lock()
	u, ok := e.state.Users[id]
	changed := false
	if !ok {
		u = &models.User{ID: id, Handle: handle}
		e.state.Users[id] = u
		changed = true
	} else if handle != "" && u.Handle != handle {
		u.Handle = handle
		changed = true
	}
	e.mu.Unlock()

	if changed {
		e.persist(ctx)
	}
	return !ok
}

// user returns the record for id, creating it if needed. Caller holds mu.
func (e *Engine) user(id int64) *models.User {
	u, ok := e.state.Users[id]
	if !ok {
		u = &models.User{ID: id}
		e.state.Users[id] = u
	}
	return u
}

func (e *Engine) IsBanned(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Banned.Has(id)
}

func (e *Engine) HasAccepted(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Accepted.Has(id)
}

func (e *Engine) IsAdmin(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.admins[id]
}

func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Enabled
}

func (e *Engine) GrantAdmin(id int64) {
	e.mu.Lock()
	e.admins[id] = true
	e.mu.Unlock()
}

func (e *Engine) RevokeAdmin(id int64) {
	e.mu.Lock()
	delete(e.admins, id)
	e.mu.Unlock()
}

// Admins lists the current admin sessions in ascending order.
func (e *Engine) Admins() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]int64, 0, len(e.admins))
	for id := range e.admins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// recordPublish bumps the lifetime counter and the rate-limit anchor. Caller holds mu.
func (e *Engine) recordPublish(u *models.User) {
	now := e.clock.Now()
	u.LastPublish = &now
	u.PublishCount++
}

// AcceptTerms marks the user as having accepted the terms.
func (e *Engine) AcceptTerms(ctx context.Context, id int64) error {
	e.mu.Lock()
	if e.state.Banned.Has(id) {
		e.mu.Unlock()
		return ErrBanned
	}
	e.user(id)
	e.state.Accepted.Add(id)
	e.mu.Unlock()

	e.persist(ctx)
	return nil
}

// BeginLogin arms the one-shot admin password prompt.
func (e *Engine) BeginLogin(ctx context.Context, id int64) {
	e.mu.Lock()
	e.user(id).AwaitingAdminPassword = true
	e.mu.Unlock()
	e.persist(ctx)
}

func (e *Engine) AwaitingPassword(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	u, ok := e.state.Users[id]
	return ok && u.AwaitingAdminPassword
}

// Login consumes the password prompt and grants an admin session on a match.
// The bcrypt comparison runs outside mu.
func (e *Engine) Login(ctx context.Context, id int64, password string) error {
	ok := e.cred.Verify(password)

	e.mu.Lock()
	e.user(id).AwaitingAdminPassword = false
	if ok {
		e.admins[id] = true
	}
	e.mu.Unlock()

	e.persist(ctx)
	if !ok {
		return ErrBadCredential
	}
	return nil
}

func (e *Engine) Logout(id int64) {
	e.RevokeAdmin(id)
}

// ToggleEnabled flips the relay-enabled flag and returns the new value.
func (e *Engine) ToggleEnabled(ctx context.Context) bool {
	e.mu.Lock()
	e.state.Enabled = !e.state.Enabled
	enabled := e.state.Enabled
	e.mu.Unlock()

	e.persist(ctx)
	return enabled
}

// ToggleBan bans id if absent from the ban set, unbans otherwise.
// It reports whether id is banned afterwards.
func (e *Engine) ToggleBan(ctx context.Context, id int64) bool {
	e.mu.Lock()
	banned := !e.state.Banned.Remove(id)
	if banned {
		e.state.Banned.Add(id)
	}
	e.mu.Unlock()

	e.persist(ctx)
	return banned
}

type Stats struct {
	Users      int
	Drafts     int
	Entries    int
	Published  int
	Complaints int
	Banned     int
	Admins     int
	Enabled    bool
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Users:      len(e.state.Users),
		Drafts:     len(e.state.Drafts),
		Entries:    len(e.state.Chat),
		Complaints: len(e.state.Complaints),
		Banned:     len(e.state.Banned),
		Admins:     len(e.admins),
		Enabled:    e.state.Enabled,
	}
	for _, u := range e.state.Users {
		s.Published += u.PublishCount
	}
	return s
}

type UserInfo struct {
	ID           int64
	Handle       string
	PublishCount int
	Banned       bool
}

// Users lists known users ordered by id.
func (e *Engine) Users() []UserInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]UserInfo, 0, len(e.state.Users))
	for id, u := range e.state.Users {
		out = append(out, UserInfo{
			ID:           id,
			Handle:       u.Handle,
			PublishCount: u.PublishCount,
			Banned:       e.state.Banned.Has(id),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// recipients returns every known user id in ascending order. Caller holds mu.
func (e *Engine) recipients() []int64 {
	ids := make([]int64, 0, len(e.state.Users))
	for id := range e.state.Users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
