// Package session holds the authenticated identity used by every contact
// operation. The Manager is an explicit object injected into the transport
// and controllers; state transitions are broadcast to subscribers.
package session

import (
	"sync"

	"contactdesk/internal/logging"
)

// Role is the server-assigned authority of a user.
type Role string

const (
	RoleUser  Role = "ROLE_USER"
	RoleAdmin Role = "ROLE_ADMIN"
)

// IsAdmin reports whether the role is ROLE_ADMIN.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Session is the identity and bearer token of the signed-in user.
type Session struct {
	Username string `json:"username"`
	Role     Role   `json:"role,omitempty"`
	Token    string `json:"token"`
}

// Valid reports whether the session carries a token.
func (s Session) Valid() bool {
	return s.Token != ""
}

// State is a session lifecycle state.
type State int

const (
	StateLoggedOut State = iota
	StateLoggedIn
	StateRoleResolved
	StateInvalidated
)

func (s State) String() string {
	switch s {
	case StateLoggedIn:
		return "logged_in"
	case StateRoleResolved:
		return "role_resolved"
	case StateInvalidated:
		return "invalidated"
	default:
		return "logged_out"
	}
}

// Event is broadcast on every session transition.
type Event struct {
	State   State
	Session Session
	Reason  string
}

// Persister stores the session between runs.
type Persister interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// Manager owns the current session.
type Manager struct {
	mu      sync.RWMutex
	current Session
	store   Persister

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

// NewManager creates a manager, restoring a persisted session if store has one.
// A nil store keeps the session in memory only.
func NewManager(store Persister) *Manager {
	m := &Manager{store: store, subs: make(map[int]func(Event))}
	if store != nil {
		s, err := store.Load()
		if err != nil {
			logging.Get(logging.CategorySession).Warn("could not restore session: %v", err)
		} else if s.Valid() {
			m.current = s
			logging.Session("restored session for %s", s.Username)
		}
	}
	return m
}

// Current returns a copy of the current session.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Token returns the bearer token, or "" when signed out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Token
}

// Role returns the current role. It is empty until resolved via /auth/me.
func (m *Manager) Role() Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Role
}

// Begin starts a session after a successful login.
func (m *Manager) Begin(username, token string) error {
	s := Session{Username: username, Token: token}
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	logging.Session("login: %s", username)
	err := m.persist(s)
	m.publish(Event{State: StateLoggedIn, Session: s})
	return err
}

// SetRole records the role reported by the server.
func (m *Manager) SetRole(role Role) {
	m.mu.Lock()
	if !m.current.Valid() {
		m.mu.Unlock()
		return
	}
	m.current.Role = role
	s := m.current
	m.mu.Unlock()

	logging.SessionDebug("role for %s: %s", s.Username, role)
	if err := m.persist(s); err != nil {
		logging.Get(logging.CategorySession).Warn("persist role: %v", err)
	}
	m.publish(Event{State: StateRoleResolved, Session: s})
}

// Logout clears the token and username.
func (m *Manager) Logout() error {
	m.mu.Lock()
	prev := m.current
	m.current = Session{}
	m.mu.Unlock()

	logging.Session("logout: %s", prev.Username)
	err := m.clear()
	m.publish(Event{State: StateLoggedOut, Session: prev})
	return err
}

// Invalidate ends the session after the server rejected the token.
// It is idempotent: only the first call on a live session broadcasts.
func (m *Manager) Invalidate(reason string) {
	m.mu.Lock()
	if !m.current.Valid() {
		m.mu.Unlock()
		return
	}
	prev := m.current
	m.current = Session{}
	m.mu.Unlock()

	logging.Get(logging.CategorySession).Warn("session invalidated for %s: %s", prev.Username, reason)
	if err := m.clear(); err != nil {
		logging.Get(logging.CategorySession).Error("clear session: %v", err)
	}
	m.publish(Event{State: StateInvalidated, Session: prev, Reason: reason})
}

// Subscribe registers fn for every transition. The returned func unsubscribes.
func (m *Manager) Subscribe(fn func(Event)) (cancel func()) {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) publish(ev Event) {
	m.subMu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (m *Manager) persist(s Session) error {
	if m.store == nil {
		return nil
	}
	return m.store.Save(s)
}

func (m *Manager) clear() error {
	if m.store == nil {
		return nil
	}
	return m.store.Clear()
}
