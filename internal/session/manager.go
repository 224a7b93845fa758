package session

import "sync"

// Manager owns the per-user sessions for the running process. Sessions are
// created lazily on first use and dropped explicitly; there is no
// process-wide ambient store.
type Manager struct {
	store      RecordStore
	feedWindow int

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager backed by the record store.
func NewManager(store RecordStore, feedWindow int) *Manager {
	return &Manager{
		store:      store,
		feedWindow: feedWindow,
		sessions:   make(map[string]*Session),
	}
}

// Session returns the session for a user, creating it on first use.
func (m *Manager) Session(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		s = New(userID, m.store, m.feedWindow)
		m.sessions[userID] = s
	}
	return s
}

// Drop discards a user's session and its cached state.
func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Close discards all sessions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*Session)
}
