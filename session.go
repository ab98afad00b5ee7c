package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const maxSessions = 100

// SessionIdleTimeout is how long a session without viewers survives
var SessionIdleTimeout = 2 * time.Minute

// Session is one arena that clients can watch
type Session struct {
	ID        string
	Name      string
	Game      *Game
	CreatedAt time.Time
	passHash  string
}

// Locked reports whether joining needs a password
func (s *Session) Locked() bool {
	return s.passHash != ""
}

// SessionManager handles creation, lookup and idle cleanup of sessions
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idle     map[string]*time.Timer

	opts   Options
	db     *DB
	events *EventLog
}

// NewSessionManager creates a new SessionManager. db and events may be nil.
func NewSessionManager(opts Options, db *DB, events *EventLog) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		idle:     make(map[string]*time.Timer),
		opts:     opts,
		db:       db,
		events:   events,
	}
}

// CreateSession creates a new arena session and starts its loop. passHash
// is a bcrypt hash, or "" for an open session. Returns nil if limit reached.
func (sm *SessionManager) CreateSession(name, passHash string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= maxSessions {
		return nil
	}

	id := uuid.NewString()
	game := NewGame(id, sm.opts, sm.db, sm.events)
	sess := &Session{
		ID:        id,
		Name:      name,
		Game:      game,
		CreatedAt: time.Now(),
		passHash:  passHash,
	}
	sm.sessions[id] = sess
	go game.Run()
	// the creator may never join
	sm.scheduleIdleLocked(id)

	if sm.events != nil {
		sm.events.Track(EvtSessionStart, id, "")
	}
	return sess
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// MarkActive cancels a pending idle cleanup
func (sm *SessionManager) MarkActive(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if t, ok := sm.idle[id]; ok {
		t.Stop()
		delete(sm.idle, id)
	}
}

// RemoveViewer detaches a viewer and schedules cleanup of a session left
// without viewers
func (sm *SessionManager) RemoveViewer(sessionID string, b Broadcaster) {
	sm.mu.RLock()
	sess, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()
	if !ok {
		return
	}
	sess.Game.RemoveViewer(b)

	if sess.Game.ViewerCount() == 0 {
		sm.mu.Lock()
		sm.scheduleIdleLocked(sessionID)
		sm.mu.Unlock()
	}
}

func (sm *SessionManager) scheduleIdleLocked(id string) {
	if t, ok := sm.idle[id]; ok {
		t.Stop()
	}
	sm.idle[id] = time.AfterFunc(SessionIdleTimeout, func() {
		sm.removeIfIdle(id)
	})
}

func (sm *SessionManager) removeIfIdle(id string) {
	sm.mu.Lock()
	sess, ok := sm.sessions[id]
	if !ok || sess.Game.ViewerCount() > 0 {
		delete(sm.idle, id)
		sm.mu.Unlock()
		return
	}
	delete(sm.sessions, id)
	delete(sm.idle, id)
	sm.mu.Unlock()

	sess.Game.Stop()
	if sm.events != nil {
		sm.events.Track(EvtSessionEnd, id, "")
	}
}

// StopAll stops every session loop and waits for their match writes
func (sm *SessionManager) StopAll() {
	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*Session)
	for id, t := range sm.idle {
		t.Stop()
		delete(sm.idle, id)
	}
	sm.mu.Unlock()

	for _, sess := range sessions {
		sess.Game.Stop()
	}
	for _, sess := range sessions {
		sess.Game.Wait()
	}
}

// Count returns the number of live sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// ListSessions returns info about all active sessions
func (sm *SessionManager) ListSessions() []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	list := make([]SessionInfo, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		st := sess.Game.Status()
		list = append(list, SessionInfo{
			ID:      sess.ID,
			Name:    sess.Name,
			Viewers: sess.Game.ViewerCount(),
			Circles: st.Active,
			Locked:  sess.Locked(),
			Over:    st.GameOver,
		})
	}
	return list
}
