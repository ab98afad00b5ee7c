package main

import (
	"sync"

	"circle-arena/arena"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Options configures the sessions a hub creates
type Options struct {
	Arena    arena.Config
	TickRate int
}

// DefaultOptions returns the desktop arena at the default tick rate
func DefaultOptions() Options {
	return Options{Arena: arena.DefaultConfig(), TickRate: DefaultTickRate}
}

// Hub manages all connected clients and routes them to sessions
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	sessions   *SessionManager
	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
	// Storage, auth and event log; db may be nil
	db     *DB
	auth   *Auth
	events *EventLog
	done   chan struct{}
}

// NewHub creates a new Hub
func NewHub(db *DB, opts Options) *Hub {
	events := NewEventLog(db)
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		sessions:   NewSessionManager(opts, db, events),
		ipConns:    make(map[string]int),
		db:         db,
		auth:       NewAuth(db),
		events:     events,
		done:       make(chan struct{}),
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events until Close
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			if sid := client.sessionID; sid != "" {
				h.sessions.RemoveViewer(sid, client)
			}

		case <-h.done:
			return
		}
	}
}

// Close stops every session and flushes the event log
func (h *Hub) Close() {
	close(h.done)
	h.sessions.StopAll()
	h.events.Stop()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
