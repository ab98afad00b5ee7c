package main

import (
	"database/sql"
	"log"
	"sync"
	"time"
)

// Event types recorded in arena_events
const (
	EvtSessionStart = "session_start"
	EvtSessionEnd   = "session_end"
	EvtElimination  = "elimination"
	EvtPickup       = "pickup"
	EvtGameOver     = "game_over"
)

const (
	eventBufSize    = 1024
	eventBatchSize  = 50
	eventFlushEvery = 5 * time.Second
)

// ArenaEvent is a single logged event
type ArenaEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sid"`
	Data      string    `json:"data,omitempty"` // JSON metadata (optional)
	Timestamp time.Time `json:"at"`
}

// EventLog writes arena events to the database in batches from a
// background goroutine
type EventLog struct {
	db     *DB
	events chan ArenaEvent
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewEventLog creates and starts the background writer. db may be nil, in
// which case events are discarded.
func NewEventLog(db *DB) *EventLog {
	l := &EventLog{
		db:     db,
		events: make(chan ArenaEvent, eventBufSize),
		stop:   make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writer()
	return l
}

// Track enqueues an event without blocking. Events are dropped when the
// buffer is full or the log is stopped.
func (l *EventLog) Track(evtType, sessionID, data string) {
	select {
	case <-l.stop:
		return
	default:
	}
	select {
	case l.events <- ArenaEvent{
		Type:      evtType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}:
	default:
	}
}

// Stop flushes buffered events and shuts the writer down
func (l *EventLog) Stop() {
	l.once.Do(func() {
		close(l.stop)
		l.wg.Wait()
	})
}

func (l *EventLog) writer() {
	defer l.wg.Done()

	batch := make([]ArenaEvent, 0, 64)
	ticker := time.NewTicker(eventFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case evt := <-l.events:
			batch = append(batch, evt)
			if len(batch) >= eventBatchSize {
				l.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flush(batch)
				batch = batch[:0]
			}
		case <-l.stop:
			for {
				select {
				case evt := <-l.events:
					batch = append(batch, evt)
				default:
					l.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes a batch of events to the database
func (l *EventLog) flush(events []ArenaEvent) {
	if l.db == nil || len(events) == 0 {
		return
	}
	tx, err := l.db.conn.Begin()
	if err != nil {
		log.Printf("eventlog: begin tx error: %v", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO arena_events (event_type, session_id, data, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		log.Printf("eventlog: prepare error: %v", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		sid := sql.NullString{String: evt.SessionID, Valid: evt.SessionID != ""}
		data := sql.NullString{String: evt.Data, Valid: evt.Data != ""}
		if _, err := stmt.Exec(evt.Type, sid, data, evt.Timestamp.Format(time.RFC3339)); err != nil {
			log.Printf("eventlog: insert error: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("eventlog: commit error: %v", err)
	}
}

// EventCounts returns counts of each event type for the last N days
func (l *EventLog) EventCounts(days int) (map[string]int, error) {
	result := make(map[string]int)
	if l.db == nil {
		return result, nil
	}
	rows, err := l.db.conn.Query(`
		SELECT event_type, COUNT(*) FROM arena_events
		WHERE created_at >= date('now', '-' || ? || ' days')
		GROUP BY event_type ORDER BY COUNT(*) DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			continue
		}
		result[evtType] = count
	}
	return result, rows.Err()
}

// SessionEvents returns the events logged for one session, oldest first
func (l *EventLog) SessionEvents(sessionID string) ([]ArenaEvent, error) {
	if l.db == nil {
		return nil, nil
	}
	rows, err := l.db.conn.Query(`
		SELECT event_type, COALESCE(data, ''), created_at FROM arena_events
		WHERE session_id = ? ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ArenaEvent
	for rows.Next() {
		var e ArenaEvent
		var ts string
		if err := rows.Scan(&e.Type, &e.Data, &ts); err != nil {
			return nil, err
		}
		e.SessionID = sessionID
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		result = append(result, e)
	}
	return result, rows.Err()
}
