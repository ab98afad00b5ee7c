package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// MatchRecord is a finished match with its final standings
type MatchRecord struct {
	SessionID   string
	WinnerID    int
	WinnerColor string
	Duration    float64 // seconds from first start to game over
	Circles     []MatchCircleRow
}

// MatchCircleRow is one circle's result in a match
type MatchCircleRow struct {
	MatchID      int64  `json:"match_id"`
	CircleID     int    `json:"circle_id"`
	Color        string `json:"color"`
	Score        int    `json:"score"`
	Alive        bool   `json:"alive"`
	EliminatedBy int    `json:"eliminated_by,omitempty"`
	Winner       bool   `json:"winner"`
}

// LeaderboardEntry represents one row in the all-time leaderboard
type LeaderboardEntry struct {
	Rank      int       `json:"rank"`
	MatchID   int64     `json:"match_id"`
	CircleID  int       `json:"circle_id"`
	Color     string    `json:"color"`
	Score     int       `json:"score"`
	Winner    bool      `json:"winner"`
	CreatedAt time.Time `json:"created_at"`
}

// OpenDB opens (or creates) the SQLite database. ":memory:" keeps nothing
// across restarts.
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// every pooled connection to :memory: would get its own empty database
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS matches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		winner_id INTEGER NOT NULL,
		winner_color TEXT NOT NULL DEFAULT '',
		circles INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS match_circles (
		match_id INTEGER NOT NULL REFERENCES matches(id),
		circle_id INTEGER NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		score INTEGER NOT NULL DEFAULT 0,
		alive INTEGER NOT NULL DEFAULT 0,
		eliminated_by INTEGER NOT NULL DEFAULT 0,
		winner INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, circle_id)
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS arena_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		session_id TEXT,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_match_circles_score ON match_circles(score);
	CREATE INDEX IF NOT EXISTS idx_arena_events_created ON arena_events(created_at);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// GetSetting returns a stored setting, or "" if unset
func (db *DB) GetSetting(key string) string {
	var value string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("db: get setting %s: %v", key, err)
		}
		return ""
	}
	return value
}

// SetSetting stores a setting, replacing any previous value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// RecordMatch stores a finished match and its circles in one transaction
// and returns the match ID
func (db *DB) RecordMatch(m MatchRecord) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO matches (session_id, winner_id, winner_color, circles, duration) VALUES (?, ?, ?, ?, ?)",
		m.SessionID, m.WinnerID, m.WinnerColor, len(m.Circles), m.Duration,
	)
	if err != nil {
		return 0, fmt.Errorf("insert match: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO match_circles (match_id, circle_id, color, score, alive, eliminated_by, winner)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare circles: %w", err)
	}
	defer stmt.Close()

	for _, c := range m.Circles {
		if _, err := stmt.Exec(id, c.CircleID, c.Color, c.Score, c.Alive, c.EliminatedBy, c.Winner); err != nil {
			return 0, fmt.Errorf("insert circle %d: %w", c.CircleID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// GetMatchCircles returns the recorded circles of a match, in leaderboard order
func (db *DB) GetMatchCircles(matchID int64) ([]MatchCircleRow, error) {
	rows, err := db.conn.Query(`
		SELECT match_id, circle_id, color, score, alive, eliminated_by, winner
		FROM match_circles
		WHERE match_id = ?
		ORDER BY alive DESC, score DESC, circle_id`,
		matchID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MatchCircleRow
	for rows.Next() {
		var r MatchCircleRow
		if err := rows.Scan(&r.MatchID, &r.CircleID, &r.Color, &r.Score, &r.Alive, &r.EliminatedBy, &r.Winner); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// MatchCount returns the number of recorded matches
func (db *DB) MatchCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM matches").Scan(&count)
	return count, err
}

// GetLeaderboard returns the highest scoring circles across all recorded
// matches. Winners rank above non-winners on equal score.
func (db *DB) GetLeaderboard(limit int) ([]LeaderboardEntry, error) {
	rows, err := db.conn.Query(`
		SELECT mc.match_id, mc.circle_id, mc.color, mc.score, mc.winner, m.created_at
		FROM match_circles mc JOIN matches m ON m.id = mc.match_id
		ORDER BY mc.score DESC, mc.winner DESC, mc.match_id, mc.circle_id
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.MatchID, &e.CircleID, &e.Color, &e.Score, &e.Winner, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Rank = rank
		rank++
		result = append(result, e)
	}
	return result, rows.Err()
}
