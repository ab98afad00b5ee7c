package main

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
)

const (
	qrSize                 = 256
	defaultLeaderboardSize = 20
	maxLeaderboardSize     = 100
	defaultStatsDays       = 7
)

var uuidPathRe = regexp.MustCompile(`^/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http encode error: %v", err)
	}
}

// queryInt reads a positive integer query parameter, falling back to def
func queryInt(r *http.Request, key string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub, clientDir string) *http.ServeMux {
	mux := http.NewServeMux()

	// Serve static files with no-cache so browsers always revalidate
	fs := http.FileServer(http.Dir(clientDir))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		// SPA: serve index.html for root and session paths. The browser
		// client is deployed separately; without it these are 404s.
		if r.URL.Path == "/" || uuidPathRe.MatchString(r.URL.Path) {
			http.ServeFile(w, r, filepath.Join(clientDir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	}))

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade error: %v", err)
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, ip)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	})

	// QR code linking a phone to the session page
	mux.HandleFunc("/qr/", func(w http.ResponseWriter, r *http.Request) {
		sid := strings.TrimPrefix(r.URL.Path, "/qr/")
		if !uuidPathRe.MatchString("/"+sid) || hub.sessions.GetSession(sid) == nil {
			http.NotFound(w, r)
			return
		}
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		png, err := qrcode.Encode(scheme+"://"+r.Host+"/"+sid, qrcode.Medium, qrSize)
		if err != nil {
			log.Printf("qr error: %v", err)
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(png)
	})

	mux.HandleFunc("/api/leaderboard", func(w http.ResponseWriter, r *http.Request) {
		entries := []LeaderboardEntry{}
		if hub.db != nil {
			limit := queryInt(r, "limit", defaultLeaderboardSize, maxLeaderboardSize)
			rows, err := hub.db.GetLeaderboard(limit)
			if err != nil {
				log.Printf("db: leaderboard: %v", err)
				http.Error(w, "database error", http.StatusInternalServerError)
				return
			}
			if rows != nil {
				entries = rows
			}
		}
		writeJSON(w, http.StatusOK, entries)
	})

	// Final standings of one recorded match
	mux.HandleFunc("/api/match/", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/match/"), 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid match id", http.StatusBadRequest)
			return
		}
		if hub.db == nil {
			http.NotFound(w, r)
			return
		}
		rows, err := hub.db.GetMatchCircles(id)
		if err != nil {
			log.Printf("db: match %d: %v", id, err)
			http.Error(w, "database error", http.StatusInternalServerError)
			return
		}
		if len(rows) == 0 {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})

	// Event history of one session
	mux.HandleFunc("/api/events/", func(w http.ResponseWriter, r *http.Request) {
		sid := strings.TrimPrefix(r.URL.Path, "/api/events/")
		if !uuidPathRe.MatchString("/" + sid) {
			http.NotFound(w, r)
			return
		}
		evts, err := hub.events.SessionEvents(sid)
		if err != nil {
			log.Printf("db: events for %s: %v", sid, err)
			http.Error(w, "database error", http.StatusInternalServerError)
			return
		}
		if evts == nil {
			evts = []ArenaEvent{}
		}
		writeJSON(w, http.StatusOK, evts)
	})

	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		days := queryInt(r, "days", defaultStatsDays, 365)
		counts, err := hub.events.EventCounts(days)
		if err != nil {
			log.Printf("db: event counts: %v", err)
			http.Error(w, "database error", http.StatusInternalServerError)
			return
		}
		resp := map[string]interface{}{
			"sessions":    hub.sessions.Count(),
			"connections": hub.TotalConns(),
			"days":        days,
			"events":      counts,
		}
		if hub.db != nil {
			if n, err := hub.db.MatchCount(); err == nil {
				resp["matches"] = n
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"sessions": hub.sessions.Count(),
			"clients":  hub.ClientCount(),
		})
	})

	return mux
}
