package main

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/bcrypt"
)

// ---------- helpers ----------

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// startTestServer spins up an httptest.Server with a Hub backed by an
// in-memory database and returns the server, its WebSocket URL, the hub
// and a cleanup func.
func startTestServer(t *testing.T) (*httptest.Server, string, *Hub, func()) {
	t.Helper()

	prevIdleTimeout := SessionIdleTimeout
	SessionIdleTimeout = 150 * time.Millisecond
	prevCost := bcryptCost
	bcryptCost = bcrypt.MinCost

	// Create a temp client dir with a minimal index.html
	tmpDir := t.TempDir()
	jsDir := filepath.Join(tmpDir, "js")
	os.MkdirAll(jsDir, 0o755)
	os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte("<html>test</html>"), 0o644)
	os.WriteFile(filepath.Join(jsDir, "main.js"), []byte("// test"), 0o644)

	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	hub := NewHub(db, DefaultOptions())
	go hub.Run()

	mux := SetupRoutes(hub, tmpDir)
	srv := httptest.NewServer(mux)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	return srv, wsURL, hub, func() {
		srv.Close()
		hub.Close()
		db.Close()
		SessionIdleTimeout = prevIdleTimeout
		bcryptCost = prevCost
	}
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	return conn
}

// readEnvelope reads one message from the WebSocket.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	// Binary messages are msgpack-encoded ArenaState
	if msgType == websocket.BinaryMessage {
		var st ArenaState
		if err := msgpack.Unmarshal(raw, &st); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return Envelope{T: MsgState, Data: st}
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

// broadcastTypes are pushed to viewers at any time
var broadcastTypes = map[string]bool{MsgState: true, MsgElim: true, MsgPickup: true, MsgClash: true, MsgOver: true}

// readType reads messages until one of type want arrives, skipping the
// broadcasts a viewer receives in between.
func readType(t *testing.T, conn *websocket.Conn, want string) Envelope {
	t.Helper()
	for i := 0; i < 200; i++ {
		env := readEnvelope(t, conn)
		if env.T == want {
			return env
		}
		if !broadcastTypes[env.T] {
			t.Fatalf("expected %s, got %s (%v)", want, env.T, env.Data)
		}
	}
	t.Fatalf("no %s message", want)
	return Envelope{}
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	env := Envelope{T: msgType, Data: data}
	raw, _ := json.Marshal(env)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// dataMap extracts the Data field as map[string]interface{}.
func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// createSession creates a session and returns its ID and control token.
func createSession(t *testing.T, conn *websocket.Conn, sname string) (string, string) {
	t.Helper()
	sendMsg(t, conn, MsgCreate, map[string]string{"sname": sname})
	created := readType(t, conn, MsgCreated)
	d := dataMap(t, created)
	return d["sid"].(string), d["token"].(string)
}

// createAndJoin creates a session then watches it. Returns the session ID
// and control token.
func createAndJoin(t *testing.T, conn *websocket.Conn, sname string) (string, string) {
	t.Helper()
	sid, token := createSession(t, conn, sname)
	sendMsg(t, conn, MsgJoin, map[string]string{"sid": sid})
	joined := readType(t, conn, MsgJoined)
	if dataMap(t, joined)["sid"] != sid {
		t.Fatalf("joined wrong session: %v", joined.Data)
	}
	return sid, token
}

func control(t *testing.T, conn *websocket.Conn, sid, token, action string) map[string]interface{} {
	t.Helper()
	sendMsg(t, conn, MsgControl, map[string]string{"sid": sid, "token": token, "a": action})
	ok := readType(t, conn, MsgControlOK)
	return dataMap(t, ok)
}

// ---------- Session ids ----------

func TestSessionIDIsUUID(t *testing.T) {
	sm := NewSessionManager(DefaultOptions(), nil, nil)
	defer sm.StopAll()
	sess := sm.CreateSession("TestArena", "")
	if !uuidRegex.MatchString(sess.ID) {
		t.Errorf("session ID %q is not a valid UUID v4", sess.ID)
	}
}

// ---------- SPA routing ----------

func TestSPARoutingRoot(t *testing.T) {
	srv, _, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("GET / status = %d, want 200", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("expected Cache-Control: no-cache, got %q", cc)
	}
}

func TestSPARoutingUUIDPath(t *testing.T) {
	srv, _, _, cleanup := startTestServer(t)
	defer cleanup()

	id := uuid.NewString()
	resp, err := http.Get(srv.URL + "/" + id)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("GET /%s status = %d, want 200", id, resp.StatusCode)
	}
	buf := make([]byte, 100)
	n, _ := resp.Body.Read(buf)
	if body := string(buf[:n]); !strings.Contains(body, "<html>") {
		t.Errorf("UUID path should serve index.html, got %q", body)
	}
}

func TestSPARoutingStaticFiles(t *testing.T) {
	srv, _, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/js/main.js")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("GET /js/main.js status = %d, want 200", resp.StatusCode)
	}
}

func TestSPARoutingNonUUIDPath(t *testing.T) {
	srv, _, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/not-a-uuid")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("GET /not-a-uuid status = %d, want 404", resp.StatusCode)
	}
}

func TestSPARoutingWithoutClient(t *testing.T) {
	hub := NewHub(nil, DefaultOptions())
	defer hub.Close()
	srv := httptest.NewServer(SetupRoutes(hub, t.TempDir()))
	defer srv.Close()

	for _, path := range []string{"/", "/" + uuid.NewString()} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != 404 {
			t.Errorf("GET %s without client status = %d, want 404", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("API should work without client, /health status = %d", resp.StatusCode)
	}
}

// ---------- Session check ----------

func TestCheckSessionExists(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	sid, _ := createAndJoin(t, c1, "Arena")

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	sendMsg(t, c2, MsgCheck, map[string]string{"sid": sid})

	checked := readEnvelope(t, c2)
	if checked.T != MsgChecked {
		t.Fatalf("expected checked, got %s", checked.T)
	}
	d := dataMap(t, checked)
	if d["exists"] != true {
		t.Error("expected exists=true")
	}
	if d["name"] != "Arena" {
		t.Errorf("expected name=Arena, got %v", d["name"])
	}
	if d["viewers"].(float64) != 1 {
		t.Errorf("expected 1 viewer, got %v", d["viewers"])
	}
}

func TestCheckSessionNotExists(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	fakeSID := uuid.NewString()
	sendMsg(t, c, MsgCheck, map[string]string{"sid": fakeSID})

	d := dataMap(t, readType(t, c, MsgChecked))
	if d["exists"] != false {
		t.Error("expected exists=false for non-existent session")
	}
	if d["sid"] != fakeSID {
		t.Errorf("expected sid=%s, got %v", fakeSID, d["sid"])
	}
}

// ---------- Watching ----------

func TestJoinViaSessionID(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	sid, _ := createAndJoin(t, c1, "TestBattle")

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	sendMsg(t, c2, MsgJoin, map[string]string{"sid": sid})
	d := dataMap(t, readType(t, c2, MsgJoined))
	if d["name"] != "TestBattle" {
		t.Errorf("expected name TestBattle, got %v", d["name"])
	}
	status := d["status"].(map[string]interface{})
	if status["p"] != true || status["cs"] != true {
		t.Errorf("new arena should be paused and spawnable, got %v", status)
	}
}

func TestJoinNonExistentSession(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, MsgJoin, map[string]string{"sid": uuid.NewString()})
	if env := readEnvelope(t, c); env.T != MsgError {
		t.Fatalf("expected error, got %s", env.T)
	}
}

func TestArenaStateBroadcasts(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sid, token := createAndJoin(t, c, "StateTest")
	control(t, c, sid, token, ActSpawn)

	// the spawn broadcast and the tick loop both deliver state frames
	var st ArenaState
	for i := 0; i < 50; i++ {
		env := readEnvelope(t, c)
		if env.T != MsgState {
			continue
		}
		st = env.Data.(ArenaState)
		if len(st.Circles) == 2 {
			break
		}
	}
	if len(st.Circles) != 2 {
		t.Fatalf("expected 2 circles in state, got %d", len(st.Circles))
	}
	if st.W != 1200 || st.H != 720 {
		t.Errorf("expected 1200x720 arena, got %vx%v", st.W, st.H)
	}
	if len(st.Board) != 2 {
		t.Errorf("expected 2 leaderboard rows, got %d", len(st.Board))
	}
	for _, cs := range st.Circles {
		if cs.Color == "" || cs.R <= 0 {
			t.Errorf("incomplete circle state %+v", cs)
		}
	}
}

// ---------- Control panel ----------

func TestControlRequiresToken(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sid, _ := createAndJoin(t, c, "Locked")

	sendMsg(t, c, MsgControl, map[string]string{"sid": sid, "token": "garbage", "a": ActSpawn})
	env := readType(t, c, MsgError)
	if dataMap(t, env)["msg"] != "not authorized" {
		t.Errorf("expected not authorized, got %v", env.Data)
	}

	// a token for another session does not work either
	_, otherToken := createSession(t, c, "Other")
	sendMsg(t, c, MsgControl, map[string]string{"sid": sid, "token": otherToken, "a": ActSpawn})
	readType(t, c, MsgError)
}

func TestControlSpawnPairAndStart(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sid, token := createAndJoin(t, c, "Panel")

	d := control(t, c, sid, token, ActSpawn)
	status := d["status"].(map[string]interface{})
	if status["a"].(float64) != 2 {
		t.Errorf("first spawn should add a pair, got %v", status["a"])
	}
	if status["p"] != false {
		t.Error("spawn should start the arena")
	}

	d = control(t, c, sid, token, ActPause)
	if d["status"].(map[string]interface{})["p"] != true {
		t.Error("pause should pause")
	}

	control(t, c, sid, token, ActPowerup)
	d = control(t, c, sid, token, ActReset)
	status = d["status"].(map[string]interface{})
	if status["a"].(float64) != 0 || status["pw"].(float64) != 0 {
		t.Errorf("reset should empty the arena, got %v", status)
	}
}

func TestControlUnknownAction(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sid, token := createAndJoin(t, c, "Panel")

	sendMsg(t, c, MsgControl, map[string]string{"sid": sid, "token": token, "a": "explode"})
	readType(t, c, MsgError)
}

func TestCreateWithDisplaySize(t *testing.T) {
	_, wsURL, hub, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sendMsg(t, c, MsgCreate, map[string]interface{}{"sname": "Phone", "w": 400, "h": 700})
	sid := dataMap(t, readType(t, c, MsgCreated))["sid"].(string)

	st := hub.sessions.GetSession(sid).Game.State()
	if st.W != 400 || st.H != 700 {
		t.Errorf("expected 400x700, got %vx%v", st.W, st.H)
	}
}

// ---------- Private sessions ----------

func TestPasswordProtectedSession(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	sendMsg(t, c1, MsgCreate, map[string]string{"sname": "Private", "pw": "hunter2"})
	sid := dataMap(t, readType(t, c1, MsgCreated))["sid"].(string)
	// the creator needs the password too
	sendMsg(t, c1, MsgJoin, map[string]string{"sid": sid, "pw": "hunter2"})
	readType(t, c1, MsgJoined)

	c2 := dialWS(t, wsURL)
	defer c2.Close()

	sendMsg(t, c2, MsgCheck, map[string]string{"sid": sid})
	if dataMap(t, readType(t, c2, MsgChecked))["locked"] != true {
		t.Error("session should report locked")
	}

	sendMsg(t, c2, MsgJoin, map[string]string{"sid": sid, "pw": "wrong"})
	env := readType(t, c2, MsgError)
	if dataMap(t, env)["msg"] != "wrong password" {
		t.Errorf("expected wrong password, got %v", env.Data)
	}

	sendMsg(t, c2, MsgJoin, map[string]string{"sid": sid, "pw": "hunter2"})
	readType(t, c2, MsgJoined)
}

func TestCreateRejectsShortPassword(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sendMsg(t, c, MsgCreate, map[string]string{"sname": "Private", "pw": "abc"})
	readType(t, c, MsgError)
}

// ---------- Session lifecycle ----------

func TestCreateAndLeaveSession(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sid, _ := createAndJoin(t, c, "TempBattle")

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	sendMsg(t, c2, MsgCheck, map[string]string{"sid": sid})
	if dataMap(t, readType(t, c2, MsgChecked))["exists"] != true {
		t.Fatal("session should exist")
	}

	sendMsg(t, c, MsgLeave, nil)
	time.Sleep(SessionIdleTimeout + 100*time.Millisecond)

	sendMsg(t, c2, MsgCheck, map[string]string{"sid": sid})
	if dataMap(t, readType(t, c2, MsgChecked))["exists"] != false {
		t.Error("session should be cleaned up after last viewer leaves")
	}
}

func TestListSessions(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, MsgList, nil)
	listMsg := readEnvelope(t, c)
	if listMsg.T != MsgSessions {
		t.Fatalf("expected sessions, got %s", listMsg.T)
	}
	raw, _ := json.Marshal(listMsg.Data)
	var sessions []SessionInfo
	json.Unmarshal(raw, &sessions)
	if len(sessions) != 0 {
		t.Errorf("expected 0 sessions, got %d", len(sessions))
	}

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	createAndJoin(t, c2, "Arena1")

	sendMsg(t, c, MsgList, nil)
	raw2, _ := json.Marshal(readType(t, c, MsgSessions).Data)
	var sessions2 []SessionInfo
	json.Unmarshal(raw2, &sessions2)
	if len(sessions2) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions2))
	}
	if sessions2[0].Name != "Arena1" || sessions2[0].Viewers != 1 {
		t.Errorf("unexpected session info %+v", sessions2[0])
	}
}

func TestDefaultSessionName(t *testing.T) {
	_, wsURL, hub, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sid, _ := createSession(t, c, "   ")
	if name := hub.sessions.GetSession(sid).Name; name != defaultSessionName {
		t.Errorf("expected %q, got %q", defaultSessionName, name)
	}
}

func TestLeaveWithoutJoining(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, MsgLeave, nil)

	sendMsg(t, c, MsgList, nil)
	if env := readEnvelope(t, c); env.T != MsgSessions {
		t.Fatalf("expected sessions, got %s", env.T)
	}
}

func TestDisconnectCleansUpSession(t *testing.T) {
	_, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL)
	sid, _ := createAndJoin(t, c1, "TempArena")
	c1.Close()

	time.Sleep(SessionIdleTimeout + 100*time.Millisecond)

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	sendMsg(t, c2, MsgCheck, map[string]string{"sid": sid})
	if dataMap(t, readType(t, c2, MsgChecked))["exists"] != false {
		t.Error("session should be cleaned up after disconnect")
	}
}

// ---------- HTTP API ----------

func TestQRCodeEndpoint(t *testing.T) {
	srv, wsURL, _, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sid, _ := createAndJoin(t, c, "QR")

	resp, err := http.Get(srv.URL + "/qr/" + sid)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("GET /qr status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != qrSize {
		t.Errorf("expected %dpx QR, got %d", qrSize, img.Bounds().Dx())
	}

	missing, err := http.Get(srv.URL + "/qr/" + uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != 404 {
		t.Errorf("unknown session QR status = %d, want 404", missing.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body)
	}
}

func TestLeaderboardEndpointRecordsFinishedMatch(t *testing.T) {
	srv, wsURL, hub, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sid, token := createAndJoin(t, c, "Final")
	control(t, c, sid, token, ActSpawn)

	winner := forceWin(t, hub.sessions.GetSession(sid).Game)
	over := readType(t, c, MsgOver)
	if int(dataMap(t, over)["id"].(float64)) != winner {
		t.Errorf("expected winner %d, got %v", winner, over.Data)
	}

	var entries []LeaderboardEntry
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(srv.URL + "/api/leaderboard")
		if err != nil {
			t.Fatal(err)
		}
		entries = nil
		json.NewDecoder(resp.Body).Decode(&entries)
		resp.Body.Close()
		if len(entries) > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 leaderboard rows, got %d", len(entries))
	}
	if entries[0].CircleID != winner || !entries[0].Winner || entries[0].Rank != 1 {
		t.Errorf("winner should top the leaderboard, got %+v", entries[0])
	}

	resp, err := http.Get(srv.URL + "/api/match/" + strconv.FormatInt(entries[0].MatchID, 10))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("GET /api/match status = %d, want 200", resp.StatusCode)
	}
	var circles []MatchCircleRow
	json.NewDecoder(resp.Body).Decode(&circles)
	if len(circles) != 2 {
		t.Fatalf("expected 2 match circles, got %d", len(circles))
	}
	if circles[0].CircleID != winner || !circles[0].Winner || !circles[0].Alive {
		t.Errorf("winner should come first, got %+v", circles[0])
	}
	if circles[1].EliminatedBy != winner {
		t.Errorf("loser should be credited to the winner, got %+v", circles[1])
	}
}

func TestMatchEndpointErrors(t *testing.T) {
	srv, _, _, cleanup := startTestServer(t)
	defer cleanup()

	for path, want := range map[string]int{
		"/api/match/abc": http.StatusBadRequest,
		"/api/match/0":   http.StatusBadRequest,
		"/api/match/999": http.StatusNotFound,
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("GET %s status = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func TestSessionEventsEndpoint(t *testing.T) {
	srv, wsURL, hub, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sid, _ := createAndJoin(t, c, "Events")

	// flush the buffered session_start
	hub.events.Stop()

	resp, err := http.Get(srv.URL + "/api/events/" + sid)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var evts []ArenaEvent
	json.NewDecoder(resp.Body).Decode(&evts)
	if len(evts) != 1 || evts[0].Type != EvtSessionStart || evts[0].SessionID != sid {
		t.Errorf("expected one session_start event, got %+v", evts)
	}

	missing, err := http.Get(srv.URL + "/api/events/not-a-session")
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != 404 {
		t.Errorf("invalid session id status = %d, want 404", missing.StatusCode)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, wsURL, hub, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	createAndJoin(t, c, "Stats")

	resp, err := http.Get(srv.URL + "/api/stats?days=1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	if body["sessions"].(float64) != 1 {
		t.Errorf("expected 1 session, got %v", body["sessions"])
	}
	if body["days"].(float64) != 1 {
		t.Errorf("expected days=1, got %v", body["days"])
	}
	if _, ok := body["events"].(map[string]interface{}); !ok {
		t.Errorf("expected events map, got %v", body["events"])
	}
	if hub.TotalConns() != 1 {
		t.Errorf("expected 1 tracked connection, got %d", hub.TotalConns())
	}
}

// ---------- Hub ----------

func TestHubClientCount(t *testing.T) {
	hub := NewHub(nil, DefaultOptions())
	go hub.Run()
	defer hub.Close()

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHubConnectionLimits(t *testing.T) {
	hub := NewHub(nil, DefaultOptions())
	defer hub.Close()

	for i := 0; i < maxConnsPerIP; i++ {
		if !hub.CanAccept("1.2.3.4") {
			t.Fatalf("connection %d should be accepted", i)
		}
		hub.TrackConnect("1.2.3.4")
	}
	if hub.CanAccept("1.2.3.4") {
		t.Error("per-IP limit should apply")
	}
	if !hub.CanAccept("5.6.7.8") {
		t.Error("other IPs should be unaffected")
	}
	hub.TrackDisconnect("1.2.3.4")
	if !hub.CanAccept("1.2.3.4") {
		t.Error("disconnect should free a slot")
	}
}

// ---------- Session manager ----------

func TestSessionManagerCreateAndGet(t *testing.T) {
	sm := NewSessionManager(DefaultOptions(), nil, nil)
	defer sm.StopAll()
	sess := sm.CreateSession("Battle", "")

	got := sm.GetSession(sess.ID)
	if got == nil {
		t.Fatal("expected to find created session")
	}
	if got.Name != "Battle" || got.Locked() {
		t.Errorf("unexpected session %+v", got)
	}
}

func TestSessionManagerGetNonExistent(t *testing.T) {
	sm := NewSessionManager(DefaultOptions(), nil, nil)
	if sm.GetSession("nonexistent") != nil {
		t.Error("expected nil for non-existent session")
	}
}

func TestSessionManagerListSessions(t *testing.T) {
	sm := NewSessionManager(DefaultOptions(), nil, nil)
	defer sm.StopAll()
	sm.CreateSession("Arena1", "")
	sm.CreateSession("Arena2", "")

	if list := sm.ListSessions(); len(list) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(list))
	}
}

func TestSessionManagerIdleCleanup(t *testing.T) {
	prevIdleTimeout := SessionIdleTimeout
	SessionIdleTimeout = 20 * time.Millisecond
	defer func() {
		SessionIdleTimeout = prevIdleTimeout
	}()

	sm := NewSessionManager(DefaultOptions(), nil, nil)
	sess := sm.CreateSession("TempArena", "")
	viewer := &mockBroadcaster{}
	sess.Game.AddViewer(viewer)
	sm.MarkActive(sess.ID)

	time.Sleep(SessionIdleTimeout + 30*time.Millisecond)
	if sm.GetSession(sess.ID) == nil {
		t.Fatal("watched session should survive")
	}

	sm.RemoveViewer(sess.ID, viewer)
	time.Sleep(SessionIdleTimeout + 30*time.Millisecond)
	if sm.GetSession(sess.ID) != nil {
		t.Error("expected session to be removed after last viewer leaves")
	}
}
