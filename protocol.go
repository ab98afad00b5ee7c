package main

import "encoding/json"

// Client -> Server message types
const (
	MsgList    = "list"    // list sessions
	MsgCreate  = "create"  // create session
	MsgJoin    = "join"    // watch a session
	MsgCheck   = "check"   // check if session exists
	MsgLeave   = "leave"   // stop watching
	MsgControl = "control" // control-panel action, needs the session token
)

// Server -> Client message types
const (
	MsgSessions  = "sessions"
	MsgCreated   = "created" // session created, carries the control token
	MsgJoined    = "joined"
	MsgChecked   = "checked"
	MsgControlOK = "control_ok"
	MsgState     = "state" // binary msgpack ArenaState
	MsgElim      = "elim"
	MsgPickup    = "pickup"
	MsgClash     = "clash" // two powered circles cancelled out
	MsgOver      = "over"
	MsgError     = "error"
)

// Control actions
const (
	ActSpawn   = "spawn"
	ActPowerup = "powerup"
	ActStart   = "start"
	ActPause   = "pause"
	ActToggle  = "toggle"
	ActReset   = "reset"
	ActResize  = "resize"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// CreateMsg asks for a new arena. Width is the creator's display width and
// picks the circle radii; Password makes the session private.
type CreateMsg struct {
	SessionName string  `json:"sname"`
	Password    string  `json:"pw,omitempty"`
	Width       float64 `json:"w,omitempty"`
	Height      float64 `json:"h,omitempty"`
}

// CreatedMsg answers a create
type CreatedMsg struct {
	SID   string `json:"sid"`
	Token string `json:"token"`
}

// JoinMsg is sent to start watching a session
type JoinMsg struct {
	SessionID string `json:"sid"`
	Password  string `json:"pw,omitempty"`
}

// JoinedMsg confirms a join
type JoinedMsg struct {
	SID    string      `json:"sid"`
	Name   string      `json:"name"`
	Status StatusState `json:"status"`
}

// CheckMsg is sent by client to check if a session exists
type CheckMsg struct {
	SID string `json:"sid"`
}

// CheckedMsg is the response to a session check
type CheckedMsg struct {
	SID     string `json:"sid"`
	Exists  bool   `json:"exists"`
	Name    string `json:"name,omitempty"`
	Viewers int    `json:"viewers,omitempty"`
	Locked  bool   `json:"locked,omitempty"`
}

// ControlMsg drives an arena from a control panel
type ControlMsg struct {
	SID    string  `json:"sid"`
	Token  string  `json:"token"`
	Action string  `json:"a"`
	W      float64 `json:"w,omitempty"` // resize only
	H      float64 `json:"h,omitempty"`
}

// ControlOKMsg acknowledges a control action
type ControlOKMsg struct {
	Action string      `json:"a"`
	Status StatusState `json:"status"`
}

// SessionInfo is used in the session list
type SessionInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Viewers int    `json:"viewers"`
	Circles int    `json:"circles"`
	Locked  bool   `json:"locked"`
	Over    bool   `json:"over"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// ElimMsg is broadcast when a powered circle eliminates another
type ElimMsg struct {
	VictimID int `json:"vid"`
	KillerID int `json:"kid"`
}

// PickupMsg is broadcast when a circle collects a powerup
type PickupMsg struct {
	ID int `json:"id"`
}

// ClashMsg is broadcast when two powered circles touch
type ClashMsg struct {
	A int `json:"a"`
	B int `json:"b"`
}

// OverMsg announces the winner
type OverMsg struct {
	WinnerID int    `json:"id"`
	Color    string `json:"color"`
	Score    int    `json:"score"`
}

// StatusState is the control-panel view of an arena
type StatusState struct {
	Active          int  `msgpack:"a" json:"a"`
	Total           int  `msgpack:"t" json:"t"`
	Powerups        int  `msgpack:"pw" json:"pw"`
	Paused          bool `msgpack:"p" json:"p"`
	GameOver        bool `msgpack:"o" json:"o"`
	CanSpawn        bool `msgpack:"cs" json:"cs"`
	CanSpawnPowerup bool `msgpack:"cp" json:"cp"`
}

// TrailPoint is one particle of a powered circle's trail
type TrailPoint struct {
	X    float64 `msgpack:"x" json:"x"`
	Y    float64 `msgpack:"y" json:"y"`
	Life float64 `msgpack:"l" json:"l"`
}

// CircleState is broadcast per active circle
type CircleState struct {
	ID      int          `msgpack:"id" json:"id"`
	X       float64      `msgpack:"x" json:"x"`
	Y       float64      `msgpack:"y" json:"y"`
	R       float64      `msgpack:"r" json:"r"`
	Color   string       `msgpack:"col" json:"col"`
	Powered bool         `msgpack:"pu,omitempty" json:"pu,omitempty"`
	Score   int          `msgpack:"sc" json:"sc"`
	Trail   []TrailPoint `msgpack:"tr,omitempty" json:"tr,omitempty"`
}

// PowerupState is broadcast per waiting powerup
type PowerupState struct {
	X float64 `msgpack:"x" json:"x"`
	Y float64 `msgpack:"y" json:"y"`
	R float64 `msgpack:"r" json:"r"`
}

// StandingState is one leaderboard row
type StandingState struct {
	ID           int    `msgpack:"id" json:"id"`
	Color        string `msgpack:"col" json:"col"`
	Score        int    `msgpack:"sc" json:"sc"`
	Alive        bool   `msgpack:"a" json:"a"`
	EliminatedBy int    `msgpack:"by,omitempty" json:"by,omitempty"`
	Winner       bool   `msgpack:"w,omitempty" json:"w,omitempty"`
}

// ArenaState is the full state broadcast
type ArenaState struct {
	Circles  []CircleState   `msgpack:"c" json:"c"`
	Powerups []PowerupState  `msgpack:"pw" json:"pw"`
	Board    []StandingState `msgpack:"b" json:"b"`
	W        float64         `msgpack:"w" json:"w"`
	H        float64         `msgpack:"h" json:"h"`
	Status   StatusState     `msgpack:"s" json:"s"`
	Winner   int             `msgpack:"win,omitempty" json:"win,omitempty"`
	Tick     uint64          `msgpack:"tick" json:"tick"`
}
