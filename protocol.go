package main

import "encoding/json"

// Client -> Server message types
const (
	MsgJoinMatch    = "joinMatch"
	MsgPlayerReady  = "playerReady"
	MsgPlayerMove   = "playerMove"
	MsgPuckUpdate   = "puckUpdate"
	MsgRequestReset = "requestReset"
	MsgGoalScored   = "goalScored" // client-reported, validated server-side
	MsgPong         = "pong"       // latency probe reply
)

// Server -> Client message types
const (
	MsgJoined        = "joined" // join ack
	MsgPlayerJoined  = "playerJoined"
	MsgMatchReady    = "matchReady"
	MsgGameStart     = "gameStart"
	MsgGameUpdate    = "gameUpdate" // per-tick, msgpack binary frame
	MsgPuckSync      = "puckSync"   // periodic/forced authoritative resync
	MsgOpponentMove  = "opponentMove"
	MsgScoreUpdate   = "scoreUpdate"
	MsgGameOver      = "gameOver"
	MsgResumeGame    = "resumeGame"
	MsgGameReset     = "gameReset"
	MsgPlayerLeft    = "playerLeft"
	MsgPing          = "ping" // latency probe
	MsgLatencyUpdate = "latencyUpdate"
	MsgError         = "error"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages — json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// CanvasSize is the board dimensions reported by a client
type CanvasSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// JoinMatchMsg requests joining (or implicitly creating) a match
type JoinMatchMsg struct {
	MatchID string `json:"matchId"`
}

// JoinedMsg acks a join request
type JoinedMsg struct {
	Success      bool   `json:"success"`
	PlayerNumber int    `json:"playerNumber,omitempty"`
	PlayersCount int    `json:"playersCount,omitempty"`
	Error        string `json:"error,omitempty"`
}

// PlayerJoinedMsg notifies the match that a player arrived
type PlayerJoinedMsg struct {
	PlayerNumber int `json:"playerNumber"`
	PlayersCount int `json:"playersCount"`
}

// PlayerReadyMsg signals readiness and reports the board size
type PlayerReadyMsg struct {
	CanvasSize CanvasSize `json:"canvasSize"`
}

// PlayerMoveMsg reports a paddle position. Timestamp is client epoch millis.
type PlayerMoveMsg struct {
	Position  Vec2  `json:"position"`
	Timestamp int64 `json:"timestamp"`
}

// PuckUpdateMsg is a client-assisted puck correction
type PuckUpdateMsg struct {
	PuckPos      Vec2  `json:"puckPos"`
	PuckVelocity Vec2  `json:"puckVelocity"`
	Timestamp    int64 `json:"timestamp"`
}

// GoalScoredMsg is a client-reported goal claim
type GoalScoredMsg struct {
	Scorer int `json:"scorer"`
}

// GameUpdateMsg is the compact per-tick broadcast. P is extrapolated ahead by
// the network lookahead; V is the raw velocity in units per frame.
type GameUpdateMsg struct {
	P         Vec2  `json:"p" msgpack:"p"`
	V         Vec2  `json:"v" msgpack:"v"`
	T         int64 `json:"t" msgpack:"t"`
	Collision bool  `json:"c" msgpack:"c"`
}

// PuckSyncMsg carries the authoritative puck state
type PuckSyncMsg struct {
	PuckPos      Vec2  `json:"puckPos"`
	PuckVelocity Vec2  `json:"puckVelocity"`
	Timestamp    int64 `json:"timestamp"`
}

// OpponentMoveMsg relays a constrained paddle position to the other player
type OpponentMoveMsg struct {
	PlayerNumber int   `json:"playerNumber"`
	Position     Vec2  `json:"position"`
	Timestamp    int64 `json:"timestamp"`
	Velocity     Vec2  `json:"velocity"`
}

// ScoreUpdateMsg is broadcast after an accepted goal
type ScoreUpdateMsg struct {
	Player1Score int        `json:"player1Score"`
	Player2Score int        `json:"player2Score"`
	GameState    *GameState `json:"gameState"`
	Scorer       int        `json:"scorer"`
}

// GameOverMsg announces the terminal state
type GameOverMsg struct {
	Winner       int `json:"winner"`
	Player1Score int `json:"player1Score"`
	Player2Score int `json:"player2Score"`
}

// GameStateMsg wraps a full state snapshot (gameStart, resumeGame, gameReset)
type GameStateMsg struct {
	GameState *GameState `json:"gameState"`
}

// PlayerLeftMsg notifies the remaining player of a disconnect
type PlayerLeftMsg struct {
	PlayerNumber int `json:"playerNumber"`
	PlayersCount int `json:"playersCount"`
}

// LatencyUpdateMsg reports measured round-trip time in millis (informational)
type LatencyUpdateMsg struct {
	Latency int64 `json:"latency"`
}

// ErrorMsg sends an error to the client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// MatchInfo is used in the /matches listing
type MatchInfo struct {
	ID      string `json:"id"`
	Players int    `json:"players"`
	Playing bool   `json:"playing"`
}

// ServerStats is the /stats payload
type ServerStats struct {
	Clients     int `json:"clients"`
	Connections int `json:"connections"`
	Matches     int `json:"matches"`
}
