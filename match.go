package main

import (
	"fmt"
	"sync"
	"time"
)

const (
	TickRate     = 60 // physics ticks per second
	TickDuration = time.Second / TickRate

	WinningScore        = 10
	GoalMinInterval     = 2 * time.Second
	CooldownResumeDelay = 3 * time.Second
)

// MatchPhase represents the lifecycle of a match
type MatchPhase int

const (
	PhaseWaitingForPlayers MatchPhase = 0
	PhaseWaitingForReady   MatchPhase = 1
	PhasePlaying           MatchPhase = 2
	PhaseGoalCooldown      MatchPhase = 3
	PhaseGameOver          MatchPhase = 4
)

// Broadcaster interface for sending messages to clients
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// GameState is the authoritative per-match simulation state. Velocities are
// in units per reference frame (1/60 s); positions in canvas units.
type GameState struct {
	PuckPos      Vec2    `json:"puckPos"`
	PuckVelocity Vec2    `json:"puckVelocity"`
	Player1Pos   Vec2    `json:"player1Pos"`
	Player2Pos   Vec2    `json:"player2Pos"`
	Player1Score int     `json:"player1Score"`
	Player2Score int     `json:"player2Score"`
	CanvasWidth  float64 `json:"canvasWidth"`
	CanvasHeight float64 `json:"canvasHeight"`
	IsPlaying    bool    `json:"isPlaying"`
	GameOver     bool    `json:"gameOver"`
	Winner       int     `json:"winner"` // 0 = none
}

func (gs *GameState) playerPos(slot int) Vec2 {
	if slot == 1 {
		return gs.Player1Pos
	}
	return gs.Player2Pos
}

func (gs *GameState) setPlayerPos(slot int, pos Vec2) {
	if slot == 1 {
		gs.Player1Pos = pos
	} else {
		gs.Player2Pos = pos
	}
}

// Match holds one two-player session: its players, authoritative state and
// tick schedule. The mutex serializes the tick body and every inbound
// message handler touching this match; matches never share state.
type Match struct {
	ID string

	mu      sync.Mutex
	store   *MatchStore
	players [2]*Player // indexed by slot-1
	state   GameState
	phase   MatchPhase

	cooldown bool
	lastGoal time.Time
	lastTick time.Time
	lastSync time.Time

	puckHist History
	// short-lived collision identifiers, newest last, capped at historyCap
	recentHits []string

	// gen invalidates deferred tasks (goal resume, empty-match deletion)
	// scheduled against a state that has since changed
	gen uint64

	running bool
	stop    chan struct{}
}

// NewMatch creates an empty match owned by the given store
func NewMatch(id string, store *MatchStore) *Match {
	return &Match{ID: id, store: store, phase: PhaseWaitingForPlayers}
}

// Join adds a player to the first free slot. Returns the assigned slot and
// the player count, or a capacity error when the match is full.
func (m *Match) Join(client Broadcaster) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot := 0
	for i, p := range m.players {
		if p == nil {
			slot = i + 1
			break
		}
	}
	if slot == 0 {
		return 0, 0, fmt.Errorf("match %s is full", m.ID)
	}

	m.players[slot-1] = NewPlayer(client, slot)
	m.gen++ // cancels any pending empty-match deletion
	count := m.playerCount()

	m.broadcastExcept(slot, Envelope{T: MsgPlayerJoined, Data: PlayerJoinedMsg{
		PlayerNumber: slot,
		PlayersCount: count,
	}})
	if count == 2 {
		m.phase = PhaseWaitingForReady
		m.broadcast(Envelope{T: MsgMatchReady})
	}
	return slot, count, nil
}

// Ready records a readiness signal with the player's board-size report. The
// first report initializes the canvas and resets positions; once both
// players are ready the match starts playing.
func (m *Match) Ready(slot int, size CanvasSize) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.player(slot)
	if p == nil || size.Width <= 0 || size.Height <= 0 {
		return
	}
	p.Ready = true

	if m.state.CanvasWidth == 0 {
		m.state.CanvasWidth = size.Width
		m.state.CanvasHeight = size.Height
		m.resetPositions()
	}

	if m.playerCount() == 2 && m.players[0].Ready && m.players[1].Ready && !m.state.GameOver {
		m.startPlaying()
	}
}

// startPlaying transitions to Playing and starts the tick loop. Caller holds the lock.
func (m *Match) startPlaying() {
	m.phase = PhasePlaying
	m.state.IsPlaying = true
	m.lastTick = time.Now()
	m.startLoop()
	st := m.state
	m.broadcast(Envelope{T: MsgGameStart, Data: GameStateMsg{GameState: &st}})
	Log.Infow("match started", "match", m.ID)
}

// HandleGoal validates and applies a goal for the given scorer. Duplicate
// signals inside the minimum goal interval or during cooldown are discarded.
// Returns whether the goal was accepted.
func (m *Match) HandleGoal(scorer int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scoreGoal(scorer, time.Now())
}

// scoreGoal is the internal goal transition. Caller holds the lock.
func (m *Match) scoreGoal(scorer int, now time.Time) bool {
	if scorer != 1 && scorer != 2 {
		return false
	}
	if !m.state.IsPlaying || m.state.GameOver || m.cooldown {
		return false
	}
	if !m.lastGoal.IsZero() && now.Sub(m.lastGoal) < GoalMinInterval {
		return false
	}

	m.lastGoal = now
	if scorer == 1 {
		m.state.Player1Score++
	} else {
		m.state.Player2Score++
	}

	m.resetPositions()

	if m.state.Player1Score >= WinningScore || m.state.Player2Score >= WinningScore {
		m.state.GameOver = true
		m.state.Winner = scorer
		m.state.IsPlaying = false
		m.phase = PhaseGameOver
		m.stopLoop()
		m.broadcast(Envelope{T: MsgGameOver, Data: GameOverMsg{
			Winner:       scorer,
			Player1Score: m.state.Player1Score,
			Player2Score: m.state.Player2Score,
		}})
		Log.Infow("game over", "match", m.ID, "winner", scorer)
		return true
	}

	m.cooldown = true
	m.phase = PhaseGoalCooldown
	st := m.state
	m.broadcast(Envelope{T: MsgScoreUpdate, Data: ScoreUpdateMsg{
		Player1Score: m.state.Player1Score,
		Player2Score: m.state.Player2Score,
		GameState:    &st,
		Scorer:       scorer,
	}})

	m.gen++
	gen := m.gen
	time.AfterFunc(CooldownResumeDelay, func() { m.resumeFromCooldown(gen) })
	return true
}

// resumeFromCooldown clears the goal cooldown and resumes play. The
// generation guard makes it a no-op if a reset, disconnect or rejoin
// happened while the timer was pending.
func (m *Match) resumeFromCooldown(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || !m.cooldown || m.state.GameOver {
		return
	}
	m.cooldown = false
	m.state.PuckPos = Vec2{m.state.CanvasWidth / 2, m.state.CanvasHeight / 2}
	m.state.PuckVelocity = Vec2{}
	m.puckHist.Reset()
	m.phase = PhasePlaying
	m.lastTick = time.Now()
	st := m.state
	m.broadcast(Envelope{T: MsgResumeGame, Data: GameStateMsg{GameState: &st}})
}

// Reset forces positions and scores back to initial values regardless of
// current state, with no win check.
func (m *Match) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++ // invalidate any pending cooldown resume
	m.cooldown = false
	m.state.Player1Score = 0
	m.state.Player2Score = 0
	m.state.GameOver = false
	m.state.Winner = 0
	m.lastGoal = time.Time{}
	m.resetPositions()

	playing := m.playerCount() == 2 &&
		m.players[0].Ready && m.players[1].Ready &&
		m.state.CanvasWidth > 0
	m.state.IsPlaying = playing
	if playing {
		m.phase = PhasePlaying
		m.lastTick = time.Now()
		m.startLoop()
	} else if m.playerCount() < 2 {
		m.phase = PhaseWaitingForPlayers
	} else {
		m.phase = PhaseWaitingForReady
	}

	st := m.state
	m.broadcast(Envelope{T: MsgGameReset, Data: GameStateMsg{GameState: &st}})
	Log.Infow("match reset", "match", m.ID)
}

// Leave removes the player in the given slot, halts simulation and notifies
// the remaining player. An empty match is scheduled for deletion after the
// grace window.
func (m *Match) Leave(slot int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.player(slot) == nil {
		return
	}
	m.players[slot-1] = nil
	m.stopLoop()
	m.state.IsPlaying = false
	if !m.state.GameOver {
		m.phase = PhaseWaitingForPlayers
	}

	count := m.playerCount()
	m.broadcast(Envelope{T: MsgPlayerLeft, Data: PlayerLeftMsg{
		PlayerNumber: slot,
		PlayersCount: count,
	}})

	if count == 0 && m.store != nil {
		m.gen++
		m.store.scheduleCleanup(m, m.gen)
	}
}

// SetLatency stores a measured round-trip time for the given slot
func (m *Match) SetLatency(slot int, rtt time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.player(slot); p != nil {
		p.Latency = rtt
	}
}

// resetPositions recenters the puck and places paddles on their half marks.
// Caller holds the lock; requires an initialized canvas.
func (m *Match) resetPositions() {
	w, h := m.state.CanvasWidth, m.state.CanvasHeight
	m.state.PuckPos = Vec2{w / 2, h / 2}
	m.state.PuckVelocity = Vec2{}
	m.state.Player1Pos = Vec2{w / 2, h * 0.75}
	m.state.Player2Pos = Vec2{w / 2, h * 0.25}
	m.puckHist.Reset()
	m.recentHits = m.recentHits[:0]
}

func (m *Match) player(slot int) *Player {
	if slot < 1 || slot > 2 {
		return nil
	}
	return m.players[slot-1]
}

func (m *Match) playerCount() int {
	n := 0
	for _, p := range m.players {
		if p != nil {
			n++
		}
	}
	return n
}

// PlayerCount returns the number of joined players
func (m *Match) PlayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playerCount()
}

// State returns a copy of the current game state
func (m *Match) State() GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// startLoop launches the tick goroutine if not already running. Caller holds the lock.
func (m *Match) startLoop() {
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	go m.run(m.stop)
}

// stopLoop is idempotent. The tick body re-checks running under the lock, so
// a tick racing the stop cannot mutate state afterwards. Caller holds the lock.
func (m *Match) stopLoop() {
	if !m.running {
		return
	}
	m.running = false
	close(m.stop)
}

// run drives the fixed-cadence physics and broadcast loop
func (m *Match) run(stop chan struct{}) {
	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.tickOnce(time.Now())
		case <-stop:
			return
		}
	}
}

// tickOnce advances physics by one tick and broadcasts the result
func (m *Match) tickOnce(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	collided := m.stepPhysics(now)
	m.broadcastTick(now, collided)
}

// broadcast sends an envelope to every connected player. Caller holds the lock.
func (m *Match) broadcast(env Envelope) {
	for _, p := range m.players {
		if p != nil && p.Client != nil {
			p.Client.SendJSON(env)
		}
	}
}

// broadcastExcept sends an envelope to everyone but the given slot
func (m *Match) broadcastExcept(slot int, env Envelope) {
	for _, p := range m.players {
		if p != nil && p.Slot != slot && p.Client != nil {
			p.Client.SendJSON(env)
		}
	}
}
