package main

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// PuckLookahead forward-projects the broadcast puck position to mask
	// one-way network delay.
	PuckLookahead = 0.05 // seconds

	// FullSyncInterval bounds state drift under packet loss: the
	// authoritative puck state is resent at least this often, and
	// immediately after any collision.
	FullSyncInterval = 500 * time.Millisecond

	// PuckStaleBound discards client puck corrections older than this
	PuckStaleBound = 200 * time.Millisecond

	// ClientBlend is the weight of a client puck correction; the server
	// keeps the remainder, bounding any single client's influence.
	ClientBlend = 0.3
)

// broadcastTick sends the compact per-tick update to both players as a
// msgpack binary frame, then decides whether a full sync is due. Caller
// holds the lock.
func (m *Match) broadcastTick(now time.Time, collided bool) {
	if !m.state.IsPlaying {
		return
	}

	upd := GameUpdateMsg{
		P:         m.state.PuckPos.Add(m.state.PuckVelocity.Scale(StepRate * PuckLookahead)),
		V:         m.state.PuckVelocity,
		T:         now.UnixMilli(),
		Collision: collided,
	}
	if data, err := msgpack.Marshal(upd); err == nil {
		for _, p := range m.players {
			if p != nil && p.Client != nil {
				p.Client.SendBinary(data)
			}
		}
	}

	if collided || now.Sub(m.lastSync) > FullSyncInterval {
		m.sendPuckSync(now)
	}
}

// sendPuckSync broadcasts the authoritative puck state. Caller holds the lock.
func (m *Match) sendPuckSync(now time.Time) {
	m.lastSync = now
	m.broadcast(Envelope{T: MsgPuckSync, Data: PuckSyncMsg{
		PuckPos:      m.state.PuckPos,
		PuckVelocity: m.state.PuckVelocity,
		Timestamp:    now.UnixMilli(),
	}})
}

// HandleMove processes a reported paddle position: spatial constraints are
// applied before anything is stored, the adaptive throttle filters the
// report, the constrained position is relayed to the opponent, and a fresh
// puck-contact check runs outside the tick cadence so fast strikes are not
// missed between fixed ticks.
func (m *Match) HandleMove(slot int, pos Vec2, ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.player(slot)
	if p == nil || m.state.CanvasWidth == 0 || !m.state.IsPlaying || m.state.GameOver {
		return
	}

	now := time.Now()
	if !p.AllowMove(now) {
		return
	}

	constrained := m.constrainMove(slot, pos)
	m.state.setPlayerPos(slot, constrained)
	p.RecordMove(constrained, now)

	vel := Vec2{}
	if v, ok := p.Velocity(); ok {
		vel = v.Scale(1 / StepRate)
	}
	m.broadcastExcept(slot, Envelope{T: MsgOpponentMove, Data: OpponentMoveMsg{
		PlayerNumber: slot,
		Position:     constrained,
		Timestamp:    ts,
		Velocity:     vel,
	}})

	// Off-tick contact check with the freshly constrained position
	if !m.cooldown &&
		Distance(m.state.PuckPos, constrained) < PuckRadius+PaddleRadius {
		if m.collidePlayer(slot, m.state.PuckPos, now) {
			m.recordPuck(now)
			m.sendPuckSync(now)
		}
	}
}

// constrainMove clamps a reported position to the board and to the player's
// assigned half, with the paddle radius as margin. Slot 1 owns the bottom
// half, slot 2 the top.
func (m *Match) constrainMove(slot int, pos Vec2) Vec2 {
	w, h := m.state.CanvasWidth, m.state.CanvasHeight
	x := Clamp(pos.X, PaddleRadius, w-PaddleRadius)
	var y float64
	if slot == 1 {
		y = Clamp(pos.Y, h/2+PaddleRadius, h-PaddleRadius)
	} else {
		y = Clamp(pos.Y, PaddleRadius, h/2-PaddleRadius)
	}
	return Vec2{x, y}
}

// HandlePuckUpdate blends a client-reported puck state into the
// authoritative one. Reports older than the staleness bound are discarded;
// accepted corrections are blended per axis rather than overwriting, then
// relayed to the other client.
func (m *Match) HandlePuckUpdate(slot int, upd PuckUpdateMsg) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.player(slot) == nil || !m.state.IsPlaying || m.state.GameOver || m.cooldown {
		return
	}
	now := time.Now()
	age := now.Sub(time.UnixMilli(upd.Timestamp))
	if age < 0 || age > PuckStaleBound {
		return
	}

	st := &m.state
	st.PuckPos = Vec2{
		X: st.PuckPos.X*(1-ClientBlend) + upd.PuckPos.X*ClientBlend,
		Y: st.PuckPos.Y*(1-ClientBlend) + upd.PuckPos.Y*ClientBlend,
	}
	st.PuckVelocity = Vec2{
		X: st.PuckVelocity.X*(1-ClientBlend) + upd.PuckVelocity.X*ClientBlend,
		Y: st.PuckVelocity.Y*(1-ClientBlend) + upd.PuckVelocity.Y*ClientBlend,
	}
	st.PuckPos = Vec2{
		X: Clamp(st.PuckPos.X, PuckRadius, st.CanvasWidth-PuckRadius),
		Y: Clamp(st.PuckPos.Y, PuckRadius, st.CanvasHeight-PuckRadius),
	}

	m.broadcastExcept(slot, Envelope{T: MsgPuckSync, Data: PuckSyncMsg{
		PuckPos:      st.PuckPos,
		PuckVelocity: st.PuckVelocity,
		Timestamp:    now.UnixMilli(),
	}})
}
