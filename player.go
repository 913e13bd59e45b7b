package main

import "time"

const (
	PaddleRadius = 25.0

	// Adaptive move throttle. The accepted interval between position
	// reports shrinks while the paddle is moving fast and grows toward the
	// idle ceiling when it is slow, trading bandwidth for responsiveness.
	MoveIntervalDefault = 16 * time.Millisecond
	MoveIntervalMin     = 4 * time.Millisecond
	MoveIntervalMax     = 33 * time.Millisecond
	FastMoveSpeed       = 300.0 // units/s, full throttle relief above this
	SlowMoveSpeed       = 40.0  // units/s, idle ceiling below this
)

// Player is one connected participant of a match. Slot 1 defends the bottom
// half, slot 2 the top half. All fields are guarded by the owning match's
// mutex; the throttle and move-window state lives here rather than in
// connection handler closures so it can be unit-tested without a transport.
type Player struct {
	Client Broadcaster
	Slot   int // 1 or 2, first-come
	Ready  bool

	Latency time.Duration // measured RTT, informational only

	moves    History // recent constrained positions, velocity source
	lastMove time.Time
}

// NewPlayer creates a player bound to a connection
func NewPlayer(client Broadcaster, slot int) *Player {
	return &Player{Client: client, Slot: slot}
}

// Velocity estimates the paddle velocity in units per second from the two
// most recent accepted move reports.
func (p *Player) Velocity() (Vec2, bool) {
	return p.moves.Velocity()
}

// moveInterval derives the currently required gap between move reports from
// the recent movement speed.
func (p *Player) moveInterval() time.Duration {
	v, ok := p.moves.Velocity()
	if !ok {
		return MoveIntervalDefault
	}
	speed := v.Len()
	if speed >= FastMoveSpeed {
		return MoveIntervalMin
	}
	if speed <= SlowMoveSpeed {
		return MoveIntervalMax
	}
	frac := (speed - SlowMoveSpeed) / (FastMoveSpeed - SlowMoveSpeed)
	return MoveIntervalMax - time.Duration(frac*float64(MoveIntervalMax-MoveIntervalMin))
}

// AllowMove reports whether a move arriving now passes the adaptive rate
// limit, and records it as the last accepted move if so.
func (p *Player) AllowMove(now time.Time) bool {
	if !p.lastMove.IsZero() && now.Sub(p.lastMove) < p.moveInterval() {
		return false
	}
	p.lastMove = now
	return true
}

// RecordMove pushes an accepted, constrained position into the move window
func (p *Player) RecordMove(pos Vec2, at time.Time) {
	p.moves.Push(pos, at)
}
