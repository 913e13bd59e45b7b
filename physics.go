package main

import (
	"fmt"
	"math"
	"time"
)

const (
	PuckRadius = 15.0

	// Δt is clamped so a scheduler hiccup cannot tunnel the puck through a
	// wall or paddle in one step.
	MaxStepDt = 0.1 // seconds

	// Integration is normalized to a 60-updates-per-second reference frame:
	// velocities are units per frame, decay and motion scale with dt*StepRate.
	StepRate = 60.0

	Friction      = 0.995  // per reference frame
	AirResistance = 0.9995 // per reference frame
	MinPuckSpeed  = 0.25   // below this the puck stops outright
	MaxPuckSpeed  = 32.0

	WallRestitution  = 0.96
	MinBounceSpeed   = 2.0 // outgoing floor so the puck never stalls on a wall
	CornerElasticity = 0.82
	CollisionJitter  = 0.04
	WallEpsilon      = 0.5

	GoalWidth = 120.0

	// Player collision tuning
	BaseHitSpeed = 10.0 // units/frame along the contact normal for slow hits
	FastHitSpeed = 5.0  // units/frame paddle speed above which its velocity transfers
	ImpactFactor = 1.5

	// Collision events are deduplicated by a time-bucketed identifier so
	// near-simultaneous contacts (tick vs. off-tick move check) are not
	// double-processed.
	hitBucketMillis = 100
)

// stepPhysics advances the puck by the elapsed time since the previous tick
// and resolves at most one collision, in precedence order player, corner,
// flat wall, goal/boundary. Returns whether a collision occurred (the sync
// layer forces an immediate full sync on collisions). Caller holds the lock.
func (m *Match) stepPhysics(now time.Time) bool {
	dt := now.Sub(m.lastTick).Seconds()
	m.lastTick = now
	if dt <= 0 {
		return false
	}
	if dt > MaxStepDt {
		dt = MaxStepDt
	}

	st := &m.state
	if !st.IsPlaying || st.GameOver || m.cooldown {
		return false
	}

	frames := dt * StepRate
	st.PuckVelocity = st.PuckVelocity.Scale(math.Pow(Friction*AirResistance, frames))
	if st.PuckVelocity.Len() < MinPuckSpeed {
		st.PuckVelocity = Vec2{}
		return false
	}

	cand := st.PuckPos.Add(st.PuckVelocity.Scale(frames))
	collided := false

	// Player collisions take precedence; slot 1 before slot 2, one per tick.
	for slot := 1; slot <= 2; slot++ {
		if m.player(slot) == nil {
			continue
		}
		if Distance(cand, st.playerPos(slot)) < PuckRadius+PaddleRadius {
			collided = m.collidePlayer(slot, cand, now)
			m.recordPuck(now)
			return collided
		}
	}

	if corner, ok := m.nearCorner(cand); ok {
		m.collideCorner(corner, cand)
		m.recordPuck(now)
		return true
	}

	w, h := st.CanvasWidth, st.CanvasHeight
	bounceX, bounceY := 0.0, 0.0

	// Flat walls, left then right
	if cand.X-PuckRadius <= 0 {
		st.PuckVelocity.X = bounce(st.PuckVelocity.X, +1)
		cand.X = PuckRadius + WallEpsilon
		bounceX = +1
		collided = true
	} else if cand.X+PuckRadius >= w {
		st.PuckVelocity.X = bounce(st.PuckVelocity.X, -1)
		cand.X = w - PuckRadius - WallEpsilon
		bounceX = -1
		collided = true
	}

	// Top/bottom boundary: goal mouth or wall bounce. Slot 1 defends the
	// bottom goal and scores into the top one.
	if cand.Y-PuckRadius <= 0 {
		if m.inGoalMouth(cand.X) && !m.cooldown && st.PuckVelocity.Y < 0 && m.scoreGoal(1, now) {
			return true
		}
		st.PuckVelocity.Y = bounce(st.PuckVelocity.Y, +1)
		cand.Y = PuckRadius + WallEpsilon
		bounceY = +1
		collided = true
	} else if cand.Y+PuckRadius >= h {
		if m.inGoalMouth(cand.X) && !m.cooldown && st.PuckVelocity.Y > 0 && m.scoreGoal(2, now) {
			return true
		}
		st.PuckVelocity.Y = bounce(st.PuckVelocity.Y, -1)
		cand.Y = h - PuckRadius - WallEpsilon
		bounceY = -1
		collided = true
	}

	if collided {
		st.PuckVelocity = jitter(st.PuckVelocity, CollisionJitter).ClampLen(MaxPuckSpeed)
		// jitter must not drop the bounced axis below the outgoing floor
		if bounceX != 0 && st.PuckVelocity.X*bounceX < MinBounceSpeed {
			st.PuckVelocity.X = MinBounceSpeed * bounceX
		}
		if bounceY != 0 && st.PuckVelocity.Y*bounceY < MinBounceSpeed {
			st.PuckVelocity.Y = MinBounceSpeed * bounceY
		}
	}

	st.PuckPos = Vec2{
		X: Clamp(cand.X, PuckRadius, w-PuckRadius),
		Y: Clamp(cand.Y, PuckRadius, h-PuckRadius),
	}
	m.recordPuck(now)
	return collided
}

// bounce reflects a wall-normal velocity component with restitution and
// enforces the outgoing speed floor in the given direction (+1 or -1).
func bounce(v float64, dir float64) float64 {
	out := -v * WallRestitution
	if out*dir < 0 {
		out = -out
	}
	if out*dir < MinBounceSpeed {
		out = MinBounceSpeed * dir
	}
	return out
}

// inGoalMouth reports whether x lies within the goal-mouth interval centered
// on the board.
func (m *Match) inGoalMouth(x float64) bool {
	w := m.state.CanvasWidth
	return x > (w-GoalWidth)/2 && x < (w+GoalWidth)/2
}

// nearCorner returns the board corner the candidate position is touching
func (m *Match) nearCorner(pos Vec2) (Vec2, bool) {
	w, h := m.state.CanvasWidth, m.state.CanvasHeight
	corners := [4]Vec2{{0, 0}, {w, 0}, {0, h}, {w, h}}
	for _, c := range corners {
		if Distance(pos, c) < PuckRadius {
			return c, true
		}
	}
	return Vec2{}, false
}

// collidePlayer resolves a paddle-puck contact for the given slot: the puck
// is pushed just outside the combined radius along the contact normal and
// leaves either with the paddle's scaled velocity (fast hit) or at the base
// hit speed along the normal. Deduplicated by a time-bucketed identifier.
// Caller holds the lock.
func (m *Match) collidePlayer(slot int, cand Vec2, now time.Time) bool {
	id := fmt.Sprintf("p%d-%d", slot, now.UnixMilli()/hitBucketMillis)
	if m.hitSeen(id) {
		return false
	}

	st := &m.state
	ppos := st.playerPos(slot)
	normal, ok := cand.Sub(ppos).Normalized()
	if !ok {
		// coincident positions, abort rather than divide by zero
		return false
	}

	pos := ppos.Add(normal.Scale(PuckRadius + PaddleRadius + WallEpsilon))
	st.PuckPos = Vec2{
		X: Clamp(pos.X, PuckRadius, st.CanvasWidth-PuckRadius),
		Y: Clamp(pos.Y, PuckRadius, st.CanvasHeight-PuckRadius),
	}

	out := normal.Scale(BaseHitSpeed)
	if p := m.player(slot); p != nil {
		if pv, ok := p.Velocity(); ok {
			// paddle velocity estimate is units/s; puck velocity is units/frame
			pvf := pv.Scale(1 / StepRate)
			if pvf.Len() > FastHitSpeed {
				out = pvf.Scale(ImpactFactor)
			}
		}
	}
	st.PuckVelocity = jitter(out, CollisionJitter).ClampLen(MaxPuckSpeed)

	m.recordHit(id)
	return true
}

// collideCorner resolves a corner bounce: the tangential velocity component
// is preserved and the normal component reflects with the softer corner
// elasticity. Caller holds the lock.
func (m *Match) collideCorner(corner, cand Vec2) {
	st := &m.state
	normal, ok := cand.Sub(corner).Normalized()
	if !ok {
		return
	}
	pos := corner.Add(normal.Scale(PuckRadius + WallEpsilon))
	st.PuckPos = Vec2{
		X: Clamp(pos.X, PuckRadius, st.CanvasWidth-PuckRadius),
		Y: Clamp(pos.Y, PuckRadius, st.CanvasHeight-PuckRadius),
	}

	vn := normal.Scale(st.PuckVelocity.Dot(normal))
	vt := st.PuckVelocity.Sub(vn)
	st.PuckVelocity = jitter(vt.Sub(vn.Scale(CornerElasticity)), CollisionJitter).ClampLen(MaxPuckSpeed)
}

// hitSeen reports whether a collision identifier was already processed
func (m *Match) hitSeen(id string) bool {
	for _, h := range m.recentHits {
		if h == id {
			return true
		}
	}
	return false
}

// recordHit remembers a collision identifier, keeping at most the last 10
func (m *Match) recordHit(id string) {
	m.recentHits = append(m.recentHits, id)
	if len(m.recentHits) > historyCap {
		m.recentHits = m.recentHits[len(m.recentHits)-historyCap:]
	}
}

// recordPuck pushes the accepted puck position into the bounded history.
// Used for display interpolation, not physics.
func (m *Match) recordPuck(now time.Time) {
	m.puckHist.Push(m.state.PuckPos, now)
}
