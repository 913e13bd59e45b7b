package main

import "time"

const historyCap = 10

// Sample is one recorded position with its wall-clock time
type Sample struct {
	Pos Vec2
	At  time.Time
}

// History is a fixed-capacity ring buffer of position samples. It backs both
// the puck trail and each player's recent move window; the only consumers are
// Push and the two-sample velocity estimate.
type History struct {
	buf  [historyCap]Sample
	head int // next write index
	n    int
}

// Push records a sample, evicting the oldest once full
func (h *History) Push(pos Vec2, at time.Time) {
	h.buf[h.head] = Sample{Pos: pos, At: at}
	h.head = (h.head + 1) % historyCap
	if h.n < historyCap {
		h.n++
	}
}

// Len returns the number of stored samples
func (h *History) Len() int { return h.n }

// Last returns the most recent sample
func (h *History) Last() (Sample, bool) {
	if h.n == 0 {
		return Sample{}, false
	}
	return h.buf[(h.head+historyCap-1)%historyCap], true
}

// Velocity estimates instantaneous velocity in units per second from the two
// most recent samples. Reports false with fewer than two samples or when the
// samples share a timestamp.
func (h *History) Velocity() (Vec2, bool) {
	if h.n < 2 {
		return Vec2{}, false
	}
	last := h.buf[(h.head+historyCap-1)%historyCap]
	prev := h.buf[(h.head+historyCap-2)%historyCap]
	dt := last.At.Sub(prev.At).Seconds()
	if dt <= 0 {
		return Vec2{}, false
	}
	return last.Pos.Sub(prev.Pos).Scale(1 / dt), true
}

// Reset discards all samples
func (h *History) Reset() {
	h.head = 0
	h.n = 0
}
