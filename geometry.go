package main

import (
	"crypto/rand"
	"math"
)

// Vec2 is a 2D vector in board units. Positions are kept at full floating
// precision end to end; rounding before transmission causes visible jitter.
type Vec2 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Add returns v + o
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v * s
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Dot returns the dot product of v and o
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }

// Len returns the vector magnitude
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Normalized returns the unit vector of v. Reports false for a zero-length
// vector so collision math can abort instead of dividing by zero.
func (v Vec2) Normalized() (Vec2, bool) {
	l := v.Len()
	if l == 0 {
		return Vec2{}, false
	}
	return Vec2{v.X / l, v.Y / l}, true
}

// ClampLen limits the vector magnitude to max
func (v Vec2) ClampLen(max float64) Vec2 {
	l := v.Len()
	if l <= max {
		return v
	}
	return v.Scale(max / l)
}

// Distance returns the distance between two points
func Distance(a, b Vec2) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// randFloat returns a random float64 in [0, 1)
// Simple xorshift seeded from crypto/rand; not for crypto use
var randSrc uint64

func randFloat() float64 {
	randSrc ^= randSrc << 13
	randSrc ^= randSrc >> 7
	randSrc ^= randSrc << 17
	if randSrc == 0 {
		randSrc = 1
	}
	return float64(randSrc%10000) / 10000.0
}

func init() {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	for i, v := range b {
		randSrc |= uint64(v) << (uint(i) * 8)
	}
	if randSrc == 0 {
		randSrc = 1
	}
}

// jitter scales v by a random factor in [1-frac, 1+frac]. Applied after
// collisions so repeated identical hits don't look machine-perfect.
func jitter(v Vec2, frac float64) Vec2 {
	return v.Scale(1 + (randFloat()*2-1)*frac)
}
