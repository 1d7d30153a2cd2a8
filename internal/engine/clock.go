// Package engine hosts the playback runtime: transport state machine, audio
// track scheduling, scene rendering bridge, sound effects, and the session
// run loop that ties them to a timeline.
package engine

import (
	"sync"
	"time"
)

// Clock is a monotonic time source in seconds. The engine reconciles two of
// them: the frame clock drifts under GC pauses and backgrounding, the audio
// hardware clock is authoritative and jitter-free. Switching between them is
// an explicit transport state transition, never an ad-hoc flag check.
type Clock interface {
	Now() float64
}

// FrameClock measures wall time from its creation. It drives full playback's
// steady state, where small drift is invisible.
type FrameClock struct {
	start time.Time
}

func NewFrameClock() *FrameClock {
	return &FrameClock{start: time.Now()}
}

func (c *FrameClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

// AudioHardwareClock mirrors the audio output's own sample position. Sinks
// report progress into it; readers get the last reported position without
// extrapolation, which keeps it jitter-free.
type AudioHardwareClock struct {
	mu       sync.Mutex
	position float64
}

func NewAudioHardwareClock() *AudioHardwareClock {
	return &AudioHardwareClock{}
}

// Report records the sink's current playback position in seconds.
func (c *AudioHardwareClock) Report(position float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = position
}

func (c *AudioHardwareClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// ManualClock is a test clock advanced by hand.
type ManualClock struct {
	mu  sync.Mutex
	now float64
}

func NewManualClock() *ManualClock {
	return &ManualClock{}
}

func (c *ManualClock) Advance(d float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

func (c *ManualClock) Set(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
