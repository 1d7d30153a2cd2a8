package engine

import (
	"sync"

	"go.uber.org/zap"

	"clipcast/log"
)

// MusicSink starts the looping background music asset at the given volume.
type MusicSink interface {
	Play(handle string, volume float64) (OneShotHandle, error)
}

// MusicPlayer drives the background music bed in lockstep with the transport:
// at most one instance, started per playback run, paused and resumed with it.
// Resuming with the same handle continues the running instance; a handle
// change restarts from the top.
type MusicPlayer struct {
	mu     sync.Mutex
	sink   MusicSink
	handle string
	active OneShotHandle
	paused bool
}

func NewMusicPlayer(sink MusicSink) *MusicPlayer {
	return &MusicPlayer{sink: sink}
}

// Start plays the music bed. An empty handle stops whatever is playing; the
// same handle resumes a paused instance instead of restarting it.
func (p *MusicPlayer) Start(handle string, volume float64) {
	if p == nil || p.sink == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if handle == "" {
		p.stopLocked()
		return
	}
	if p.active != nil && handle == p.handle {
		if p.paused {
			p.paused = false
			p.active.Resume()
		}
		return
	}

	p.stopLocked()
	inst, err := p.sink.Play(handle, volume)
	if err != nil {
		log.GetLogger().Warn("background music start failed",
			zap.String("handle", handle),
			zap.Error(err))
		return
	}
	p.handle = handle
	p.active = inst
	p.paused = false
}

// Pause suspends the music, in lockstep with transport pause.
func (p *MusicPlayer) Pause() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil && !p.paused {
		p.paused = true
		p.active.Pause()
	}
}

// Stop halts and forgets the active instance.
func (p *MusicPlayer) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *MusicPlayer) stopLocked() {
	if p.active != nil {
		p.active.Stop()
		p.active = nil
	}
	p.handle = ""
	p.paused = false
}

// Playing reports whether an instance is active and not paused.
func (p *MusicPlayer) Playing() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active != nil && !p.paused
}
