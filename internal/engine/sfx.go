package engine

import (
	"sync"

	"go.uber.org/zap"

	"clipcast/log"
)

// OneShotHandle controls a single started effect instance.
type OneShotHandle interface {
	Stop()
	Pause()
	Resume()
}

// OneShotSink starts a named effect asset playing.
type OneShotSink interface {
	Play(handle string) (OneShotHandle, error)
}

type effectKey struct {
	sceneIndex int
	partIndex  int
}

// SoundEffectPlayer fires scene sound effects as one-shots keyed by
// (scene, part): a segment boundary starts at most one instance, and
// re-entering the same segment after a seek starts a fresh one. Pause and
// resume move in lockstep with the main transport.
type SoundEffectPlayer struct {
	mu     sync.Mutex
	sink   OneShotSink
	active map[effectKey]OneShotHandle
	paused bool
}

func NewSoundEffectPlayer(sink OneShotSink) *SoundEffectPlayer {
	return &SoundEffectPlayer{
		sink:   sink,
		active: make(map[effectKey]OneShotHandle),
	}
}

// OnSegmentStart starts the effect for the entered segment, stopping any
// instance left over from a previous pass through the same segment.
func (p *SoundEffectPlayer) OnSegmentStart(sceneIndex, partIndex int, handle string) {
	if handle == "" || p == nil || p.sink == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	key := effectKey{sceneIndex: sceneIndex, partIndex: partIndex}
	if prev, ok := p.active[key]; ok {
		prev.Stop()
		delete(p.active, key)
	}

	inst, err := p.sink.Play(handle)
	if err != nil {
		log.GetLogger().Warn("sound effect start failed",
			zap.String("handle", handle),
			zap.Int("scene_index", sceneIndex),
			zap.Error(err))
		return
	}
	if p.paused {
		inst.Pause()
	}
	p.active[key] = inst
}

// OnSegmentEnd stops the effect for the exited segment, if still playing.
func (p *SoundEffectPlayer) OnSegmentEnd(sceneIndex, partIndex int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := effectKey{sceneIndex: sceneIndex, partIndex: partIndex}
	if inst, ok := p.active[key]; ok {
		inst.Stop()
		delete(p.active, key)
	}
}

// PauseAll suspends every active effect, in lockstep with transport pause.
func (p *SoundEffectPlayer) PauseAll() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	for _, inst := range p.active {
		inst.Pause()
	}
}

// ResumeAll resumes effects suspended by PauseAll.
func (p *SoundEffectPlayer) ResumeAll() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	for _, inst := range p.active {
		inst.Resume()
	}
}

// StopAll stops and forgets every active effect.
func (p *SoundEffectPlayer) StopAll() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, inst := range p.active {
		inst.Stop()
		delete(p.active, key)
	}
}
