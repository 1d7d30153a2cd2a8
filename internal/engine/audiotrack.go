package engine

import (
	"sync"

	"go.uber.org/zap"

	"clipcast/internal/types"
	"clipcast/log"
	apperrors "clipcast/pkg/errors"
)

// restartTolerance is the offset drift, in seconds, under which a redundant
// PlayFrom against the already-playing segment is absorbed instead of
// restarting the sink. Restarting the sink for sub-frame drift causes audible
// stutter.
const restartTolerance = 0.1

// AudioSink is the playback output. Play starts the buffer at offset seconds
// and is expected to report progress into the AudioHardwareClock out of band.
type AudioSink interface {
	Play(audio []byte, offsetSec float64) error
	Stop()
}

// BufferSource resolves the synthesized audio bytes for one part.
type BufferSource func(sceneIndex, partIndex int) ([]byte, bool)

// SegmentEvent is emitted when the track crosses into or out of a segment.
type SegmentEvent struct {
	SceneIndex   int
	PartIndex    int
	BoundaryTime float64
}

// TrackPlayer schedules per-part audio buffers along the timeline. It owns
// which buffer is audible; the Transport owns where the playhead is. Scene and
// group playback restrict it to an allowed scene set.
type TrackPlayer struct {
	mu sync.Mutex

	sink   AudioSink
	source BufferSource

	segments []types.Segment
	allowed  map[int]struct{} // nil means every scene

	playing   bool
	activeIdx int
	// Timeline time of the most recent PlayFrom/Advance, used to absorb
	// redundant restarts within restartTolerance.
	currentTime float64

	onStart func(SegmentEvent)
	onEnd   func(SegmentEvent)
}

func NewTrackPlayer(sink AudioSink, source BufferSource) *TrackPlayer {
	return &TrackPlayer{
		sink:      sink,
		source:    source,
		activeIdx: -1,
	}
}

// SetSegments installs the flattened per-part segment list, ordered by start
// time. A list shorter than the active index strands the active segment, so
// the index resets and the next Advance re-resolves against the new list.
func (p *TrackPlayer) SetSegments(segments []types.Segment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.segments = segments
	if p.activeIdx >= len(segments) {
		p.activeIdx = -1
	}
}

// SetAllowedSceneIndices restricts playback to the given scenes; nil or empty
// allows all.
func (p *TrackPlayer) SetAllowedSceneIndices(indices []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(indices) == 0 {
		p.allowed = nil
		return
	}
	p.allowed = make(map[int]struct{}, len(indices))
	for _, i := range indices {
		p.allowed[i] = struct{}{}
	}
}

// SetHandlers installs segment boundary callbacks. onStart fires when a
// segment's buffer begins, onEnd when the track leaves it.
func (p *TrackPlayer) SetHandlers(onStart, onEnd func(SegmentEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onStart = onStart
	p.onEnd = onEnd
}

// PlayFrom starts (or repositions) audio at the given timeline time. A request
// landing inside the already-playing segment within restartTolerance of the
// current position is a no-op, so the render loop can call this freely.
func (p *TrackPlayer) PlayFrom(timelineTime float64) error {
	p.mu.Lock()

	idx, offset := p.findSegmentLocked(timelineTime)
	if idx < 0 {
		p.mu.Unlock()
		return apperrors.ErrSegmentNotFound
	}

	if p.playing && idx == p.activeIdx {
		drift := timelineTime - p.currentTime
		if drift < 0 {
			drift = -drift
		}
		if drift < restartTolerance {
			p.currentTime = timelineTime
			p.mu.Unlock()
			return nil
		}
	}

	err := p.startSegmentLocked(idx, offset, timelineTime)
	p.mu.Unlock()
	return err
}

// Advance moves the track to the playhead position, switching buffers at
// segment boundaries. It returns true when the playhead ran past the last
// allowed segment, i.e. the event-driven stop condition.
func (p *TrackPlayer) Advance(timelineTime float64) bool {
	p.mu.Lock()

	if !p.playing {
		p.mu.Unlock()
		return false
	}
	p.currentTime = timelineTime

	idx, offset := p.findSegmentLocked(timelineTime)
	if idx < 0 {
		// Past the last allowed segment.
		prev := p.activeIdx
		p.stopLocked()
		onEnd := p.onEnd
		var ev SegmentEvent
		hasPrev := prev >= 0 && prev < len(p.segments)
		if hasPrev {
			seg := p.segments[prev]
			ev = SegmentEvent{SceneIndex: seg.SceneIndex, PartIndex: seg.PartIndex, BoundaryTime: seg.End()}
		}
		p.mu.Unlock()
		if onEnd != nil && hasPrev {
			onEnd(ev)
		}
		return true
	}

	if idx == p.activeIdx {
		p.mu.Unlock()
		return false
	}

	if err := p.startSegmentLocked(idx, offset, timelineTime); err != nil {
		log.GetLogger().Warn("segment switch failed",
			zap.Int("segment", idx),
			zap.Error(err))
	}
	p.mu.Unlock()
	return false
}

// startSegmentLocked stops the previous buffer, emits boundary events, and
// starts the new one.
func (p *TrackPlayer) startSegmentLocked(idx int, offset, timelineTime float64) error {
	prev := p.activeIdx
	var endEv SegmentEvent
	emitEnd := p.playing && prev >= 0 && prev < len(p.segments) && prev != idx
	if emitEnd {
		seg := p.segments[prev]
		endEv = SegmentEvent{SceneIndex: seg.SceneIndex, PartIndex: seg.PartIndex, BoundaryTime: seg.End()}
	}

	seg := p.segments[idx]
	buf, ok := p.source(seg.SceneIndex, seg.PartIndex)
	if !ok {
		return apperrors.ErrScenesNotReady
	}

	p.sink.Stop()
	if err := p.sink.Play(buf, offset); err != nil {
		return apperrors.Wrap(apperrors.CodeTTSFailed, "Audio sink start failed", err)
	}
	p.playing = true
	p.activeIdx = idx
	p.currentTime = timelineTime

	onStart, onEnd := p.onStart, p.onEnd
	startEv := SegmentEvent{SceneIndex: seg.SceneIndex, PartIndex: seg.PartIndex, BoundaryTime: seg.StartSec}

	// Invoked with the lock held; handlers must not call back into the player.
	if emitEnd && onEnd != nil {
		onEnd(endEv)
	}
	if onStart != nil {
		onStart(startEv)
	}
	return nil
}

// findSegmentLocked maps a timeline time to (segment index, buffer offset)
// among the allowed scenes. Interior segments own [start, end); the final
// allowed segment also owns its end point. Times before the first allowed
// segment clamp to its start; times past the last return -1.
func (p *TrackPlayer) findSegmentLocked(t float64) (int, float64) {
	last := -1
	for i, seg := range p.segments {
		if !p.allowedLocked(seg.SceneIndex) {
			continue
		}
		if t < seg.StartSec {
			// Before this segment: clamp forward into it.
			return i, 0
		}
		if t < seg.End() {
			return i, t - seg.StartSec
		}
		last = i
	}
	if last >= 0 && t <= p.segments[last].End() {
		return last, t - p.segments[last].StartSec
	}
	return -1, 0
}

func (p *TrackPlayer) allowedLocked(sceneIndex int) bool {
	if p.allowed == nil {
		return true
	}
	_, ok := p.allowed[sceneIndex]
	return ok
}

// Pause stops the sink but remembers the active segment so a resume near the
// same position avoids a restart decision.
func (p *TrackPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.sink.Stop()
		p.playing = false
	}
}

// Stop halts the sink and forgets the active segment.
func (p *TrackPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *TrackPlayer) stopLocked() {
	if p.playing {
		p.sink.Stop()
	}
	p.playing = false
	p.activeIdx = -1
}

// Playing reports whether a buffer is currently audible.
func (p *TrackPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// ActiveSegment returns the segment currently audible, ok=false when idle.
func (p *TrackPlayer) ActiveSegment() (types.Segment, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.activeIdx < 0 || p.activeIdx >= len(p.segments) {
		return types.Segment{}, false
	}
	return p.segments[p.activeIdx], true
}
