package engine

import (
	"sync"

	"go.uber.org/zap"

	"clipcast/internal/types"
	"clipcast/log"
)

// boundaryEpsilon keeps a paused playhead strictly inside its segment. Parking
// exactly on a boundary makes the next resume ambiguous between the outgoing
// and incoming segment.
const boundaryEpsilon = 0.001

// Transport is the playback state machine. It owns the playhead and nothing
// else: no audio, no rendering. Full playback advances on the frame clock with
// speed scaling; scene and group playback pin the playhead to the audio
// hardware clock so speech never drifts against the visuals.
type Transport struct {
	mu sync.Mutex

	frameClock Clock
	audioClock Clock

	mode  types.PlaybackMode
	time  float64
	speed float64
	total float64

	// Scene/group playback bounds on the timeline.
	rangeStart float64
	rangeEnd   float64

	// Frame clock anchor for full playback.
	lastFrameNow float64

	// Audio clock anchor: timeline time at which the current audio segment
	// started, and the audio clock reading at that moment.
	anchorTimeline float64
	anchorAudio    float64
	audioAnchored  bool
}

func NewTransport(frameClock, audioClock Clock) *Transport {
	return &Transport{
		frameClock: frameClock,
		audioClock: audioClock,
		mode:       types.ModeStopped,
		speed:      1.0,
	}
}

// PlayFull enters full-timeline playback from the current playhead. A playhead
// resting at the end restarts from zero.
func (t *Transport) PlayFull(totalDuration float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total = totalDuration
	if t.time >= totalDuration-boundaryEpsilon {
		t.time = 0
	}
	t.mode = types.ModeFull
	t.lastFrameNow = t.frameClock.Now()
	t.audioAnchored = false
}

// PlayRange enters scene or group playback over [start, end) and force-seeks
// the playhead to start. The caller anchors the audio clock once the sink
// actually starts.
func (t *Transport) PlayRange(mode types.PlaybackMode, start, end, totalDuration float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total = totalDuration
	t.mode = mode
	t.rangeStart = start
	t.rangeEnd = end
	t.time = start
	t.audioAnchored = false
	t.lastFrameNow = t.frameClock.Now()
}

// AnchorAudio pins the playhead to the audio hardware clock: timelineTime is
// where the just-started audio segment sits on the timeline. Until anchored,
// scene/group ticks fall back to the frame clock.
func (t *Transport) AnchorAudio(timelineTime float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.anchorTimeline = timelineTime
	t.anchorAudio = t.audioClock.Now()
	t.audioAnchored = true
}

// Tick advances the playhead one step and reports whether playback ran off the
// end of its range. This is the polling half of stop detection; segment-end
// events are the primary half and the two must agree.
func (t *Transport) Tick() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.mode {
	case types.ModeFull:
		now := t.frameClock.Now()
		t.time += (now - t.lastFrameNow) * t.speed
		t.lastFrameNow = now
		if t.time >= t.total {
			t.time = t.total
			t.mode = types.ModeStopped
			return t.time, true
		}

	case types.ModeScene, types.ModeGroup:
		if t.audioAnchored {
			t.time = t.anchorTimeline + (t.audioClock.Now() - t.anchorAudio)
		} else {
			now := t.frameClock.Now()
			t.time += (now - t.lastFrameNow) * t.speed
			t.lastFrameNow = now
		}
		if t.time >= t.rangeEnd {
			t.stopAtRangeEndLocked()
			return t.time, true
		}

	default:
		return t.time, false
	}
	return t.time, false
}

// NotifyRangeEnd is the event-driven half of stop detection: the audio track
// finished its last allowed segment. Harmless if the poll already fired.
func (t *Transport) NotifyRangeEnd() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode == types.ModeScene || t.mode == types.ModeGroup {
		t.stopAtRangeEndLocked()
	}
}

func (t *Transport) stopAtRangeEndLocked() {
	t.time = t.rangeEnd - boundaryEpsilon
	if t.time < t.rangeStart {
		t.time = t.rangeStart
	}
	t.mode = types.ModeStopped
	t.audioAnchored = false
}

// Pause freezes the playhead. In scene/group mode the paused position is
// clamped strictly inside the range so resume stays unambiguous.
func (t *Transport) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mode == types.ModeScene || t.mode == types.ModeGroup {
		if t.time >= t.rangeEnd-boundaryEpsilon {
			t.time = t.rangeEnd - boundaryEpsilon
		}
		if t.time < t.rangeStart {
			t.time = t.rangeStart
		}
	}
	t.mode = types.ModeStopped
	t.audioAnchored = false
}

// Seek moves the playhead without changing the play/pause state. The audio
// anchor is discarded; the session re-anchors when the sink restarts.
func (t *Transport) Seek(to float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if to < 0 {
		to = 0
	}
	if t.total > 0 && to > t.total {
		to = t.total
	}
	t.time = to
	t.audioAnchored = false
	t.lastFrameNow = t.frameClock.Now()
}

// SetTotalDuration installs a new total. While full playback is running the
// playhead is rescaled proportionally, so a regenerated narration that grew
// the timeline keeps the playhead at the same scene instead of jumping
// backwards in ratio terms.
func (t *Transport) SetTotalDuration(newTotal float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mode == types.ModeFull && t.total > 0 && newTotal > 0 {
		ratio := newTotal / t.total
		t.time *= ratio
		log.GetLogger().Debug("rescaled playhead for new total duration",
			zap.Float64("ratio", ratio),
			zap.Float64("time", t.time))
	}
	t.total = newTotal
	if t.time > t.total {
		t.time = t.total
	}
}

func (t *Transport) SetSpeed(speed float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if speed > 0 {
		t.speed = speed
	}
}

func (t *Transport) Mode() types.PlaybackMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

func (t *Transport) Time() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.time
}

func (t *Transport) TotalDuration() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// RangeEnd reports where the current playback run will stop: the range bound
// for scene/group, the total for full.
func (t *Transport) RangeEnd() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode == types.ModeScene || t.mode == types.ModeGroup {
		return t.rangeEnd
	}
	return t.total
}
