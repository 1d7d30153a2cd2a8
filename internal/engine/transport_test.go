package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"clipcast/internal/types"
)

func newTestTransport() (*Transport, *ManualClock, *ManualClock) {
	frame := NewManualClock()
	audio := NewManualClock()
	return NewTransport(frame, audio), frame, audio
}

func TestFullPlaybackFollowsFrameClock(t *testing.T) {
	tr, frame, _ := newTestTransport()

	tr.PlayFull(10)
	frame.Advance(1.0)
	now, stopped := tr.Tick()
	assert.False(t, stopped)
	assert.InDelta(t, 1.0, now, 1e-9)

	tr.SetSpeed(2.0)
	frame.Advance(1.0)
	now, _ = tr.Tick()
	assert.InDelta(t, 3.0, now, 1e-9)
}

func TestFullPlaybackStopsAtTotal(t *testing.T) {
	tr, frame, _ := newTestTransport()

	tr.PlayFull(2)
	frame.Advance(5.0)
	now, stopped := tr.Tick()
	assert.True(t, stopped)
	assert.InDelta(t, 2.0, now, 1e-9)
	assert.Equal(t, types.ModeStopped, tr.Mode())
}

func TestPlayFullAtEndRestartsFromZero(t *testing.T) {
	tr, frame, _ := newTestTransport()

	tr.PlayFull(2)
	frame.Advance(5.0)
	tr.Tick()

	tr.PlayFull(2)
	assert.InDelta(t, 0.0, tr.Time(), 1e-9)
	assert.Equal(t, types.ModeFull, tr.Mode())
}

func TestScenePlaybackPinsToAudioClock(t *testing.T) {
	tr, frame, audio := newTestTransport()

	tr.PlayRange(types.ModeScene, 2, 5, 10)
	assert.InDelta(t, 2.0, tr.Time(), 1e-9)

	audio.Set(0)
	tr.AnchorAudio(2.0)

	// Frame clock noise must not move an anchored playhead.
	frame.Advance(100)
	audio.Advance(1.5)
	now, stopped := tr.Tick()
	assert.False(t, stopped)
	assert.InDelta(t, 3.5, now, 1e-9)
}

func TestScenePlaybackFallsBackToFrameClockUntilAnchored(t *testing.T) {
	tr, frame, _ := newTestTransport()

	tr.PlayRange(types.ModeScene, 2, 5, 10)
	frame.Advance(0.5)
	now, _ := tr.Tick()
	assert.InDelta(t, 2.5, now, 1e-9)
}

func TestRangeEndStopsInsideRange(t *testing.T) {
	tr, _, audio := newTestTransport()

	tr.PlayRange(types.ModeScene, 2, 5, 10)
	audio.Set(0)
	tr.AnchorAudio(2.0)

	audio.Advance(10)
	now, stopped := tr.Tick()
	assert.True(t, stopped)
	assert.Equal(t, types.ModeStopped, tr.Mode())
	// The playhead parks strictly inside the range, never on the boundary.
	assert.Less(t, now, 5.0)
	assert.GreaterOrEqual(t, now, 2.0)
}

func TestNotifyRangeEndMatchesPollingStop(t *testing.T) {
	tr, _, audio := newTestTransport()

	tr.PlayRange(types.ModeGroup, 0, 3, 10)
	audio.Set(0)
	tr.AnchorAudio(0)

	tr.NotifyRangeEnd()
	assert.Equal(t, types.ModeStopped, tr.Mode())
	assert.Less(t, tr.Time(), 3.0)

	// Firing again after the stop is harmless.
	tr.NotifyRangeEnd()
	assert.Equal(t, types.ModeStopped, tr.Mode())
}

func TestPauseClampsInsideRange(t *testing.T) {
	tr, _, audio := newTestTransport()

	tr.PlayRange(types.ModeScene, 2, 5, 10)
	audio.Set(0)
	tr.AnchorAudio(2.0)
	audio.Advance(2.9999)
	tr.Tick()

	tr.Pause()
	assert.Equal(t, types.ModeStopped, tr.Mode())
	assert.LessOrEqual(t, tr.Time(), 5.0-boundaryEpsilon)
	assert.GreaterOrEqual(t, tr.Time(), 2.0)
}

func TestSeekClampsWithoutChangingMode(t *testing.T) {
	tr, _, _ := newTestTransport()

	tr.PlayFull(10)
	tr.Seek(-5)
	assert.InDelta(t, 0.0, tr.Time(), 1e-9)
	assert.Equal(t, types.ModeFull, tr.Mode())

	tr.Seek(100)
	assert.InDelta(t, 10.0, tr.Time(), 1e-9)
	assert.Equal(t, types.ModeFull, tr.Mode())

	tr.Pause()
	tr.Seek(4)
	assert.Equal(t, types.ModeStopped, tr.Mode())
	assert.InDelta(t, 4.0, tr.Time(), 1e-9)
}

func TestSeekDiscardsAudioAnchor(t *testing.T) {
	tr, frame, audio := newTestTransport()

	tr.PlayRange(types.ModeScene, 0, 5, 10)
	audio.Set(0)
	tr.AnchorAudio(0)

	tr.Seek(1)
	// Without a fresh anchor the transport falls back to the frame clock.
	audio.Advance(100)
	frame.Advance(0.5)
	now, _ := tr.Tick()
	assert.InDelta(t, 1.5, now, 1e-9)
}

func TestTotalDurationRescalesPlayheadDuringFullPlayback(t *testing.T) {
	tr, frame, _ := newTestTransport()

	tr.PlayFull(10)
	frame.Advance(4.0)
	tr.Tick()

	// Narration regenerated twice as long: same scene, same ratio.
	tr.SetTotalDuration(20)
	assert.InDelta(t, 8.0, tr.Time(), 1e-9)
	assert.InDelta(t, 20.0, tr.TotalDuration(), 1e-9)
}

func TestTotalDurationDoesNotRescaleWhenStopped(t *testing.T) {
	tr, frame, _ := newTestTransport()

	tr.PlayFull(10)
	frame.Advance(4.0)
	tr.Tick()
	tr.Pause()

	tr.SetTotalDuration(20)
	assert.InDelta(t, 4.0, tr.Time(), 1e-9)
}

func TestTotalDurationShrinkClampsPlayhead(t *testing.T) {
	tr, _, _ := newTestTransport()

	tr.Seek(8)
	tr.SetTotalDuration(5)
	assert.InDelta(t, 5.0, tr.Time(), 1e-9)
}

func TestRangeEndReporting(t *testing.T) {
	tr, _, _ := newTestTransport()

	tr.PlayFull(10)
	assert.InDelta(t, 10.0, tr.RangeEnd(), 1e-9)

	tr.PlayRange(types.ModeScene, 2, 5, 10)
	assert.InDelta(t, 5.0, tr.RangeEnd(), 1e-9)
}
