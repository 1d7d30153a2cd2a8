package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipcast/internal/types"
	apperrors "clipcast/pkg/errors"
)

type playCall struct {
	size   int
	offset float64
}

// recordingSink records plays and stops; when a clock is attached it reports
// the start offset immediately, matching the sink contract.
type recordingSink struct {
	mu    sync.Mutex
	plays []playCall
	stops int
	clock *AudioHardwareClock
}

func (s *recordingSink) Play(audio []byte, offsetSec float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays = append(s.plays, playCall{size: len(audio), offset: offsetSec})
	if s.clock != nil {
		s.clock.Report(offsetSec)
	}
	return nil
}

func (s *recordingSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

func (s *recordingSink) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plays)
}

func (s *recordingSink) lastPlay() playCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays[len(s.plays)-1]
}

// sceneBuffers serves a distinct buffer per (scene, part) so tests can tell
// which segment the sink received.
func sceneBuffers(missing ...int) BufferSource {
	return func(sceneIndex, partIndex int) ([]byte, bool) {
		for _, m := range missing {
			if m == sceneIndex {
				return nil, false
			}
		}
		return make([]byte, (sceneIndex+1)*100+partIndex), true
	}
}

func seg(scene, part int, start, dur float64) types.Segment {
	return types.Segment{SceneIndex: scene, PartIndex: part, StartSec: start, DurationSec: dur}
}

func twoSceneSegments() []types.Segment {
	return []types.Segment{
		seg(0, 0, 0, 2),
		seg(1, 0, 2, 3),
	}
}

func TestPlayFromStartsSegmentAtOffset(t *testing.T) {
	sink := &recordingSink{}
	p := NewTrackPlayer(sink, sceneBuffers())
	p.SetSegments(twoSceneSegments())

	require.NoError(t, p.PlayFrom(2.5))
	call := sink.lastPlay()
	assert.Equal(t, 200, call.size)
	assert.InDelta(t, 0.5, call.offset, 1e-9)
	assert.True(t, p.Playing())
}

func TestRedundantPlayFromWithinToleranceIsAbsorbed(t *testing.T) {
	sink := &recordingSink{}
	p := NewTrackPlayer(sink, sceneBuffers())
	p.SetSegments(twoSceneSegments())

	require.NoError(t, p.PlayFrom(1.0))
	require.NoError(t, p.PlayFrom(1.05))
	assert.Equal(t, 1, sink.playCount())
}

func TestPlayFromBeyondToleranceRestarts(t *testing.T) {
	sink := &recordingSink{}
	p := NewTrackPlayer(sink, sceneBuffers())
	p.SetSegments(twoSceneSegments())

	require.NoError(t, p.PlayFrom(1.0))
	require.NoError(t, p.PlayFrom(1.5))
	assert.Equal(t, 2, sink.playCount())
	assert.InDelta(t, 1.5, sink.lastPlay().offset, 1e-9)
}

func TestAdvanceSwitchesSegmentsWithEvents(t *testing.T) {
	sink := &recordingSink{}
	p := NewTrackPlayer(sink, sceneBuffers())
	p.SetSegments(twoSceneSegments())

	var started, ended []SegmentEvent
	p.SetHandlers(
		func(ev SegmentEvent) { started = append(started, ev) },
		func(ev SegmentEvent) { ended = append(ended, ev) },
	)

	require.NoError(t, p.PlayFrom(0))
	require.Len(t, started, 1)

	assert.False(t, p.Advance(0.5))
	assert.Equal(t, 1, sink.playCount())

	assert.False(t, p.Advance(2.1))
	assert.Equal(t, 2, sink.playCount())
	assert.InDelta(t, 0.1, sink.lastPlay().offset, 1e-9)

	require.Len(t, ended, 1)
	assert.Equal(t, 0, ended[0].SceneIndex)
	assert.InDelta(t, 2.0, ended[0].BoundaryTime, 1e-9)

	require.Len(t, started, 2)
	assert.Equal(t, 1, started[1].SceneIndex)
	assert.InDelta(t, 2.0, started[1].BoundaryTime, 1e-9)
}

func TestAdvancePastLastAllowedSegmentEnds(t *testing.T) {
	sink := &recordingSink{}
	p := NewTrackPlayer(sink, sceneBuffers())
	p.SetSegments(twoSceneSegments())
	p.SetAllowedSceneIndices([]int{0})

	var ended []SegmentEvent
	p.SetHandlers(nil, func(ev SegmentEvent) { ended = append(ended, ev) })

	require.NoError(t, p.PlayFrom(0))
	assert.True(t, p.Advance(2.5))
	assert.False(t, p.Playing())
	require.Len(t, ended, 1)
	assert.Equal(t, 0, ended[0].SceneIndex)
}

func TestAllowedSceneRestrictionClampsForward(t *testing.T) {
	sink := &recordingSink{}
	p := NewTrackPlayer(sink, sceneBuffers())
	p.SetSegments(twoSceneSegments())
	p.SetAllowedSceneIndices([]int{1})

	require.NoError(t, p.PlayFrom(0))
	call := sink.lastPlay()
	assert.Equal(t, 200, call.size)
	assert.InDelta(t, 0.0, call.offset, 1e-9)
}

func TestFinalSegmentOwnsItsEndPoint(t *testing.T) {
	sink := &recordingSink{}
	p := NewTrackPlayer(sink, sceneBuffers())
	p.SetSegments(twoSceneSegments())

	require.NoError(t, p.PlayFrom(5.0))
	call := sink.lastPlay()
	assert.Equal(t, 200, call.size)
	assert.InDelta(t, 3.0, call.offset, 1e-9)
}

func TestPlayFromPastEndFails(t *testing.T) {
	p := NewTrackPlayer(&recordingSink{}, sceneBuffers())
	p.SetSegments(twoSceneSegments())

	err := p.PlayFrom(9.0)
	assert.True(t, apperrors.Is(err, apperrors.CodeSegmentNotFound))
}

func TestMissingBufferReportsNotReady(t *testing.T) {
	p := NewTrackPlayer(&recordingSink{}, sceneBuffers(0))
	p.SetSegments(twoSceneSegments())

	err := p.PlayFrom(0)
	assert.True(t, apperrors.Is(err, apperrors.CodeScenesNotReady))
	assert.False(t, p.Playing())
}

func TestPauseKeepsActiveSegment(t *testing.T) {
	sink := &recordingSink{}
	p := NewTrackPlayer(sink, sceneBuffers())
	p.SetSegments(twoSceneSegments())

	require.NoError(t, p.PlayFrom(1.0))
	p.Pause()
	assert.False(t, p.Playing())
	_, ok := p.ActiveSegment()
	assert.True(t, ok)

	p.Stop()
	_, ok = p.ActiveSegment()
	assert.False(t, ok)
}

func TestSetSegmentsShrinkWhileActive(t *testing.T) {
	sink := &recordingSink{}
	p := NewTrackPlayer(sink, sceneBuffers())
	p.SetSegments(twoSceneSegments())

	var ends []SegmentEvent
	p.SetHandlers(nil, func(ev SegmentEvent) { ends = append(ends, ev) })

	// Play into the second segment, then shrink the list under it.
	require.NoError(t, p.PlayFrom(2.5))
	p.SetSegments([]types.Segment{seg(0, 0, 0, 2)})

	// The stranded index must not be dereferenced against the new list.
	assert.True(t, p.Advance(2.5))
	assert.False(t, p.Playing())
	assert.Empty(t, ends)

	_, active := p.ActiveSegment()
	assert.False(t, active)
}

func TestSetSegmentsShrinkThenAdvanceRestartsFromNewList(t *testing.T) {
	sink := &recordingSink{}
	p := NewTrackPlayer(sink, sceneBuffers())
	p.SetSegments(twoSceneSegments())

	require.NoError(t, p.PlayFrom(2.5))
	p.SetSegments([]types.Segment{seg(0, 0, 0, 2)})

	// A playhead still inside the new list re-resolves cleanly.
	assert.False(t, p.Advance(1.0))
	assert.Equal(t, 100, sink.lastPlay().size)
	assert.InDelta(t, 1.0, sink.lastPlay().offset, 1e-9)
}
