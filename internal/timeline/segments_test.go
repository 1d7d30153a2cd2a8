package timeline

import (
	"math"
	"testing"

	"clipcast/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentDuration(t *testing.T) {
	// Duration hint wins when positive.
	assert.Equal(t, 2.5, SegmentDuration(types.ClipSource{DurationHint: 2.5, SelectionStart: 0, SelectionEnd: 10}))
	// Falls back to selection window.
	assert.Equal(t, 4.0, SegmentDuration(types.ClipSource{SelectionStart: 1, SelectionEnd: 5}))
	// Inverted selection clamps to zero, never negative.
	assert.Equal(t, 0.0, SegmentDuration(types.ClipSource{SelectionStart: 5, SelectionEnd: 1}))
}

func TestIsPlayable(t *testing.T) {
	assert.True(t, IsPlayable(types.ClipSource{DurationHint: 2, MediaHandle: "img-a"}))
	// No media reference.
	assert.False(t, IsPlayable(types.ClipSource{DurationHint: 2}))
	// Sub-millisecond duration.
	assert.False(t, IsPlayable(types.ClipSource{DurationHint: 0.0005, MediaHandle: "img-a"}))
}

func TestPlayableSegmentsPreservesOriginalIndex(t *testing.T) {
	// Scenes [{dur:2, media:A}, {dur:0, media:null}, {dur:5, media:B}]
	clips := []types.ClipSource{
		{DurationHint: 2, MediaHandle: "A"},
		{DurationHint: 0},
		{DurationHint: 5, MediaHandle: "B"},
	}

	segs := PlayableSegments(clips)
	require.Len(t, segs, 2)
	assert.Equal(t, 0, segs[0].Index)
	assert.Equal(t, 2, segs[1].Index)
	assert.Equal(t, 2.0, segs[0].Duration)
	assert.Equal(t, 5.0, segs[1].Duration)
	assert.Equal(t, 0.0, segs[0].Start)
	assert.Equal(t, 2.0, segs[1].Start)

	assert.Equal(t, 2.0, DurationBeforeIndex(clips, 2))
}

func TestPlayableSegmentsEmpty(t *testing.T) {
	assert.Empty(t, PlayableSegments(nil))
	assert.Nil(t, ResolveAtTime(nil, 1.0, ResolveOptions{}))
	assert.Equal(t, 0.0, TotalPlayableDuration(nil))
	assert.Equal(t, 0.0, DurationBeforeIndex(nil, 3))
}

func TestResolveAtTimeBoundaryPartition(t *testing.T) {
	clips := []types.ClipSource{
		{DurationHint: 2, MediaHandle: "A"},
		{DurationHint: 3, MediaHandle: "B"},
		{DurationHint: 1, MediaHandle: "C"},
	}

	// Every t in [0, total] resolves to exactly one segment, no gaps.
	total := TotalPlayableDuration(clips)
	for _, tc := range []struct {
		t    float64
		want int
	}{
		{0, 0}, {1.999, 0},
		{2, 1}, // interior boundary rounds forward
		{4.999, 1},
		{5, 2},
		{6, 2}, // closed upper bound on the last segment
	} {
		got := ResolveAtTime(clips, tc.t, ResolveOptions{})
		require.NotNil(t, got, "t=%v", tc.t)
		assert.Equal(t, tc.want, got.Segment.Index, "t=%v", tc.t)
	}
	assert.Equal(t, 6.0, total)
}

func TestResolveAtTimeClampsOvershoot(t *testing.T) {
	// 3 segments, 6 seconds total; far out-of-range time resolves to the
	// last segment with the offset clamped to its duration.
	clips := []types.ClipSource{
		{DurationHint: 2, MediaHandle: "A"},
		{DurationHint: 3, MediaHandle: "B"},
		{DurationHint: 1, MediaHandle: "C"},
	}

	got := ResolveAtTime(clips, 999, ResolveOptions{})
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Segment.Index)
	assert.Equal(t, got.Segment.Duration, got.SceneTime)
}

func TestResolveAtTimeSingleSegmentUpperBoundary(t *testing.T) {
	clips := []types.ClipSource{{DurationHint: 4, MediaHandle: "A"}}

	got := ResolveAtTime(clips, 4, ResolveOptions{})
	require.NotNil(t, got)
	assert.Equal(t, 0, got.Segment.Index)
	assert.Equal(t, 4.0, got.SceneTime)
}

func TestResolveAtTimeForceSceneIndex(t *testing.T) {
	clips := []types.ClipSource{
		{DurationHint: 2, MediaHandle: "A"},
		{DurationHint: 3, MediaHandle: "B"},
	}

	force := 1
	// The numeric t must be ignored entirely.
	got := ResolveAtTime(clips, 0.3, ResolveOptions{ForceSceneIndex: &force})
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Segment.Index)
	assert.Equal(t, 0.0, got.SceneTime)

	// Forcing an unplayable index yields nil.
	missing := 7
	assert.Nil(t, ResolveAtTime(clips, 0, ResolveOptions{ForceSceneIndex: &missing}))
}

func TestClampPlaybackTime(t *testing.T) {
	assert.Equal(t, 0.0, ClampPlaybackTime(math.NaN(), 10))
	assert.Equal(t, 0.0, ClampPlaybackTime(-5, 10))
	assert.Equal(t, 10.0, ClampPlaybackTime(15, 10))
	assert.Equal(t, 3.0, ClampPlaybackTime(3, 10))
	// Non-positive total forces zero.
	assert.Equal(t, 0.0, ClampPlaybackTime(3, 0))
	assert.Equal(t, 0.0, ClampPlaybackTime(3, -1))
}

func TestClampPlaybackTimeIdempotent(t *testing.T) {
	for _, tt := range []float64{math.NaN(), -100, -0.001, 0, 1.5, 9.999, 10, 11, 1e9} {
		for _, total := range []float64{-1, 0, 0.5, 10} {
			once := ClampPlaybackTime(tt, total)
			twice := ClampPlaybackTime(once, total)
			assert.Equal(t, once, twice, "t=%v total=%v", tt, total)
		}
	}
}
