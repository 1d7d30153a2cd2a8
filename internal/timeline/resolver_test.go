package timeline

import (
	"testing"

	"clipcast/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDurations serves measured part durations keyed by scene id + split.
type stubDurations struct {
	parts map[string][]float64
}

func (s *stubDurations) PartDurations(scene types.Scene) ([]float64, bool) {
	if s == nil || s.parts == nil {
		return nil, false
	}
	key := scene.SceneId + "#" + string(rune('0'+scene.SplitIndex))
	p, ok := s.parts[key]
	return p, ok
}

func scene(id string, split int, dur, trans float64) types.Scene {
	return types.Scene{
		SceneId:            id,
		SplitIndex:         split,
		Image:              "img-" + id,
		Text:               types.SceneText{Content: "hello"},
		Duration:           dur,
		TransitionType:     "fade",
		TransitionDuration: trans,
	}
}

func TestSceneDurationPrefersMeasured(t *testing.T) {
	durations := &stubDurations{parts: map[string][]float64{
		"a#0": {1.5, 1.9}, // measured sum 3.4
	}}
	r := NewResolver(durations)

	tl := &types.Timeline{Scenes: []types.Scene{scene("a", 0, 2.0, 0)}}
	assert.InDelta(t, 3.4, r.SceneDuration(tl, 0), 1e-9)

	// Without a measurement the heuristic field is used.
	tl2 := &types.Timeline{Scenes: []types.Scene{scene("b", 0, 2.0, 0)}}
	assert.InDelta(t, 2.0, r.SceneDuration(tl2, 0), 1e-9)
}

func TestTotalDurationMonotonicImprovement(t *testing.T) {
	durations := &stubDurations{parts: map[string][]float64{}}
	r := NewResolver(durations)

	tl := &types.Timeline{Scenes: []types.Scene{
		scene("a", 0, 2.0, 0),
		scene("b", 0, 3.0, 0),
	}}
	assert.InDelta(t, 5.0, r.TotalDuration(tl), 1e-9)

	// Once measured, the measurement is always preferred over the heuristic.
	durations.parts["a#0"] = []float64{3.4}
	assert.InDelta(t, 6.4, r.TotalDuration(tl), 1e-9)
	assert.InDelta(t, 6.4, r.TotalDuration(tl), 1e-9)
}

func TestSceneStartTimeSplitSiblingsSuppressTransition(t *testing.T) {
	// Split group [{id:1, split:1, dur:3}, {id:1, split:2, dur:2}] with a
	// nominal transition: the sibling boundary contributes zero transition.
	r := NewResolver(nil)
	tl := &types.Timeline{Scenes: []types.Scene{
		scene("1", 1, 3.0, 0.5),
		scene("1", 2, 2.0, 0.5),
	}}

	assert.InDelta(t, 3.0, r.SceneStartTimeTts(tl, 1), 1e-9)
	// The visual boundary also suppresses the sibling transition.
	assert.InDelta(t, 3.0, r.SceneStartTime(tl, 1), 1e-9)
}

func TestVisualAndTtsBoundariesDiverge(t *testing.T) {
	r := NewResolver(nil)
	tl := &types.Timeline{Scenes: []types.Scene{
		scene("a", 0, 2.0, 0.0),
		scene("b", 0, 3.0, 0.4),
		scene("c", 0, 1.0, 0.6),
	}}

	// Audio-alignment boundaries carry no transition time.
	assert.InDelta(t, 2.0, r.SceneStartTimeTts(tl, 1), 1e-9)
	assert.InDelta(t, 5.0, r.SceneStartTimeTts(tl, 2), 1e-9)

	// Visual boundaries include the transition into each scene.
	assert.InDelta(t, 2.4, r.SceneStartTime(tl, 1), 1e-9)
	assert.InDelta(t, 6.0, r.SceneStartTime(tl, 2), 1e-9)
	assert.InDelta(t, 7.0, r.TotalVisualDuration(tl), 1e-9)

	// No trailing transition past the end: total visual duration equals the
	// last visual start plus the last duration.
	assert.InDelta(t, r.SceneStartTime(tl, 2)+r.SceneDuration(tl, 2), r.TotalVisualDuration(tl), 1e-9)
}

func TestResolveTimeToSceneForwardRounding(t *testing.T) {
	r := NewResolver(nil)
	tl := &types.Timeline{Scenes: []types.Scene{
		scene("a", 0, 2.0, 0),
		scene("b", 0, 3.0, 0),
	}}

	// Interior boundary resolves to the next scene.
	pos, ok := r.ResolveTimeToScene(tl, 2.0)
	require.True(t, ok)
	assert.Equal(t, 1, pos.SceneIndex)
	assert.InDelta(t, 0.0, pos.SceneOffset, 1e-9)

	// The very end still resolves (closed final interval).
	pos, ok = r.ResolveTimeToScene(tl, 5.0)
	require.True(t, ok)
	assert.Equal(t, 1, pos.SceneIndex)
	assert.InDelta(t, 3.0, pos.SceneOffset, 1e-9)
}

func TestResolveTimeToScenePartLevel(t *testing.T) {
	durations := &stubDurations{parts: map[string][]float64{
		"a#0": {1.0, 2.0},
	}}
	r := NewResolver(durations)
	tl := &types.Timeline{Scenes: []types.Scene{
		{SceneId: "a", Image: "img", Text: types.SceneText{Content: "one|two"}, Duration: 2.0},
	}}

	// Interior part boundary rounds forward.
	pos, ok := r.ResolveTimeToScene(tl, 1.0)
	require.True(t, ok)
	assert.Equal(t, 0, pos.SceneIndex)
	assert.Equal(t, 1, pos.PartIndex)
	assert.InDelta(t, 0.0, pos.PartOffset, 1e-9)
	assert.InDelta(t, 1.0, pos.PartStart, 1e-9)

	// Final part uses a closed interval.
	pos, ok = r.ResolveTimeToScene(tl, 3.0)
	require.True(t, ok)
	assert.Equal(t, 1, pos.PartIndex)
	assert.InDelta(t, 2.0, pos.PartOffset, 1e-9)
}

func TestSegmentsAlignWithTtsBoundaries(t *testing.T) {
	durations := &stubDurations{parts: map[string][]float64{
		"a#0": {1.25, 0.75},
		"b#0": {2.0},
	}}
	r := NewResolver(durations)
	tl := &types.Timeline{Scenes: []types.Scene{
		{SceneId: "a", Image: "x", Text: types.SceneText{Content: "p1|p2"}, Duration: 9, TransitionDuration: 0.5},
		{SceneId: "b", Image: "y", Text: types.SceneText{Content: "p1"}, Duration: 9, TransitionDuration: 0.5},
	}}

	segs := r.Segments(tl)
	require.Len(t, segs, 3)

	// Segment starts must align with SceneStartTimeTts-derived boundaries to
	// within a millisecond for every scene.
	assert.InDelta(t, r.SceneStartTimeTts(tl, 0), segs[0].StartSec, 0.001)
	assert.InDelta(t, 1.25, segs[1].StartSec, 0.001)
	assert.InDelta(t, r.SceneStartTimeTts(tl, 1), segs[2].StartSec, 0.001)
	assert.InDelta(t, 2.0, segs[2].StartSec, 0.001)
	assert.InDelta(t, 4.0, segs[2].End(), 0.001)
}

func TestResolveTimeToSceneEmptyTimeline(t *testing.T) {
	r := NewResolver(nil)
	_, ok := r.ResolveTimeToScene(&types.Timeline{}, 0)
	assert.False(t, ok)
	assert.Equal(t, 0.0, r.TotalDuration(&types.Timeline{}))
	assert.Equal(t, 0.0, r.TotalVisualDuration(&types.Timeline{}))
}
