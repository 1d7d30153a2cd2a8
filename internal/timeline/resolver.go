package timeline

import (
	"clipcast/internal/types"

	"github.com/samber/lo"
)

// DurationSource supplies measured per-part TTS durations for a scene. ok is
// false until every part of the scene has been synthesized and measured.
type DurationSource interface {
	PartDurations(scene types.Scene) ([]float64, bool)
}

// Resolver computes scene boundaries and maps timeline time to
// (scene, part, offset). Two boundary systems coexist on purpose:
//
//   - TTS-only boundaries (audio alignment): cumulative duration, no
//     transition time, because transitions overlay continuous audio.
//   - visual boundaries (progress display): duration plus transition time.
//
// Both derive from the same per-scene durations. Conflating them causes
// audio/visual drift.
type Resolver struct {
	durations DurationSource
}

func NewResolver(durations DurationSource) *Resolver {
	return &Resolver{durations: durations}
}

// SceneDuration returns the best known duration for scene i: the measured TTS
// sum once known, the heuristic field before that. Measured always wins, so
// totals improve monotonically and never revert.
func (r *Resolver) SceneDuration(tl *types.Timeline, i int) float64 {
	if tl == nil || i < 0 || i >= len(tl.Scenes) {
		return 0
	}
	if parts, ok := r.measuredParts(tl.Scenes[i]); ok {
		return lo.Sum(parts)
	}
	scene := tl.Scenes[i]
	if scene.ActualPlaybackDuration > 0 {
		return scene.ActualPlaybackDuration
	}
	if scene.Duration < 0 {
		return 0
	}
	return scene.Duration
}

func (r *Resolver) measuredParts(scene types.Scene) ([]float64, bool) {
	if r.durations == nil {
		return nil, false
	}
	return r.durations.PartDurations(scene)
}

// PartDurations returns per-part durations for scene i on the TTS-only
// timeline. When measurements are incomplete the heuristic duration is split
// evenly across the declared parts so part boundaries stay resolvable.
func (r *Resolver) PartDurations(tl *types.Timeline, i int) []float64 {
	if tl == nil || i < 0 || i >= len(tl.Scenes) {
		return nil
	}
	scene := tl.Scenes[i]
	if parts, ok := r.measuredParts(scene); ok {
		return parts
	}
	n := len(scene.Parts())
	if n == 0 {
		n = 1
	}
	total := r.SceneDuration(tl, i)
	even := make([]float64, n)
	for j := range even {
		even[j] = total / float64(n)
	}
	return even
}

// TotalDuration sums best-known scene durations (TTS-only timeline).
func (r *Resolver) TotalDuration(tl *types.Timeline) float64 {
	if tl == nil {
		return 0
	}
	total := 0.0
	for i := range tl.Scenes {
		total += r.SceneDuration(tl, i)
	}
	return total
}

// effectiveTransition returns the transition duration spent entering scene i.
// Zero for the first scene and between split siblings.
func effectiveTransition(tl *types.Timeline, i int) float64 {
	if i <= 0 || i >= len(tl.Scenes) {
		return 0
	}
	if tl.Scenes[i].IsSplitSiblingOf(tl.Scenes[i-1]) {
		return 0
	}
	if tl.Scenes[i].TransitionDuration < 0 {
		return 0
	}
	return tl.Scenes[i].TransitionDuration
}

// SceneStartTime returns the visual start boundary of scene i: cumulative
// duration plus transition time, with transitions suppressed between split
// siblings. The final scene carries no trailing transition past the end.
func (r *Resolver) SceneStartTime(tl *types.Timeline, i int) float64 {
	if tl == nil || i < 0 {
		return 0
	}
	start := 0.0
	for j := 0; j < i && j < len(tl.Scenes); j++ {
		start += r.SceneDuration(tl, j)
		start += effectiveTransition(tl, j+1)
	}
	return start
}

// TotalVisualDuration is the visual end boundary of the last scene.
func (r *Resolver) TotalVisualDuration(tl *types.Timeline) float64 {
	if tl == nil || len(tl.Scenes) == 0 {
		return 0
	}
	last := len(tl.Scenes) - 1
	return r.SceneStartTime(tl, last) + r.SceneDuration(tl, last)
}

// SceneStartTimeTts returns the audio-alignment start boundary of scene i:
// cumulative duration only, no transition time.
func (r *Resolver) SceneStartTimeTts(tl *types.Timeline, i int) float64 {
	if tl == nil || i < 0 {
		return 0
	}
	start := 0.0
	for j := 0; j < i && j < len(tl.Scenes); j++ {
		start += r.SceneDuration(tl, j)
	}
	return start
}

// ScenePosition is a fully resolved position: scene, part, and offsets.
type ScenePosition struct {
	SceneIndex   int
	PartIndex    int
	SceneStart   float64 // TTS-only scene start
	PartStart    float64 // TTS-only part start (absolute)
	PartDuration float64
	SceneOffset  float64 // t - SceneStart
	PartOffset   float64 // t - PartStart
}

// ResolveTimeToScene maps a TTS-only timeline time to a scene and part.
// Interior boundaries are half-open [start, end) so a time exactly on a
// boundary resolves forward to the next scene; the final scene (and final
// part) use a closed interval so the very end of the timeline still resolves.
func (r *Resolver) ResolveTimeToScene(tl *types.Timeline, t float64) (ScenePosition, bool) {
	if tl == nil || len(tl.Scenes) == 0 {
		return ScenePosition{}, false
	}

	start := 0.0
	for i := range tl.Scenes {
		d := r.SceneDuration(tl, i)
		end := start + d
		last := i == len(tl.Scenes)-1
		if t < end || (last && t <= end) {
			if t < start {
				// Time before the first positive-duration scene.
				t = start
			}
			pos := ScenePosition{
				SceneIndex:  i,
				SceneStart:  start,
				SceneOffset: t - start,
			}
			r.resolvePart(tl, i, t, &pos)
			return pos, true
		}
		start = end
	}
	return ScenePosition{}, false
}

func (r *Resolver) resolvePart(tl *types.Timeline, sceneIndex int, t float64, pos *ScenePosition) {
	parts := r.PartDurations(tl, sceneIndex)
	partStart := pos.SceneStart
	for j, d := range parts {
		end := partStart + d
		last := j == len(parts)-1
		if t < end || (last && t <= end) {
			pos.PartIndex = j
			pos.PartStart = partStart
			pos.PartDuration = d
			pos.PartOffset = t - partStart
			if pos.PartOffset < 0 {
				pos.PartOffset = 0
			}
			return
		}
		partStart = end
	}
	// Overshoot within the scene: clamp to the final part.
	if n := len(parts); n > 0 {
		d := parts[n-1]
		pos.PartIndex = n - 1
		pos.PartStart = partStart - d
		pos.PartDuration = d
		pos.PartOffset = d
	}
}

// Segments flattens the timeline into TTS-only part segments, the list the
// audio track player schedules from.
func (r *Resolver) Segments(tl *types.Timeline) []types.Segment {
	if tl == nil {
		return nil
	}
	segments := make([]types.Segment, 0, len(tl.Scenes))
	start := 0.0
	for i := range tl.Scenes {
		for j, d := range r.PartDurations(tl, i) {
			segments = append(segments, types.Segment{
				SceneIndex:  i,
				PartIndex:   j,
				StartSec:    start,
				DurationSec: d,
			})
			start += d
		}
	}
	return segments
}
