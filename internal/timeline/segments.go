// Package timeline holds the pure time arithmetic under the playback engine:
// the segment duration model, the scene boundary resolvers, and the
// copy-on-write timeline store.
package timeline

import (
	"math"

	"clipcast/internal/types"
)

// minPlayableDuration filters out zero-ish segments that would produce
// degenerate boundaries.
const minPlayableDuration = 0.001

// PlayableSegment is a playable clip with its original index preserved. All
// downstream lookups are by original index, never by filtered position.
type PlayableSegment struct {
	Index    int
	Start    float64
	Duration float64
}

// End returns the segment's exclusive upper boundary.
func (s PlayableSegment) End() float64 {
	return s.Start + s.Duration
}

// SegmentDuration returns the clip's playable duration: the duration hint when
// positive, otherwise the selection window. Never negative.
func SegmentDuration(c types.ClipSource) float64 {
	if c.DurationHint > 0 {
		return c.DurationHint
	}
	return math.Max(0, c.SelectionEnd-c.SelectionStart)
}

// IsPlayable reports whether the clip has a resolvable media reference and a
// meaningful duration.
func IsPlayable(c types.ClipSource) bool {
	return c.MediaHandle != "" && SegmentDuration(c) > minPlayableDuration
}

// PlayableSegments filters to playable clips, computing cumulative start
// offsets while preserving original indices.
func PlayableSegments(clips []types.ClipSource) []PlayableSegment {
	segments := make([]PlayableSegment, 0, len(clips))
	cursor := 0.0
	for i, c := range clips {
		if !IsPlayable(c) {
			continue
		}
		d := SegmentDuration(c)
		segments = append(segments, PlayableSegment{Index: i, Start: cursor, Duration: d})
		cursor += d
	}
	return segments
}

// DurationBeforeIndex sums playable durations of clips with original index < i.
func DurationBeforeIndex(clips []types.ClipSource, i int) float64 {
	total := 0.0
	for _, seg := range PlayableSegments(clips) {
		if seg.Index >= i {
			break
		}
		total += seg.Duration
	}
	return total
}

// TotalPlayableDuration sums all playable durations.
func TotalPlayableDuration(clips []types.ClipSource) float64 {
	total := 0.0
	for _, seg := range PlayableSegments(clips) {
		total += seg.Duration
	}
	return total
}

// ResolveOptions adjusts ResolveAtTime behavior.
type ResolveOptions struct {
	// ForceSceneIndex bypasses the time scan and returns that clip's segment
	// with a zero offset. Callers that already know the target scene (e.g. a
	// segment-end callback) use this instead of re-deriving it from noisy
	// time arithmetic.
	ForceSceneIndex *int
}

// ResolvedClip is the segment containing a requested time plus the relative
// offset within it.
type ResolvedClip struct {
	Segment   PlayableSegment
	SceneTime float64
}

// ResolveAtTime locates the playable segment containing time t. Times past
// the total duration clamp to the last playable segment rather than failing;
// a nil result means there are no playable segments at all.
func ResolveAtTime(clips []types.ClipSource, t float64, opts ResolveOptions) *ResolvedClip {
	segments := PlayableSegments(clips)
	if len(segments) == 0 {
		return nil
	}

	if opts.ForceSceneIndex != nil {
		for _, seg := range segments {
			if seg.Index == *opts.ForceSceneIndex {
				return &ResolvedClip{Segment: seg, SceneTime: 0}
			}
		}
		return nil
	}

	if math.IsNaN(t) || t < 0 {
		t = 0
	}

	for i, seg := range segments {
		last := i == len(segments)-1
		if t < seg.End() || (last && t <= seg.End()) {
			return &ResolvedClip{Segment: seg, SceneTime: t - seg.Start}
		}
	}

	// Floating-point overshoot or out-of-range seek: clamp into the last
	// segment instead of returning nothing mid-playback.
	lastSeg := segments[len(segments)-1]
	return &ResolvedClip{Segment: lastSeg, SceneTime: lastSeg.Duration}
}

// ClampPlaybackTime maps any time into [0, total]. NaN, negative, and
// over-range values all land inside the range; a non-positive total forces 0.
func ClampPlaybackTime(t, total float64) float64 {
	if total <= 0 || math.IsNaN(total) {
		return 0
	}
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if t > total {
		return total
	}
	return t
}
