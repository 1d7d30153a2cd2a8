package types

// PlaybackMode identifies the transport's playing state.
type PlaybackMode uint8

const (
	ModeStopped PlaybackMode = iota
	ModeFull
	ModeScene
	ModeGroup
)

func (m PlaybackMode) String() string {
	switch m {
	case ModeStopped:
		return "stopped"
	case ModeFull:
		return "full"
	case ModeScene:
		return "scene"
	case ModeGroup:
		return "group"
	default:
		return "unknown"
	}
}

// IsPlaying reports whether the mode represents active playback.
func (m PlaybackMode) IsPlaying() bool {
	return m == ModeFull || m == ModeScene || m == ModeGroup
}

// Segment is a resolved, immutable-for-one-frame view of one spoken part on
// the TTS-only timeline. Never persisted; recomputed when cache or timeline
// changes.
type Segment struct {
	SceneIndex  int     `json:"scene_index"`
	PartIndex   int     `json:"part_index"`
	StartSec    float64 `json:"start_sec"`
	DurationSec float64 `json:"duration_sec"`
}

// End returns the segment's end time on the TTS-only timeline.
func (s Segment) End() float64 {
	return s.StartSec + s.DurationSec
}

// PlaybackState is the observable tuple consumed by the UI.
type PlaybackState struct {
	CurrentTime       float64      `json:"current_time"`
	IsPlaying         bool         `json:"is_playing"`
	Mode              PlaybackMode `json:"-"`
	ModeName          string       `json:"mode"`
	CurrentSceneIndex int          `json:"current_scene_index"`
	ProgressRatio     float64      `json:"progress_ratio"`
	TotalDuration     float64      `json:"total_duration"`
	// PlaybackEndTime is the stop boundary for scene/group modes; equals
	// TotalDuration in full playback.
	PlaybackEndTime float64 `json:"playback_end_time"`
}
