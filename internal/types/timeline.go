package types

import "strings"

// PartDelimiter splits a scene script into independently spoken parts.
const PartDelimiter = "|"

// Transform is a 2D placement saved back from the edit overlay.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ScaleX   float64 `json:"scale_x"`
	ScaleY   float64 `json:"scale_y"`
	Rotation float64 `json:"rotation"`
}

// SceneText is the subtitle block rendered over the scene image.
type SceneText struct {
	Content   string     `json:"content"`
	Font      string     `json:"font"`
	Color     string     `json:"color"`
	Position  string     `json:"position"`
	Style     string     `json:"style"`
	Transform *Transform `json:"transform,omitempty"`
}

// Scene is one visual unit: an image plus one or more spoken parts.
type Scene struct {
	SceneId        string     `json:"scene_id"`
	SplitIndex     int        `json:"split_index"`
	Image          string     `json:"image"`
	ImageFit       string     `json:"image_fit"`
	ImageTransform *Transform `json:"image_transform,omitempty"`
	Text           SceneText  `json:"text"`

	// Duration is a text-length heuristic until measured TTS audio replaces it.
	Duration float64 `json:"duration"`
	// ActualPlaybackDuration is the measured TTS sum, zero until known.
	ActualPlaybackDuration float64 `json:"actual_playback_duration,omitempty"`

	TransitionType     string  `json:"transition_type"`
	TransitionDuration float64 `json:"transition_duration"`

	VoiceTemplate   string   `json:"voice_template,omitempty"`
	SoundEffect     string   `json:"sound_effect,omitempty"`
	AdvancedEffects []string `json:"advanced_effects,omitempty"`
	Motion          string   `json:"motion,omitempty"`
}

// Parts returns the trimmed, non-empty spoken parts of the scene script.
func (s Scene) Parts() []string {
	raw := strings.Split(s.Text.Content, PartDelimiter)
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// IsSplitSiblingOf reports whether the two scenes belong to one split group.
// Transitions between siblings are suppressed so the group plays as one
// continuous visual unit.
func (s Scene) IsSplitSiblingOf(other Scene) bool {
	return s.SceneId != "" && s.SceneId == other.SceneId && s.SplitIndex != other.SplitIndex
}

// ResolvedVoice returns the scene-level voice override, else the global voice.
func (s Scene) ResolvedVoice(globalVoice string) string {
	if s.VoiceTemplate != "" {
		return s.VoiceTemplate
	}
	return globalVoice
}

// Timeline is the ordered scene list plus global playback settings. It is
// treated as immutable: edits go through the store as full replacements.
type Timeline struct {
	Scenes        []Scene `json:"scenes"`
	PlaybackSpeed float64 `json:"playback_speed"`
	GlobalVoice   string  `json:"global_voice"`
	BgmHandle     string  `json:"bgm_handle,omitempty"`
	BgmVolume     float64 `json:"bgm_volume,omitempty"`
}

// Clone performs a deep copy so copy-on-write edits never alias scene slices.
func (t *Timeline) Clone() *Timeline {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Scenes = make([]Scene, len(t.Scenes))
	copy(cp.Scenes, t.Scenes)
	for i := range cp.Scenes {
		if tr := cp.Scenes[i].ImageTransform; tr != nil {
			trCopy := *tr
			cp.Scenes[i].ImageTransform = &trCopy
		}
		if tr := cp.Scenes[i].Text.Transform; tr != nil {
			trCopy := *tr
			cp.Scenes[i].Text.Transform = &trCopy
		}
		if fx := cp.Scenes[i].AdvancedEffects; fx != nil {
			fxCopy := make([]string, len(fx))
			copy(fxCopy, fx)
			cp.Scenes[i].AdvancedEffects = fxCopy
		}
	}
	return &cp
}

// Speed returns the playback speed with the zero value treated as 1x.
func (t *Timeline) Speed() float64 {
	if t == nil || t.PlaybackSpeed <= 0 {
		return 1.0
	}
	return t.PlaybackSpeed
}

// ClipSource is the generic shape the segment-duration model operates on.
// TTS scenes and media clips both reduce to it.
type ClipSource struct {
	DurationHint   float64
	SelectionStart float64
	SelectionEnd   float64
	MediaHandle    string
}

// ClipSourceOf reduces a scene to the generic clip shape using the best-known
// duration for that scene.
func ClipSourceOf(s Scene, bestDuration float64) ClipSource {
	return ClipSource{
		DurationHint: bestDuration,
		MediaHandle:  s.Image,
	}
}
