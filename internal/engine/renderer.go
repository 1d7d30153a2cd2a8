package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"clipcast/internal/types"
	"clipcast/log"
)

// ObjectState is the full set of animatable visual properties. Every float
// field interpolates linearly under the active easing; kinds that don't use a
// field leave it at its resting value.
type ObjectState struct {
	Visible    bool    `json:"visible"`
	Alpha      float64 `json:"alpha"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	ScaleX     float64 `json:"scale_x"`
	ScaleY     float64 `json:"scale_y"`
	Rotation   float64 `json:"rotation"`
	Blur       float64 `json:"blur"`
	MaskRadius float64 `json:"mask_radius"`
	JitterAmp  float64 `json:"jitter_amp"`
	RippleAmp  float64 `json:"ripple_amp"`
}

// restingState is a fully shown object with no animation applied.
func restingState() ObjectState {
	return ObjectState{Visible: true, Alpha: 1, ScaleX: 1, ScaleY: 1, MaskRadius: 1}
}

// SceneVisual pairs the image and subtitle objects of one scene. The pair is
// created once per scene and mutated frame to frame, so committed transforms
// and mid-transition state survive across renders.
type SceneVisual struct {
	SceneIndex int         `json:"scene_index"`
	Image      ObjectState `json:"image"`
	Text       ObjectState `json:"text"`
}

// RenderSink receives the composed frame. Implementations bridge to whatever
// actually draws: a canvas protocol, a websocket, a test recorder.
type RenderSink interface {
	Apply(frame []SceneVisual)
}

// OverlayController toggles the edit-mode manipulation overlay. Playback and
// editing are mutually exclusive surfaces over the same stage.
type OverlayController interface {
	SetVisible(visible bool)
	SetInteractive(interactive bool)
}

// Easing identifiers for AnimationSpec.
const (
	EaseLinear = "linear"
	EaseOut    = "ease-out"
	EaseInOut  = "ease-in-out"
)

// AnimationSpec declares a transition as a From/To state pair plus easing.
// Adding a transition kind is a table entry, not new code paths.
type AnimationSpec struct {
	From   ObjectState
	To     ObjectState
	Easing string
}

// transitionSpecs maps transition kind names to their entry animation,
// applied to the incoming scene's objects.
var transitionSpecs = map[string]AnimationSpec{
	"fade": {
		From:   ObjectState{Visible: true, Alpha: 0, ScaleX: 1, ScaleY: 1, MaskRadius: 1},
		To:     restingState(),
		Easing: EaseInOut,
	},
	"slide-left": {
		From:   ObjectState{Visible: true, Alpha: 0, X: 1, ScaleX: 1, ScaleY: 1, MaskRadius: 1},
		To:     restingState(),
		Easing: EaseOut,
	},
	"slide-right": {
		From:   ObjectState{Visible: true, Alpha: 0, X: -1, ScaleX: 1, ScaleY: 1, MaskRadius: 1},
		To:     restingState(),
		Easing: EaseOut,
	},
	"slide-up": {
		From:   ObjectState{Visible: true, Alpha: 0, Y: 1, ScaleX: 1, ScaleY: 1, MaskRadius: 1},
		To:     restingState(),
		Easing: EaseOut,
	},
	"slide-down": {
		From:   ObjectState{Visible: true, Alpha: 0, Y: -1, ScaleX: 1, ScaleY: 1, MaskRadius: 1},
		To:     restingState(),
		Easing: EaseOut,
	},
	"zoom-in": {
		From:   ObjectState{Visible: true, Alpha: 0, ScaleX: 0.6, ScaleY: 0.6, MaskRadius: 1},
		To:     restingState(),
		Easing: EaseOut,
	},
	"zoom-out": {
		From:   ObjectState{Visible: true, Alpha: 0, ScaleX: 1.4, ScaleY: 1.4, MaskRadius: 1},
		To:     restingState(),
		Easing: EaseOut,
	},
	"rotate": {
		From:   ObjectState{Visible: true, Alpha: 0, ScaleX: 0.8, ScaleY: 0.8, Rotation: -90, MaskRadius: 1},
		To:     restingState(),
		Easing: EaseInOut,
	},
	"blur": {
		From:   ObjectState{Visible: true, Alpha: 0.3, ScaleX: 1, ScaleY: 1, Blur: 12, MaskRadius: 1},
		To:     restingState(),
		Easing: EaseOut,
	},
	"glitch": {
		From:   ObjectState{Visible: true, Alpha: 0.6, ScaleX: 1, ScaleY: 1, JitterAmp: 1, MaskRadius: 1},
		To:     restingState(),
		Easing: EaseLinear,
	},
	"ripple": {
		From:   ObjectState{Visible: true, Alpha: 0.5, ScaleX: 1, ScaleY: 1, RippleAmp: 1, MaskRadius: 1},
		To:     restingState(),
		Easing: EaseOut,
	},
	"circle-wipe": {
		From:   ObjectState{Visible: true, Alpha: 1, ScaleX: 1, ScaleY: 1, MaskRadius: 0},
		To:     restingState(),
		Easing: EaseInOut,
	},
}

// TransitionKinds lists the supported transition names.
func TransitionKinds() []string {
	kinds := make([]string, 0, len(transitionSpecs))
	for k := range transitionSpecs {
		kinds = append(kinds, k)
	}
	return kinds
}

func specFor(kind string) (AnimationSpec, bool) {
	if kind == "" || kind == "none" {
		return AnimationSpec{}, false
	}
	spec, ok := transitionSpecs[kind]
	if !ok {
		spec = transitionSpecs["fade"]
	}
	return spec, true
}

func ease(name string, p float64) float64 {
	switch name {
	case EaseOut:
		return 1 - (1-p)*(1-p)
	case EaseInOut:
		if p < 0.5 {
			return 2 * p * p
		}
		return 1 - 2*(1-p)*(1-p)
	default:
		return p
	}
}

func lerp(a, b, p float64) float64 {
	return a + (b-a)*p
}

func lerpState(from, to ObjectState, p float64) ObjectState {
	return ObjectState{
		Visible:    true,
		Alpha:      lerp(from.Alpha, to.Alpha, p),
		X:          lerp(from.X, to.X, p),
		Y:          lerp(from.Y, to.Y, p),
		ScaleX:     lerp(from.ScaleX, to.ScaleX, p),
		ScaleY:     lerp(from.ScaleY, to.ScaleY, p),
		Rotation:   lerp(from.Rotation, to.Rotation, p),
		Blur:       lerp(from.Blur, to.Blur, p),
		MaskRadius: lerp(from.MaskRadius, to.MaskRadius, p),
		JitterAmp:  lerp(from.JitterAmp, to.JitterAmp, p),
		RippleAmp:  lerp(from.RippleAmp, to.RippleAmp, p),
	}
}

// TransformTarget selects which object of a scene a committed transform
// applies to.
type TransformTarget string

const (
	TargetImage TransformTarget = "image"
	TargetText  TransformTarget = "text"
)

// TransformSaver persists a committed transform. Called off the render path
// after the debounce window closes.
type TransformSaver func(sceneIndex int, target TransformTarget, tr types.Transform)

type activeTransition struct {
	sceneIndex int
	spec       AnimationSpec
	startTime  float64
	duration   float64
}

// Renderer composes the per-scene visual frame: one visible scene, the rest
// hidden, with the incoming scene's transition animation layered on top.
type Renderer struct {
	mu sync.Mutex

	sink    RenderSink
	overlay OverlayController

	objects    map[int]*SceneVisual
	lastScene  int
	transition *activeTransition

	// Committed-but-unsaved transforms, consulted before the timeline's own
	// so the preview tracks the edit without waiting for the debounced save.
	overrides map[int]map[TransformTarget]types.Transform

	editMode bool
	playing  bool

	saveFn    TransformSaver
	saveDelay time.Duration
	saveTimer *time.Timer
	saving    bool
	pending   []pendingSave
}

type pendingSave struct {
	sceneIndex int
	target     TransformTarget
	transform  types.Transform
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

func WithTransformSaver(fn TransformSaver) RendererOption {
	return func(r *Renderer) { r.saveFn = fn }
}

func WithSaveDelay(d time.Duration) RendererOption {
	return func(r *Renderer) { r.saveDelay = d }
}

func NewRenderer(sink RenderSink, overlay OverlayController, opts ...RendererOption) *Renderer {
	r := &Renderer{
		sink:      sink,
		overlay:   overlay,
		objects:   make(map[int]*SceneVisual),
		overrides: make(map[int]map[TransformTarget]types.Transform),
		lastScene: -1,
		saveDelay: 400 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenderAt composes and applies the frame for timeline time t with the given
// scene visible. skipAnimation suppresses the entry transition, used by seeks
// and paused scrubbing.
func (r *Renderer) RenderAt(tl *types.Timeline, sceneIndex int, t float64, skipAnimation bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tl == nil || sceneIndex < 0 || sceneIndex >= len(tl.Scenes) {
		return
	}

	if sceneIndex != r.lastScene {
		r.maybeStartTransitionLocked(tl, sceneIndex, t, skipAnimation)
		r.lastScene = sceneIndex
	} else if skipAnimation {
		r.transition = nil
	}

	frame := make([]SceneVisual, 0, len(tl.Scenes))
	for i := range tl.Scenes {
		obj := r.objectLocked(i)
		if i != sceneIndex {
			obj.Image.Visible = false
			obj.Text.Visible = false
			frame = append(frame, *obj)
			continue
		}

		state := restingState()
		if tr := r.transition; tr != nil && tr.sceneIndex == sceneIndex {
			p := 1.0
			if tr.duration > 0 {
				p = (t - tr.startTime) / tr.duration
			}
			if p >= 1 {
				r.transition = nil
			} else {
				if p < 0 {
					p = 0
				}
				state = lerpState(tr.spec.From, tr.spec.To, ease(tr.spec.Easing, p))
			}
		}

		obj.Image = applyTransform(state, r.transformLocked(i, TargetImage, tl.Scenes[i].ImageTransform))
		obj.Text = applyTransform(state, r.transformLocked(i, TargetText, tl.Scenes[i].Text.Transform))
		frame = append(frame, *obj)
	}

	if r.sink != nil {
		r.sink.Apply(frame)
	}
}

// maybeStartTransitionLocked starts the incoming scene's entry animation.
// Suppressed for the very first scene shown, for split siblings (the group
// plays as one continuous visual), and when the caller asked to skip.
func (r *Renderer) maybeStartTransitionLocked(tl *types.Timeline, sceneIndex int, t float64, skip bool) {
	if skip || r.lastScene < 0 {
		r.transition = nil
		return
	}
	if r.lastScene < len(tl.Scenes) && tl.Scenes[sceneIndex].IsSplitSiblingOf(tl.Scenes[r.lastScene]) {
		r.transition = nil
		return
	}

	scene := tl.Scenes[sceneIndex]
	spec, ok := specFor(scene.TransitionType)
	if !ok || scene.TransitionDuration <= 0 {
		r.transition = nil
		return
	}
	r.transition = &activeTransition{
		sceneIndex: sceneIndex,
		spec:       spec,
		startTime:  t,
		duration:   scene.TransitionDuration,
	}
}

// objectLocked returns the persistent visual pair for a scene, creating it
// lazily on first render.
func (r *Renderer) objectLocked(sceneIndex int) *SceneVisual {
	obj, ok := r.objects[sceneIndex]
	if !ok {
		obj = &SceneVisual{SceneIndex: sceneIndex, Image: restingState(), Text: restingState()}
		r.objects[sceneIndex] = obj
	}
	return obj
}

// transformLocked prefers a committed-but-unsaved override over the
// timeline's persisted transform.
func (r *Renderer) transformLocked(sceneIndex int, target TransformTarget, saved *types.Transform) *types.Transform {
	if byTarget, ok := r.overrides[sceneIndex]; ok {
		if tr, ok := byTarget[target]; ok {
			return &tr
		}
	}
	return saved
}

// applyTransform layers a saved user transform over the animation state.
func applyTransform(state ObjectState, tr *types.Transform) ObjectState {
	if tr == nil {
		return state
	}
	state.X += tr.X
	state.Y += tr.Y
	if tr.ScaleX > 0 {
		state.ScaleX *= tr.ScaleX
	}
	if tr.ScaleY > 0 {
		state.ScaleY *= tr.ScaleY
	}
	state.Rotation += tr.Rotation
	return state
}

// SetPlaying updates playback state and re-evaluates overlay exclusivity.
func (r *Renderer) SetPlaying(playing bool) {
	r.mu.Lock()
	r.playing = playing
	r.updateOverlayLocked()
	r.mu.Unlock()
}

// SetEditMode toggles edit mode and re-evaluates overlay exclusivity.
func (r *Renderer) SetEditMode(editMode bool) {
	r.mu.Lock()
	r.editMode = editMode
	r.updateOverlayLocked()
	r.mu.Unlock()
}

// The overlay is visible and interactive only while editing and not playing.
func (r *Renderer) updateOverlayLocked() {
	if r.overlay == nil {
		return
	}
	active := r.editMode && !r.playing
	r.overlay.SetVisible(active)
	r.overlay.SetInteractive(active)
}

// CommitTransform applies a user-manipulated transform immediately to the
// local object and schedules a debounced persistence. While the save window
// is open Saving() reports true, which suppresses timeline reload effects
// that would otherwise clobber the in-progress edit.
func (r *Renderer) CommitTransform(sceneIndex int, target TransformTarget, tr types.Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.overrides[sceneIndex] == nil {
		r.overrides[sceneIndex] = make(map[TransformTarget]types.Transform)
	}
	r.overrides[sceneIndex][target] = tr

	r.pending = append(r.pending, pendingSave{sceneIndex: sceneIndex, target: target, transform: tr})
	r.saving = true

	if r.saveTimer != nil {
		r.saveTimer.Stop()
	}
	r.saveTimer = time.AfterFunc(r.saveDelay, r.flushPending)
}

// Flush persists any pending transform immediately, used on shutdown.
func (r *Renderer) Flush() {
	r.mu.Lock()
	if r.saveTimer != nil {
		r.saveTimer.Stop()
		r.saveTimer = nil
	}
	r.mu.Unlock()
	r.flushPending()
}

func (r *Renderer) flushPending() {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	saveFn := r.saveFn
	r.mu.Unlock()

	if saveFn != nil {
		for _, p := range pending {
			saveFn(p.sceneIndex, p.target, p.transform)
		}
	}
	if len(pending) > 0 {
		log.GetLogger().Debug("persisted transforms", zap.Int("count", len(pending)))
	}

	r.mu.Lock()
	if len(r.pending) == 0 {
		r.saving = false
		// The timeline now carries the saved transforms; drop overrides that
		// were not re-committed meanwhile.
		for _, p := range pending {
			if byTarget, ok := r.overrides[p.sceneIndex]; ok {
				if cur, ok := byTarget[p.target]; ok && cur == p.transform {
					delete(byTarget, p.target)
				}
			}
		}
	}
	r.mu.Unlock()
}

// Saving reports whether a transform save is pending or in progress.
func (r *Renderer) Saving() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saving
}

// Reset drops all persistent scene objects, used when the timeline is
// replaced wholesale.
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects = make(map[int]*SceneVisual)
	r.overrides = make(map[int]map[TransformTarget]types.Transform)
	r.lastScene = -1
	r.transition = nil
}
