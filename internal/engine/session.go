package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"clipcast/internal/timeline"
	"clipcast/internal/types"
	"clipcast/log"
	apperrors "clipcast/pkg/errors"
)

// ScenePreparer synthesizes and caches a scene's audio parts. Satisfied by
// the tts manager.
type ScenePreparer interface {
	PrepareScene(ctx context.Context, tl *types.Timeline, sceneIndex int, forceRegenerate bool) ([]*types.TtsCacheEntry, error)
	SceneEntries(scene types.Scene) ([]*types.TtsCacheEntry, bool)
}

// SessionConfig wires a session's collaborators. Clocks default to a frame
// clock and an audio hardware clock when nil.
type SessionConfig struct {
	Id       string
	Store    *timeline.Store
	Preparer ScenePreparer

	AudioSink  AudioSink
	RenderSink RenderSink
	Overlay    OverlayController
	EffectSink OneShotSink
	MusicSink  MusicSink

	FrameClock Clock
	AudioClock Clock

	TickInterval       time.Duration
	PrepareConcurrency int
}

// Session is one preview playback instance. All playback state lives behind a
// single run-loop goroutine: public methods enqueue commands and the loop is
// the only writer, so there is exactly one reducer over the transport, track,
// renderer and effect player.
type Session struct {
	id string

	store    *timeline.Store
	resolver *timeline.Resolver
	preparer ScenePreparer

	transport  *Transport
	track      *TrackPlayer
	renderer   *Renderer
	sfx        *SoundEffectPlayer
	music      *MusicPlayer
	audioClock Clock

	prepareConcurrency int

	commands  chan func()
	done      chan struct{}
	closeOnce sync.Once
	dirty     atomic.Bool

	stateMu  sync.RWMutex
	state    types.PlaybackState
	watchers []func(types.PlaybackState)
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.FrameClock == nil {
		cfg.FrameClock = NewFrameClock()
	}
	if cfg.AudioClock == nil {
		cfg.AudioClock = NewAudioHardwareClock()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 33 * time.Millisecond
	}
	if cfg.PrepareConcurrency <= 0 {
		cfg.PrepareConcurrency = 2
	}
	if cfg.Store == nil {
		cfg.Store = timeline.NewStore(nil)
	}

	s := &Session{
		id:                 cfg.Id,
		store:              cfg.Store,
		preparer:           cfg.Preparer,
		audioClock:         cfg.AudioClock,
		prepareConcurrency: cfg.PrepareConcurrency,
		commands:           make(chan func()),
		done:               make(chan struct{}),
	}

	if cfg.Preparer != nil {
		s.resolver = timeline.NewResolver(preparerDurations{cfg.Preparer})
	} else {
		s.resolver = timeline.NewResolver(nil)
	}

	s.transport = NewTransport(cfg.FrameClock, cfg.AudioClock)
	s.track = NewTrackPlayer(cfg.AudioSink, s.bufferFor)
	s.renderer = NewRenderer(cfg.RenderSink, cfg.Overlay, WithTransformSaver(s.saveTransform))
	s.sfx = NewSoundEffectPlayer(cfg.EffectSink)
	s.music = NewMusicPlayer(cfg.MusicSink)

	s.track.SetHandlers(s.onSegmentStart, s.onSegmentEnd)
	s.store.Watch(func(*types.Timeline) { s.dirty.Store(true) })

	s.refresh()
	s.publish()
	go s.run(cfg.TickInterval)
	return s
}

// preparerDurations adapts ScenePreparer to the resolver's duration source.
type preparerDurations struct {
	p ScenePreparer
}

func (d preparerDurations) PartDurations(scene types.Scene) ([]float64, bool) {
	entries, ok := d.p.SceneEntries(scene)
	if !ok {
		return nil, false
	}
	parts := make([]float64, len(entries))
	for i, e := range entries {
		parts[i] = e.DurationSec
	}
	return parts, true
}

func (s *Session) Id() string {
	return s.id
}

func (s *Session) run(tickInterval time.Duration) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			s.track.Stop()
			s.sfx.StopAll()
			s.music.Stop()
			s.renderer.Flush()
			return
		case cmd := <-s.commands:
			cmd()
		case <-ticker.C:
			s.safeStep()
		}
	}
}

// safeStep shields the run loop from the tick path: a panic is logged and the
// next tick continues from the last valid state.
func (s *Session) safeStep() {
	defer func() {
		if r := recover(); r != nil {
			log.GetLogger().Error("frame tick panicked",
				zap.String("session_id", s.id),
				zap.Any("panic", r))
		}
	}()
	s.step()
}

// do runs fn on the run loop and returns its error.
func (s *Session) do(fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case s.commands <- func() {
		defer func() {
			if r := recover(); r != nil {
				log.GetLogger().Error("session command panicked", zap.Any("panic", r))
				errCh <- apperrors.New(apperrors.CodeUnknown, "Internal playback error")
			}
		}()
		errCh <- fn()
	}:
	case <-s.done:
		return apperrors.ErrSessionNotFound
	}
	select {
	case err := <-errCh:
		return err
	case <-s.done:
		return apperrors.ErrSessionNotFound
	}
}

// step is the per-tick reducer: advance the playhead, move the audio track,
// render the frame, publish the observable state.
func (s *Session) step() {
	if s.dirty.Swap(false) {
		s.refresh()
	}

	if !s.transport.Mode().IsPlaying() {
		return
	}

	t, stopped := s.transport.Tick()
	tl := s.store.Snapshot()

	if ended := s.track.Advance(t); ended {
		// Event-driven stop: the track ran past its last allowed segment.
		s.transport.NotifyRangeEnd()
		t = s.transport.Time()
		stopped = true
	}

	if pos, ok := s.resolver.ResolveTimeToScene(tl, t); ok {
		s.renderer.RenderAt(tl, pos.SceneIndex, t, false)
	}

	if stopped {
		s.onStopped()
	}
	s.publish()
}

func (s *Session) onStopped() {
	s.track.Stop()
	s.sfx.StopAll()
	s.music.Stop()
	s.renderer.SetPlaying(false)
}

// refresh recomputes derived playback data after a timeline change: segments,
// total duration (with proportional playhead rescale mid-playback), speed.
// Frame re-render is suppressed while a transform save is pending so the
// reload cannot clobber the in-progress edit.
func (s *Session) refresh() {
	tl := s.store.Snapshot()
	s.transport.SetTotalDuration(s.resolver.TotalDuration(tl))
	s.transport.SetSpeed(tl.Speed())
	s.track.SetSegments(s.resolver.Segments(tl))

	if s.renderer.Saving() {
		return
	}
	if !s.transport.Mode().IsPlaying() {
		t := s.transport.Time()
		if pos, ok := s.resolver.ResolveTimeToScene(tl, t); ok {
			s.renderer.RenderAt(tl, pos.SceneIndex, t, true)
		}
	}
}

// bufferFor resolves synthesized bytes for a part from the cache.
func (s *Session) bufferFor(sceneIndex, partIndex int) ([]byte, bool) {
	if s.preparer == nil {
		return nil, false
	}
	tl := s.store.Snapshot()
	if sceneIndex < 0 || sceneIndex >= len(tl.Scenes) {
		return nil, false
	}
	entries, ok := s.preparer.SceneEntries(tl.Scenes[sceneIndex])
	if !ok || partIndex < 0 || partIndex >= len(entries) {
		return nil, false
	}
	return entries[partIndex].AudioBytes, true
}

// onSegmentStart anchors the playhead to the audio hardware clock and fires
// the scene's sound effect. The sink reports its start offset before Play
// returns, so boundary time plus the clock reading is the playhead position.
func (s *Session) onSegmentStart(ev SegmentEvent) {
	s.transport.AnchorAudio(ev.BoundaryTime + s.audioClock.Now())

	tl := s.store.Snapshot()
	if ev.SceneIndex >= 0 && ev.SceneIndex < len(tl.Scenes) {
		s.sfx.OnSegmentStart(ev.SceneIndex, ev.PartIndex, tl.Scenes[ev.SceneIndex].SoundEffect)
	}
}

func (s *Session) onSegmentEnd(ev SegmentEvent) {
	s.sfx.OnSegmentEnd(ev.SceneIndex, ev.PartIndex)
}

// Prepare synthesizes every scene's audio before playback, recording measured
// durations into the timeline as each scene completes. Safe to call again;
// cached scenes are free.
func (s *Session) Prepare(ctx context.Context, forceRegenerate bool) error {
	tl := s.store.Snapshot()
	if len(tl.Scenes) == 0 {
		return apperrors.ErrTimelineEmpty
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.prepareConcurrency)
	for i := range tl.Scenes {
		i := i
		g.Go(func() error {
			entries, err := s.preparer.PrepareScene(gctx, tl, i, forceRegenerate)
			if err != nil {
				return err
			}
			total := 0.0
			for _, e := range entries {
				total += e.DurationSec
			}
			s.store.SetMeasuredDuration(i, total)
			return nil
		})
	}
	return g.Wait()
}

// Play starts or resumes full-timeline playback from the current playhead.
func (s *Session) Play() error {
	return s.do(func() error {
		tl := s.store.Snapshot()
		if err := s.checkPlayable(tl); err != nil {
			return err
		}

		total := s.resolver.TotalDuration(tl)
		s.transport.PlayFull(total)
		s.track.SetAllowedSceneIndices(nil)
		if err := s.track.PlayFrom(s.transport.Time()); err != nil {
			s.transport.Pause()
			return err
		}
		s.renderer.SetPlaying(true)
		s.sfx.ResumeAll()
		s.music.Start(tl.BgmHandle, tl.BgmVolume)
		s.publish()
		return nil
	})
}

// PlayScene plays exactly one scene and stops at its end.
func (s *Session) PlayScene(sceneIndex int) error {
	return s.do(func() error {
		tl := s.store.Snapshot()
		if sceneIndex < 0 || sceneIndex >= len(tl.Scenes) {
			return apperrors.ErrInvalidParams
		}
		if err := s.checkPlayable(tl); err != nil {
			return err
		}

		start := s.resolver.SceneStartTimeTts(tl, sceneIndex)
		end := start + s.resolver.SceneDuration(tl, sceneIndex)
		return s.playRange(types.ModeScene, []int{sceneIndex}, start, end, tl)
	})
}

// PlayGroup plays every split sibling sharing the scene id, in order, and
// stops after the last.
func (s *Session) PlayGroup(sceneId string) error {
	return s.do(func() error {
		tl := s.store.Snapshot()
		if err := s.checkPlayable(tl); err != nil {
			return err
		}

		var indices []int
		for i := range tl.Scenes {
			if tl.Scenes[i].SceneId == sceneId {
				indices = append(indices, i)
			}
		}
		if len(indices) == 0 {
			return apperrors.ErrInvalidParams
		}

		start := s.resolver.SceneStartTimeTts(tl, indices[0])
		last := indices[len(indices)-1]
		end := s.resolver.SceneStartTimeTts(tl, last) + s.resolver.SceneDuration(tl, last)
		return s.playRange(types.ModeGroup, indices, start, end, tl)
	})
}

func (s *Session) playRange(mode types.PlaybackMode, indices []int, start, end float64, tl *types.Timeline) error {
	if end-start <= boundaryEpsilon {
		return apperrors.ErrSegmentNotFound
	}
	s.transport.PlayRange(mode, start, end, s.resolver.TotalDuration(tl))
	s.track.SetAllowedSceneIndices(indices)
	if err := s.track.PlayFrom(start); err != nil {
		s.transport.Pause()
		return err
	}
	s.renderer.SetPlaying(true)
	s.sfx.ResumeAll()
	s.music.Start(tl.BgmHandle, tl.BgmVolume)
	s.publish()
	return nil
}

// checkPlayable enforces the playback preconditions: a non-empty timeline and
// a resolvable voice for every scene with spoken text.
func (s *Session) checkPlayable(tl *types.Timeline) error {
	if len(tl.Scenes) == 0 || s.resolver.TotalDuration(tl) <= 0 {
		return apperrors.ErrTimelineEmpty
	}
	for i := range tl.Scenes {
		if len(tl.Scenes[i].Parts()) == 0 {
			continue
		}
		if tl.Scenes[i].ResolvedVoice(tl.GlobalVoice) == "" {
			return apperrors.ErrVoiceRequired
		}
	}
	return nil
}

// Pause freezes playback. Audio, effects and the playhead stop in lockstep.
func (s *Session) Pause() error {
	return s.do(func() error {
		s.transport.Pause()
		s.track.Pause()
		s.sfx.PauseAll()
		s.music.Pause()
		s.renderer.SetPlaying(false)
		s.publish()
		return nil
	})
}

// Seek moves the playhead without changing the play/pause state. A seek while
// playing repositions the audio; a seek while paused just re-renders the
// frame, with transitions suppressed either way.
func (s *Session) Seek(to float64) error {
	return s.do(func() error {
		tl := s.store.Snapshot()
		playing := s.transport.Mode().IsPlaying()

		s.transport.Seek(to)
		t := s.transport.Time()

		if playing {
			if err := s.track.PlayFrom(t); err != nil {
				return err
			}
		}
		if pos, ok := s.resolver.ResolveTimeToScene(tl, t); ok {
			s.renderer.RenderAt(tl, pos.SceneIndex, t, true)
		}
		s.publish()
		return nil
	})
}

// SetEditMode toggles the manipulation overlay; editing excludes playback.
func (s *Session) SetEditMode(editMode bool) error {
	return s.do(func() error {
		if editMode && s.transport.Mode().IsPlaying() {
			s.transport.Pause()
			s.track.Pause()
			s.sfx.PauseAll()
			s.music.Pause()
			s.renderer.SetPlaying(false)
		}
		s.renderer.SetEditMode(editMode)
		s.publish()
		return nil
	})
}

// CommitTransform records an overlay edit; persistence is debounced.
func (s *Session) CommitTransform(sceneIndex int, target TransformTarget, tr types.Transform) error {
	return s.do(func() error {
		tl := s.store.Snapshot()
		if sceneIndex < 0 || sceneIndex >= len(tl.Scenes) {
			return apperrors.ErrInvalidParams
		}
		s.renderer.CommitTransform(sceneIndex, target, tr)
		return nil
	})
}

// saveTransform is the debounced persistence path: write the transform back
// into the timeline as a copy-on-write update.
func (s *Session) saveTransform(sceneIndex int, target TransformTarget, tr types.Transform) {
	s.store.Update(func(tl *types.Timeline) {
		if sceneIndex < 0 || sceneIndex >= len(tl.Scenes) {
			return
		}
		trCopy := tr
		switch target {
		case TargetText:
			tl.Scenes[sceneIndex].Text.Transform = &trCopy
		default:
			tl.Scenes[sceneIndex].ImageTransform = &trCopy
		}
	})
}

// ReplaceTimeline swaps in a new timeline. Derived playback data refreshes on
// the next tick; the playhead rescales proportionally if full playback is
// running.
func (s *Session) ReplaceTimeline(tl *types.Timeline) error {
	return s.do(func() error {
		if tl == nil {
			return apperrors.ErrInvalidParams
		}
		s.store.Replace(tl)
		s.renderer.Reset()
		if s.dirty.Swap(false) {
			s.refresh()
		}
		s.publish()
		return nil
	})
}

// Timeline returns the current immutable snapshot.
func (s *Session) Timeline() *types.Timeline {
	return s.store.Snapshot()
}

// State returns the last published observable state.
func (s *Session) State() types.PlaybackState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// WatchState registers a callback invoked on every state change.
func (s *Session) WatchState(fn func(types.PlaybackState)) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// publish recomputes the observable tuple and notifies watchers on change.
func (s *Session) publish() {
	tl := s.store.Snapshot()
	t := s.transport.Time()
	mode := s.transport.Mode()
	total := s.transport.TotalDuration()

	next := types.PlaybackState{
		CurrentTime:     t,
		IsPlaying:       mode.IsPlaying(),
		Mode:            mode,
		ModeName:        mode.String(),
		TotalDuration:   total,
		PlaybackEndTime: s.transport.RangeEnd(),
	}
	if total > 0 {
		next.ProgressRatio = t / total
	}
	if pos, ok := s.resolver.ResolveTimeToScene(tl, t); ok {
		next.CurrentSceneIndex = pos.SceneIndex
	}

	s.stateMu.Lock()
	if next == s.state {
		s.stateMu.Unlock()
		return
	}
	s.state = next
	watchers := make([]func(types.PlaybackState), len(s.watchers))
	copy(watchers, s.watchers)
	s.stateMu.Unlock()

	for _, w := range watchers {
		w(next)
	}
}

// Close shuts the session down: the run loop stops audio and effects and
// flushes pending transform saves on its way out.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
