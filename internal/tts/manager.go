package tts

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"clipcast/internal/types"
	"clipcast/log"
	apperrors "clipcast/pkg/errors"
	"clipcast/pkg/util"
)

// Synthesizer produces raw audio bytes for (voice, markup).
type Synthesizer interface {
	Synthesize(ctx context.Context, voice, markup string) ([]byte, error)
}

// AudioFetcher rehydrates bytes for a cache entry that only has a remote URL.
type AudioFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Uploader persists synthesized bytes remotely, best-effort.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
}

// CacheIndex persists cache entry metadata so a cold process can rehydrate
// remote audio instead of resynthesizing. Save and Delete are best-effort.
type CacheIndex interface {
	Save(record *types.TtsCacheRecord) error
	Get(cacheKey string) (*types.TtsCacheRecord, error)
	Delete(cacheKeys []string) error
}

// DurationReporter receives the measured per-part durations once every part
// of a scene has resolved. sceneIndex is the index the preparation was
// requested for.
type DurationReporter func(sceneIndex int, total float64, parts []float64)

// CacheKey derives the cache key from the resolved voice and the markup.
// Identical (voice, markup) pairs share one entry regardless of which scene
// asked.
func CacheKey(voice, markup string) string {
	sum := sha1.Sum([]byte(voice + "\x00" + markup))
	return hex.EncodeToString(sum[:])
}

func sceneKeyOf(scene types.Scene) string {
	return fmt.Sprintf("%s#%d", scene.SceneId, scene.SplitIndex)
}

type inflight struct {
	done  chan struct{}
	entry *types.TtsCacheEntry
	err   error
}

// Manager synthesizes per-part audio with caching and in-flight
// de-duplication. Concurrent scene/group/full playback preparations for the
// same (voice, markup) share one network call.
type Manager struct {
	synth     Synthesizer
	fetcher   AudioFetcher
	uploader  Uploader
	index     CacheIndex
	annotator MarkupAnnotator
	report    DurationReporter

	concurrency int

	mu        sync.Mutex
	cache     map[string]*types.TtsCacheEntry
	inflights map[string]*inflight
	sceneKeys map[string][]string  // scene identity -> part cache keys
	measured  map[string][]float64 // scene identity -> measured part durations
}

// Option configures a Manager.
type Option func(*Manager)

func WithFetcher(f AudioFetcher) Option      { return func(m *Manager) { m.fetcher = f } }
func WithUploader(u Uploader) Option         { return func(m *Manager) { m.uploader = u } }
func WithCacheIndex(ix CacheIndex) Option    { return func(m *Manager) { m.index = ix } }
func WithAnnotator(a MarkupAnnotator) Option { return func(m *Manager) { m.annotator = a } }
func WithReporter(r DurationReporter) Option { return func(m *Manager) { m.report = r } }
func WithConcurrency(n int) Option           { return func(m *Manager) { m.concurrency = n } }

func NewManager(synth Synthesizer, opts ...Option) *Manager {
	m := &Manager{
		synth:       synth,
		annotator:   NewPauseAnnotator(),
		concurrency: 3,
		cache:       make(map[string]*types.TtsCacheEntry),
		inflights:   make(map[string]*inflight),
		sceneKeys:   make(map[string][]string),
		measured:    make(map[string][]float64),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.concurrency <= 0 {
		m.concurrency = 3
	}
	return m
}

// PrepareScene synthesizes (or serves from cache) every part of the scene at
// sceneIndex. forceRegenerate bypasses cache and in-flight reuse and deletes
// the scene's stale entries before any new synthesis is issued, so a stale
// entry can never win a race against the new one.
//
// Failure is per-part: an error from one part never invalidates sibling parts
// that already cached. The first error is returned after all parts settle.
func (m *Manager) PrepareScene(ctx context.Context, tl *types.Timeline, sceneIndex int, forceRegenerate bool) ([]*types.TtsCacheEntry, error) {
	if tl == nil || sceneIndex < 0 || sceneIndex >= len(tl.Scenes) {
		return nil, apperrors.ErrInvalidParams
	}
	scene := tl.Scenes[sceneIndex]

	voice := scene.ResolvedVoice(tl.GlobalVoice)
	if voice == "" {
		return nil, apperrors.ErrVoiceRequired
	}

	parts := scene.Parts()
	if len(parts) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidParams, "Scene has no spoken text")
	}

	sceneKey := sceneKeyOf(scene)
	if forceRegenerate {
		m.deleteSceneEntries(sceneKey)
	}

	markups := make([]string, len(parts))
	keys := make([]string, len(parts))
	for i, p := range parts {
		markups[i] = m.annotator.Annotate(p)
		keys[i] = CacheKey(voice, markups[i])
	}

	entries := make([]*types.TtsCacheEntry, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i := range parts {
		i := i
		g.Go(func() error {
			entry, err := m.getOrSynthesize(gctx, keys[i], voice, markups[i], forceRegenerate)
			if err != nil {
				log.GetLogger().Error("part synthesis failed",
					zap.Int("scene_index", sceneIndex),
					zap.Int("part_index", i),
					zap.Error(err))
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	err := g.Wait()

	m.mu.Lock()
	m.sceneKeys[sceneKey] = keys
	if err == nil {
		durations := make([]float64, len(entries))
		for i, e := range entries {
			durations[i] = e.DurationSec
		}
		m.measured[sceneKey] = durations
	}
	m.mu.Unlock()

	if err != nil {
		return entries, err
	}

	if m.report != nil {
		durations := make([]float64, len(entries))
		total := 0.0
		for i, e := range entries {
			durations[i] = e.DurationSec
			total += e.DurationSec
		}
		m.report(sceneIndex, total, durations)
	}
	return entries, nil
}

// getOrSynthesize resolves one cache key following the lookup precedence:
// full hit, half hit (fetch or upload the missing half), in-flight join,
// fresh synthesis.
func (m *Manager) getOrSynthesize(ctx context.Context, key, voice, markup string, force bool) (*types.TtsCacheEntry, error) {
	m.mu.Lock()
	if !force {
		if entry, ok := m.cache[key]; ok && entry.Complete() {
			m.mu.Unlock()
			return entry, nil
		}
		if fl, ok := m.inflights[key]; ok {
			m.mu.Unlock()
			select {
			case <-fl.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return fl.entry, fl.err
		}
	}
	existing := m.cache[key]
	fl := &inflight{done: make(chan struct{})}
	m.inflights[key] = fl
	m.mu.Unlock()

	// Cold in-memory cache: the persisted index may know a remote copy.
	if existing == nil && !force && m.index != nil {
		if rec, ierr := m.index.Get(key); ierr == nil && rec != nil && rec.RemoteUrl != "" {
			existing = &types.TtsCacheEntry{
				Key:         key,
				Voice:       rec.Voice,
				Markup:      rec.Markup,
				DurationSec: rec.DurationSec,
				RemoteUrl:   rec.RemoteUrl,
			}
		}
	}

	entry, err := m.resolveEntry(ctx, key, voice, markup, existing, force)

	m.mu.Lock()
	if cur, ok := m.inflights[key]; ok && cur == fl {
		delete(m.inflights, key)
	}
	if err == nil {
		m.cache[key] = entry
	}
	m.mu.Unlock()

	if err == nil {
		m.saveIndexRecord(entry)
	}

	fl.entry, fl.err = entry, err
	close(fl.done)
	return entry, err
}

func (m *Manager) resolveEntry(ctx context.Context, key, voice, markup string, existing *types.TtsCacheEntry, force bool) (*types.TtsCacheEntry, error) {
	if existing != nil && !force {
		// Half hit with remote URL only: fetch the bytes back.
		if !existing.HasAudio() && existing.RemoteUrl != "" && m.fetcher != nil {
			data, err := m.fetcher.Fetch(ctx, existing.RemoteUrl)
			if err != nil {
				return nil, err
			}
			entry := *existing
			entry.AudioBytes = data
			if entry.DurationSec <= 0 {
				if d, derr := util.AudioDuration(data); derr == nil {
					entry.DurationSec = d
				}
			}
			return &entry, nil
		}
		// Half hit with bytes only: upload the missing half, best-effort.
		if existing.HasAudio() && existing.RemoteUrl == "" {
			entry := *existing
			m.tryUpload(ctx, key, &entry)
			return &entry, nil
		}
		if existing.HasAudio() {
			return existing, nil
		}
	}

	data, err := m.synth.Synthesize(ctx, voice, markup)
	if err != nil {
		return nil, err
	}

	duration, err := util.AudioDuration(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAudioDecode, "Failed to decode synthesized audio", err)
	}

	entry := &types.TtsCacheEntry{
		Key:         key,
		Voice:       voice,
		Markup:      markup,
		AudioBytes:  data,
		DurationSec: duration,
	}
	m.tryUpload(ctx, key, entry)
	return entry, nil
}

// tryUpload persists bytes remotely; failure only means the in-memory bytes
// get reused.
func (m *Manager) tryUpload(ctx context.Context, key string, entry *types.TtsCacheEntry) {
	if m.uploader == nil {
		return
	}
	url, err := m.uploader.Upload(ctx, key, entry.AudioBytes)
	if err != nil {
		log.GetLogger().Warn("audio persistence failed, keeping in-memory bytes",
			zap.String("cache_key", key),
			zap.Error(err))
		return
	}
	entry.RemoteUrl = url
}

// saveIndexRecord mirrors a resolved entry into the persisted index,
// best-effort.
func (m *Manager) saveIndexRecord(entry *types.TtsCacheEntry) {
	if m.index == nil || entry == nil {
		return
	}
	err := m.index.Save(&types.TtsCacheRecord{
		CacheKey:    entry.Key,
		Voice:       entry.Voice,
		Markup:      entry.Markup,
		DurationSec: entry.DurationSec,
		RemoteUrl:   entry.RemoteUrl,
	})
	if err != nil {
		log.GetLogger().Warn("cache index save failed",
			zap.String("cache_key", entry.Key),
			zap.Error(err))
	}
}

func (m *Manager) deleteSceneEntries(sceneKey string) {
	m.mu.Lock()
	keys := m.sceneKeys[sceneKey]
	for _, key := range keys {
		delete(m.cache, key)
	}
	delete(m.sceneKeys, sceneKey)
	delete(m.measured, sceneKey)
	m.mu.Unlock()

	if m.index != nil && len(keys) > 0 {
		if err := m.index.Delete(keys); err != nil {
			log.GetLogger().Warn("cache index delete failed",
				zap.String("scene_key", sceneKey),
				zap.Error(err))
		}
	}
}

// InvalidateScene drops the scene's cached parts (script or voice changed).
func (m *Manager) InvalidateScene(scene types.Scene) {
	m.deleteSceneEntries(sceneKeyOf(scene))
}

// Entry returns the cached entry for a key, if any.
func (m *Manager) Entry(key string) (*types.TtsCacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[key]
	return e, ok
}

// SceneEntries returns the cached entries for the scene's parts in order, or
// ok=false when any part is missing audio.
func (m *Manager) SceneEntries(scene types.Scene) ([]*types.TtsCacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys, ok := m.sceneKeys[sceneKeyOf(scene)]
	if !ok {
		return nil, false
	}
	entries := make([]*types.TtsCacheEntry, len(keys))
	for i, key := range keys {
		e, found := m.cache[key]
		if !found || !e.HasAudio() {
			return nil, false
		}
		entries[i] = e
	}
	return entries, true
}

// PartDurations implements timeline.DurationSource: measured per-part
// durations, available only once every part of the scene has resolved.
func (m *Manager) PartDurations(scene types.Scene) ([]float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts, ok := m.measured[sceneKeyOf(scene)]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(parts))
	copy(out, parts)
	return out, true
}

// Abort clears the in-flight map so a retry after cancellation does not wait
// on a dead promise.
func (m *Manager) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflights = make(map[string]*inflight)
}
