package timeline

import (
	"sync"

	"clipcast/internal/types"
)

// Store owns the shared timeline with copy-on-write discipline: readers get
// the current immutable snapshot, writers replace the whole timeline through
// an update function. In-place scene mutation is never exposed, which keeps
// concurrent async completions (TTS measurements, transform commits, user
// edits) from racing each other.
type Store struct {
	mu       sync.RWMutex
	current  *types.Timeline
	watchers []func(*types.Timeline)
}

func NewStore(initial *types.Timeline) *Store {
	if initial == nil {
		initial = &types.Timeline{}
	}
	return &Store{current: initial.Clone()}
}

// Snapshot returns the current immutable timeline. Callers must not mutate it.
func (s *Store) Snapshot() *types.Timeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace swaps in a full replacement timeline.
func (s *Store) Replace(tl *types.Timeline) {
	if tl == nil {
		return
	}
	s.apply(tl.Clone())
}

// Update clones the current timeline, hands the clone to fn for mutation, and
// installs the result. This is the only mutation path.
func (s *Store) Update(fn func(*types.Timeline)) {
	s.mu.Lock()
	next := s.current.Clone()
	s.mu.Unlock()

	fn(next)
	s.apply(next)
}

func (s *Store) apply(next *types.Timeline) {
	s.mu.Lock()
	s.current = next
	watchers := make([]func(*types.Timeline), len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, w := range watchers {
		w(next)
	}
}

// Watch registers a callback invoked after every replacement with the new
// snapshot. Callbacks run on the replacing goroutine.
func (s *Store) Watch(fn func(*types.Timeline)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// SetMeasuredDuration records a measured TTS duration for the scene at index
// i as a copy-on-write update. Late measurements for stale indices are
// ignored.
func (s *Store) SetMeasuredDuration(i int, duration float64) {
	s.Update(func(tl *types.Timeline) {
		if i < 0 || i >= len(tl.Scenes) || duration <= 0 {
			return
		}
		tl.Scenes[i].ActualPlaybackDuration = duration
		tl.Scenes[i].Duration = duration
	})
}
