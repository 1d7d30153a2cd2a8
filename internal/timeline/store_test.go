package timeline

import (
	"testing"

	"clipcast/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCopyOnWrite(t *testing.T) {
	initial := &types.Timeline{Scenes: []types.Scene{scene("a", 0, 2, 0)}}
	store := NewStore(initial)

	before := store.Snapshot()
	store.Update(func(tl *types.Timeline) {
		tl.Scenes[0].Duration = 9
	})
	after := store.Snapshot()

	require.NotSame(t, before, after)
	// The old snapshot is untouched; readers holding it see consistent data.
	assert.Equal(t, 2.0, before.Scenes[0].Duration)
	assert.Equal(t, 9.0, after.Scenes[0].Duration)
}

func TestStoreWatchNotifies(t *testing.T) {
	store := NewStore(&types.Timeline{})

	var got *types.Timeline
	store.Watch(func(tl *types.Timeline) { got = tl })

	store.Replace(&types.Timeline{GlobalVoice: "en-US-1"})
	require.NotNil(t, got)
	assert.Equal(t, "en-US-1", got.GlobalVoice)
}

func TestSetMeasuredDuration(t *testing.T) {
	store := NewStore(&types.Timeline{Scenes: []types.Scene{scene("a", 0, 2, 0)}})

	store.SetMeasuredDuration(0, 3.4)
	tl := store.Snapshot()
	assert.Equal(t, 3.4, tl.Scenes[0].ActualPlaybackDuration)
	assert.Equal(t, 3.4, tl.Scenes[0].Duration)

	// Stale index from a late completion is ignored.
	store.SetMeasuredDuration(5, 1.0)
	assert.Len(t, store.Snapshot().Scenes, 1)
}
