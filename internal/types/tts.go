package types

// TtsCacheEntry is one synthesized part keyed by (voice, markup).
type TtsCacheEntry struct {
	Key         string
	Voice       string
	Markup      string
	AudioBytes  []byte
	DurationSec float64
	RemoteUrl   string
}

// Complete reports whether both halves (bytes and remote URL) are present.
func (e *TtsCacheEntry) Complete() bool {
	return e != nil && len(e.AudioBytes) > 0 && e.RemoteUrl != ""
}

// HasAudio reports whether decoded bytes are available for playback.
func (e *TtsCacheEntry) HasAudio() bool {
	return e != nil && len(e.AudioBytes) > 0
}

// TtsCacheRecord is the persisted index row for a cache entry. Audio bytes
// live on disk next to the database; the row carries the metadata needed to
// rehydrate them.
type TtsCacheRecord struct {
	Id          uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	CacheKey    string  `json:"cache_key" gorm:"column:cache_key;uniqueIndex"`
	Voice       string  `json:"voice"`
	Markup      string  `json:"markup"`
	DurationSec float64 `json:"duration_sec"`
	RemoteUrl   string  `json:"remote_url"`
	LocalPath   string  `json:"local_path"`
	CreateTime  int64   `json:"create_time" gorm:"autoCreateTime"`
}

func (TtsCacheRecord) TableName() string {
	return "tts_cache"
}
