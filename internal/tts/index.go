package tts

import (
	"clipcast/internal/storage"
	"clipcast/internal/types"
)

// StorageCacheIndex backs the cache index with the sqlite tts_cache table.
type StorageCacheIndex struct{}

func (StorageCacheIndex) Save(record *types.TtsCacheRecord) error {
	return storage.SaveCacheRecord(record)
}

func (StorageCacheIndex) Get(cacheKey string) (*types.TtsCacheRecord, error) {
	return storage.GetCacheRecord(cacheKey)
}

func (StorageCacheIndex) Delete(cacheKeys []string) error {
	return storage.DeleteCacheRecords(cacheKeys)
}
