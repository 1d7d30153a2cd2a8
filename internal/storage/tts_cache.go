package storage

import (
	"errors"

	"gorm.io/gorm"

	"clipcast/internal/types"
)

func SaveCacheRecord(record *types.TtsCacheRecord) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	var existing types.TtsCacheRecord
	result := DB.Where("cache_key = ?", record.CacheKey).First(&existing)

	if result.Error == nil {
		record.Id = existing.Id
		return DB.Save(record).Error
	} else if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return DB.Create(record).Error
	}
	return result.Error
}

func GetCacheRecord(cacheKey string) (*types.TtsCacheRecord, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	var record types.TtsCacheRecord
	if err := DB.Where("cache_key = ?", cacheKey).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func DeleteCacheRecords(cacheKeys []string) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	if len(cacheKeys) == 0 {
		return nil
	}
	return DB.Where("cache_key IN ?", cacheKeys).Delete(&types.TtsCacheRecord{}).Error
}
