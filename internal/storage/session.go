package storage

import (
	"errors"

	"gorm.io/gorm"

	"clipcast/internal/types"
)

func SaveSession(session *types.PreviewSession) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	// Upsert by session_id; Id stays the primary key.
	var existing types.PreviewSession
	result := DB.Where("session_id = ?", session.SessionId).First(&existing)

	if result.Error == nil {
		session.Id = existing.Id
		return DB.Save(session).Error
	} else if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return DB.Create(session).Error
	}
	return result.Error
}

func GetSession(sessionId string) (*types.PreviewSession, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	var session types.PreviewSession
	if err := DB.Where("session_id = ?", sessionId).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func ListSessions(limit int) ([]types.PreviewSession, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	var sessions []types.PreviewSession
	if err := DB.Where("status <> ?", types.SessionStatusClosed).
		Order("update_time desc").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func DeleteSession(sessionId string) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	return DB.Where("session_id = ?", sessionId).Delete(&types.PreviewSession{}).Error
}

// MarkStaleSessions moves sessions left playing by a previous process back to
// idle. Called on startup.
func MarkStaleSessions() (int64, error) {
	if DB == nil {
		return 0, errors.New("database not initialized")
	}
	result := DB.Model(&types.PreviewSession{}).
		Where("status = ?", types.SessionStatusPlaying).
		Update("status", types.SessionStatusIdle)
	return result.RowsAffected, result.Error
}
