package storage

import (
	"errors"

	"gorm.io/gorm"

	"clipcast/internal/types"
)

func SaveJob(job *types.ExportJob) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	var existing types.ExportJob
	result := DB.Where("job_id = ?", job.JobId).First(&existing)

	if result.Error == nil {
		job.Id = existing.Id
		return DB.Save(job).Error
	} else if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return DB.Create(job).Error
	}
	return result.Error
}

func GetJob(jobId string) (*types.ExportJob, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	var job types.ExportJob
	if err := DB.Where("job_id = ?", jobId).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func UpdateJobStatus(jobId, status string, progress float64, resultUrl, failReason string) error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	return DB.Model(&types.ExportJob{}).
		Where("job_id = ?", jobId).
		Updates(map[string]interface{}{
			"status":      status,
			"progress":    progress,
			"result_url":  resultUrl,
			"fail_reason": failReason,
		}).Error
}

func ListJobsForSession(sessionId string, limit int) ([]types.ExportJob, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	var jobs []types.ExportJob
	if err := DB.Where("session_id = ?", sessionId).
		Order("create_time desc").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkStaleJobs fails jobs left processing by a previous process. Called on
// startup.
func MarkStaleJobs() (int64, error) {
	if DB == nil {
		return 0, errors.New("database not initialized")
	}
	result := DB.Model(&types.ExportJob{}).
		Where("status = ? OR status = ?", types.JobStatusPending, types.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":      types.JobStatusFailed,
			"fail_reason": "Job interrupted by server restart",
		})
	return result.RowsAffected, result.Error
}
