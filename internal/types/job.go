package types

import "time"

// Export job statuses matching the job-status channel contract.
const (
	JobStatusPending    = "PENDING"
	JobStatusProcessing = "PROCESSING"
	JobStatusCompleted  = "COMPLETED"
	JobStatusFailed     = "FAILED"
)

// JobStatusUpdate is the message pushed over the notify channel. Consumers
// only act on terminal statuses.
type JobStatusUpdate struct {
	JobId     string  `json:"jobId"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress,omitempty"`
	ResultUrl string  `json:"resultUrl,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Terminal reports whether the update is final.
func (u JobStatusUpdate) Terminal() bool {
	return u.Status == JobStatusCompleted || u.Status == JobStatusFailed
}

// ExportJob is the persisted export job row.
type ExportJob struct {
	Id         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	JobId      string    `json:"job_id" gorm:"column:job_id;uniqueIndex"`
	SessionId  string    `json:"session_id" gorm:"index"`
	Status     string    `json:"status"`
	Progress   float64   `json:"progress"`
	ResultUrl  string    `json:"result_url"`
	FailReason string    `json:"fail_reason"`
	CreateTime time.Time `json:"create_time" gorm:"autoCreateTime"`
	UpdateTime time.Time `json:"update_time" gorm:"autoUpdateTime"`
}

func (ExportJob) TableName() string {
	return "export_jobs"
}

// Preview session statuses.
const (
	SessionStatusIdle    = 1
	SessionStatusPlaying = 2
	SessionStatusClosed  = 3
)

// PreviewSession is the persisted session row. The timeline is stored as the
// JSON the client last committed.
type PreviewSession struct {
	Id           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionId    string    `json:"session_id" gorm:"column:session_id;uniqueIndex"`
	Status       int       `json:"status"`
	TimelineJson string    `json:"timeline_json" gorm:"type:text"`
	CreateTime   time.Time `json:"create_time" gorm:"autoCreateTime"`
	UpdateTime   time.Time `json:"update_time" gorm:"autoUpdateTime"`
}

func (PreviewSession) TableName() string {
	return "preview_sessions"
}
