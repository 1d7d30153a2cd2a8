// Package export renders a committed timeline into a final video file as a
// background job, with persisted status and pushed progress updates.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clipcast/internal/storage"
	"clipcast/internal/types"
	"clipcast/log"
	apperrors "clipcast/pkg/errors"
)

// Renderer turns a timeline into a finished artifact and reports progress in
// [0, 1]. Implementations are expected to be slow; they run on worker
// goroutines only.
type Renderer interface {
	Render(ctx context.Context, jobId string, tl *types.Timeline, progress func(float64)) (string, error)
}

// Notifier pushes job status updates to connected clients.
type Notifier interface {
	PublishJobStatus(update types.JobStatusUpdate)
}

// JobStore persists export job rows.
type JobStore interface {
	Get(jobId string) (*types.ExportJob, error)
	Save(job *types.ExportJob) error
	UpdateStatus(jobId, status string, progress float64, resultUrl, failReason string) error
}

// SessionStore loads the persisted session a job belongs to.
type SessionStore interface {
	Get(sessionId string) (*types.PreviewSession, error)
}

// StorageJobStore backs JobStore with the sqlite layer.
type StorageJobStore struct{}

func (StorageJobStore) Get(jobId string) (*types.ExportJob, error) { return storage.GetJob(jobId) }
func (StorageJobStore) Save(job *types.ExportJob) error            { return storage.SaveJob(job) }
func (StorageJobStore) UpdateStatus(jobId, status string, progress float64, resultUrl, failReason string) error {
	return storage.UpdateJobStatus(jobId, status, progress, resultUrl, failReason)
}

// StorageSessionStore backs SessionStore with the sqlite layer.
type StorageSessionStore struct{}

func (StorageSessionStore) Get(sessionId string) (*types.PreviewSession, error) {
	return storage.GetSession(sessionId)
}

// SimulatedRenderer walks the timeline scene by scene with a fixed per-scene
// delay and emits a local file path. It stands in until a real compositing
// backend is wired up.
type SimulatedRenderer struct {
	OutputDir string
	StepDelay time.Duration
}

func (r *SimulatedRenderer) Render(ctx context.Context, jobId string, tl *types.Timeline, progress func(float64)) (string, error) {
	n := len(tl.Scenes)
	if n == 0 {
		return "", apperrors.ErrTimelineEmpty
	}

	delay := r.StepDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		if progress != nil {
			progress(float64(i+1) / float64(n))
		}
	}

	dir := r.OutputDir
	if dir == "" {
		dir = "exports"
	}
	return filepath.Join(dir, jobId+".mp4"), nil
}

// Manager owns the lifecycle of export jobs: submission persists the row,
// Process executes it and streams status transitions through the notifier.
type Manager struct {
	jobs     JobStore
	sessions SessionStore
	render   Renderer
	notify   Notifier
}

func NewManager(jobs JobStore, sessions SessionStore, render Renderer, notify Notifier) *Manager {
	if render == nil {
		render = &SimulatedRenderer{}
	}
	return &Manager{jobs: jobs, sessions: sessions, render: render, notify: notify}
}

// Submit persists a pending job for the session and returns its id. The
// caller hands the id to a runner or queue for execution.
func (m *Manager) Submit(sessionId string) (string, error) {
	if _, err := m.sessions.Get(sessionId); err != nil {
		return "", apperrors.Wrap(apperrors.CodeSessionNotFound, "Preview session not found", err)
	}

	jobId := uuid.NewString()
	job := &types.ExportJob{
		JobId:     jobId,
		SessionId: sessionId,
		Status:    types.JobStatusPending,
	}
	if err := m.jobs.Save(job); err != nil {
		return "", apperrors.Wrap(apperrors.CodeDBError, "Failed to persist export job", err)
	}

	m.publish(types.JobStatusUpdate{JobId: jobId, Status: types.JobStatusPending})
	return jobId, nil
}

// Process executes one job to a terminal status. Safe to call from any worker
// backend; the job row is the single source of truth.
func (m *Manager) Process(ctx context.Context, jobId string) error {
	job, err := m.jobs.Get(jobId)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeNotFound, "Export job not found", err)
	}

	session, err := m.sessions.Get(job.SessionId)
	if err != nil {
		m.fail(jobId, fmt.Sprintf("session %s not found", job.SessionId))
		return apperrors.Wrap(apperrors.CodeSessionNotFound, "Preview session not found", err)
	}

	var tl types.Timeline
	if err := json.Unmarshal([]byte(session.TimelineJson), &tl); err != nil {
		m.fail(jobId, "invalid timeline")
		return apperrors.Wrap(apperrors.CodeInvalidParams, "Session timeline is not valid JSON", err)
	}

	if err := m.jobs.UpdateStatus(jobId, types.JobStatusProcessing, 0, "", ""); err != nil {
		return err
	}
	m.publish(types.JobStatusUpdate{JobId: jobId, Status: types.JobStatusProcessing})

	resultUrl, err := m.render.Render(ctx, jobId, &tl, func(p float64) {
		_ = m.jobs.UpdateStatus(jobId, types.JobStatusProcessing, p, "", "")
		m.publish(types.JobStatusUpdate{JobId: jobId, Status: types.JobStatusProcessing, Progress: p})
	})
	if err != nil {
		m.fail(jobId, err.Error())
		return apperrors.Wrap(apperrors.CodeExportFailed, "Export rendering failed", err)
	}

	if err := m.jobs.UpdateStatus(jobId, types.JobStatusCompleted, 1, resultUrl, ""); err != nil {
		return err
	}
	m.publish(types.JobStatusUpdate{JobId: jobId, Status: types.JobStatusCompleted, Progress: 1, ResultUrl: resultUrl})

	log.GetLogger().Info("export job completed",
		zap.String("job_id", jobId),
		zap.String("result_url", resultUrl))
	return nil
}

func (m *Manager) fail(jobId, reason string) {
	_ = m.jobs.UpdateStatus(jobId, types.JobStatusFailed, 0, "", reason)
	m.publish(types.JobStatusUpdate{JobId: jobId, Status: types.JobStatusFailed, Error: reason})
}

func (m *Manager) publish(update types.JobStatusUpdate) {
	if m.notify != nil {
		m.notify.PublishJobStatus(update)
	}
}
