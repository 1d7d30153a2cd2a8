// Package service owns the live preview sessions and wires the playback
// engine to synthesis, storage, export and notification.
package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clipcast/config"
	"clipcast/internal/engine"
	"clipcast/internal/export"
	"clipcast/internal/notify"
	"clipcast/internal/storage"
	"clipcast/internal/timeline"
	"clipcast/internal/tts"
	"clipcast/internal/types"
	"clipcast/log"
	apperrors "clipcast/pkg/errors"
	"clipcast/pkg/oss"
)

// exportBackend queues persisted export jobs: the in-proc runner by default,
// the asynq queue when Redis is configured.
type exportBackend interface {
	Submit(jobId string) error
}

type Service struct {
	mu       sync.Mutex
	sessions map[string]*engine.Session

	tts          *tts.Manager
	export       *export.Manager
	backend      exportBackend
	closeBackend func()
	hub          *notify.Hub
}

func NewService(hub *notify.Hub) *Service {
	cfg := config.Conf

	tokens := tts.StaticTokenStore{Value: cfg.Tts.Token}
	client := tts.NewClient(cfg.Tts.BaseUrl, cfg.Upload.BaseUrl, cfg.App.Proxy, tokens)

	opts := []tts.Option{
		tts.WithFetcher(client),
		tts.WithCacheIndex(tts.StorageCacheIndex{}),
		tts.WithConcurrency(cfg.Tts.PartConcurrency),
	}
	ossCfg := oss.Config{
		Endpoint:        cfg.Oss.Endpoint,
		Region:          cfg.Oss.Region,
		AccessKeyId:     cfg.Oss.AccessKeyId,
		AccessKeySecret: cfg.Oss.AccessKeySecret,
		Bucket:          cfg.Oss.Bucket,
	}
	if ossCfg.Enabled() {
		opts = append(opts, tts.WithUploader(oss.NewUploader(ossCfg, "tts")))
	}

	exportMgr := export.NewManager(
		export.StorageJobStore{},
		export.StorageSessionStore{},
		&export.SimulatedRenderer{OutputDir: filepath.Join(cfg.App.DataDir, "exports")},
		hub,
	)

	var backend exportBackend
	var closeBackend func()
	if cfg.Redis.Addr != "" {
		queue := export.NewQueue(export.QueueConfig{
			RedisAddr:     cfg.Redis.Addr,
			RedisPassword: cfg.Redis.Password,
			RedisDB:       cfg.Redis.DB,
			Concurrency:   cfg.Export.Concurrency,
		})
		go func() {
			if err := export.StartWorker(queue, exportMgr); err != nil {
				log.GetLogger().Error("export worker stopped", zap.Error(err))
			}
		}()
		backend = queue
		closeBackend = func() { queue.Close() }
	} else {
		runner := export.NewRunner(exportMgr, export.RunnerConfig{
			QueueSize:   cfg.Export.QueueSize,
			Concurrency: cfg.Export.Concurrency,
		})
		backend = runner
		closeBackend = runner.Close
	}

	return &Service{
		sessions:     make(map[string]*engine.Session),
		tts:          tts.NewManager(client, opts...),
		export:       exportMgr,
		backend:      backend,
		closeBackend: closeBackend,
		hub:          hub,
	}
}

// CreateSession persists a new preview session and spins up its engine.
func (s *Service) CreateSession(tl types.Timeline) (string, error) {
	if tl.GlobalVoice == "" {
		tl.GlobalVoice = config.Conf.Tts.DefaultVoice
	}

	sessionId := uuid.NewString()
	if err := s.persistSession(sessionId, &tl, types.SessionStatusIdle); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.sessions[sessionId] = s.newEngineSession(sessionId, &tl)
	s.mu.Unlock()

	log.GetLogger().Info("preview session created",
		zap.String("session_id", sessionId),
		zap.Int("scenes", len(tl.Scenes)))
	return sessionId, nil
}

func (s *Service) newEngineSession(sessionId string, tl *types.Timeline) *engine.Session {
	audioClock := engine.NewAudioHardwareClock()
	sess := engine.NewSession(engine.SessionConfig{
		Id:                 sessionId,
		Store:              timeline.NewStore(tl),
		Preparer:           s.tts,
		AudioSink:          newPacedAudioSink(audioClock),
		RenderSink:         hubRenderSink{sessionId: sessionId, hub: s.hub},
		AudioClock:         audioClock,
		PrepareConcurrency: config.Conf.Export.Concurrency,
	})
	sess.WatchState(func(st types.PlaybackState) {
		if s.hub != nil {
			s.hub.PublishPlaybackState(sessionId, st)
		}
	})
	return sess
}

// RestoreSessions rebuilds live engines for sessions persisted by a previous
// process. Called once on startup after stale-state cleanup.
func (s *Service) RestoreSessions() {
	rows, err := storage.ListSessions(100)
	if err != nil {
		log.GetLogger().Warn("failed to list persisted sessions", zap.Error(err))
		return
	}

	restored := 0
	for _, row := range rows {
		var tl types.Timeline
		if err := json.Unmarshal([]byte(row.TimelineJson), &tl); err != nil {
			log.GetLogger().Warn("skipping session with invalid timeline",
				zap.String("session_id", row.SessionId), zap.Error(err))
			continue
		}
		s.mu.Lock()
		s.sessions[row.SessionId] = s.newEngineSession(row.SessionId, &tl)
		s.mu.Unlock()
		restored++
	}
	if restored > 0 {
		log.GetLogger().Info("restored preview sessions", zap.Int("count", restored))
	}
}

func (s *Service) get(sessionId string) (*engine.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionId]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Service) persistSession(sessionId string, tl *types.Timeline, status int) error {
	data, err := json.Marshal(tl)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidParams, "Timeline is not serializable", err)
	}
	return storage.SaveSession(&types.PreviewSession{
		SessionId:    sessionId,
		Status:       status,
		TimelineJson: string(data),
	})
}

func (s *Service) setStatus(sessionId string, status int) {
	row, err := storage.GetSession(sessionId)
	if err != nil {
		return
	}
	row.Status = status
	if err := storage.SaveSession(row); err != nil {
		log.GetLogger().Warn("failed to persist session status",
			zap.String("session_id", sessionId), zap.Error(err))
	}
}

// UpdateTimeline replaces the session's timeline, both live and persisted.
func (s *Service) UpdateTimeline(sessionId string, tl types.Timeline) error {
	sess, err := s.get(sessionId)
	if err != nil {
		return err
	}
	if err := sess.ReplaceTimeline(&tl); err != nil {
		return err
	}
	return s.persistSession(sessionId, &tl, types.SessionStatusIdle)
}

// Prepare synthesizes the session's narration ahead of playback.
func (s *Service) Prepare(ctx context.Context, sessionId string, forceRegenerate bool) error {
	sess, err := s.get(sessionId)
	if err != nil {
		return err
	}
	if err := sess.Prepare(ctx, forceRegenerate); err != nil {
		return err
	}
	// Persist the measured durations with the timeline.
	return s.persistSession(sessionId, sess.Timeline(), types.SessionStatusIdle)
}

func (s *Service) Play(sessionId string) error {
	sess, err := s.get(sessionId)
	if err != nil {
		return err
	}
	if err := sess.Play(); err != nil {
		return err
	}
	s.setStatus(sessionId, types.SessionStatusPlaying)
	return nil
}

func (s *Service) PlayScene(sessionId string, sceneIndex int) error {
	sess, err := s.get(sessionId)
	if err != nil {
		return err
	}
	if err := sess.PlayScene(sceneIndex); err != nil {
		return err
	}
	s.setStatus(sessionId, types.SessionStatusPlaying)
	return nil
}

func (s *Service) PlayGroup(sessionId, sceneId string) error {
	sess, err := s.get(sessionId)
	if err != nil {
		return err
	}
	if err := sess.PlayGroup(sceneId); err != nil {
		return err
	}
	s.setStatus(sessionId, types.SessionStatusPlaying)
	return nil
}

func (s *Service) Pause(sessionId string) error {
	sess, err := s.get(sessionId)
	if err != nil {
		return err
	}
	if err := sess.Pause(); err != nil {
		return err
	}
	s.setStatus(sessionId, types.SessionStatusIdle)
	return nil
}

func (s *Service) Seek(sessionId string, to float64) error {
	sess, err := s.get(sessionId)
	if err != nil {
		return err
	}
	return sess.Seek(to)
}

func (s *Service) SetEditMode(sessionId string, enabled bool) error {
	sess, err := s.get(sessionId)
	if err != nil {
		return err
	}
	return sess.SetEditMode(enabled)
}

func (s *Service) CommitTransform(sessionId string, sceneIndex int, target string, tr types.Transform) error {
	sess, err := s.get(sessionId)
	if err != nil {
		return err
	}
	tgt := engine.TargetImage
	if target == "text" {
		tgt = engine.TargetText
	}
	return sess.CommitTransform(sceneIndex, tgt, tr)
}

// State returns the session's timeline and observable playback state.
func (s *Service) State(sessionId string) (*types.Timeline, types.PlaybackState, error) {
	sess, err := s.get(sessionId)
	if err != nil {
		return nil, types.PlaybackState{}, err
	}
	return sess.Timeline(), sess.State(), nil
}

// CloseSession shuts the engine down and marks the row closed.
func (s *Service) CloseSession(sessionId string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionId]
	delete(s.sessions, sessionId)
	s.mu.Unlock()

	if !ok {
		return apperrors.ErrSessionNotFound
	}
	sess.Close()
	s.setStatus(sessionId, types.SessionStatusClosed)
	return nil
}

// SubmitExport snapshots the session's current timeline and queues a render
// job for it.
func (s *Service) SubmitExport(sessionId string) (string, error) {
	sess, err := s.get(sessionId)
	if err != nil {
		return "", err
	}
	// The job renders the persisted timeline; commit the live one first.
	if err := s.persistSession(sessionId, sess.Timeline(), types.SessionStatusIdle); err != nil {
		return "", err
	}

	jobId, err := s.export.Submit(sessionId)
	if err != nil {
		return "", err
	}
	if err := s.backend.Submit(jobId); err != nil {
		return "", apperrors.Wrap(apperrors.CodeExportFailed, "Failed to queue export job", err)
	}
	return jobId, nil
}

func (s *Service) GetJob(jobId string) (*types.ExportJob, error) {
	job, err := storage.GetJob(jobId)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, "Export job not found", err)
	}
	return job, nil
}

func (s *Service) ListJobs(sessionId string, limit int) ([]types.ExportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	return storage.ListJobsForSession(sessionId, limit)
}

// Shutdown closes every live session and the export backend.
func (s *Service) Shutdown() {
	s.mu.Lock()
	sessions := make([]*engine.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*engine.Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	s.closeBackend()
	s.tts.Abort()
}
