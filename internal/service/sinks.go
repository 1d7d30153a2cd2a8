package service

import (
	"sync"
	"time"

	"clipcast/internal/engine"
	"clipcast/internal/notify"
)

// pacedAudioSink simulates audio output timing for the headless preview
// server: it paces the hardware clock against wall time so scene and group
// playback advance exactly as they would against a real device, and reports
// the start offset before Play returns per the sink contract.
type pacedAudioSink struct {
	clock *engine.AudioHardwareClock

	mu     sync.Mutex
	cancel chan struct{}
}

func newPacedAudioSink(clock *engine.AudioHardwareClock) *pacedAudioSink {
	return &pacedAudioSink{clock: clock}
}

func (s *pacedAudioSink) Play(audio []byte, offsetSec float64) error {
	s.Stop()

	s.mu.Lock()
	cancel := make(chan struct{})
	s.cancel = cancel
	s.mu.Unlock()

	s.clock.Report(offsetSec)
	start := time.Now()

	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-cancel:
				return
			case <-ticker.C:
				s.clock.Report(offsetSec + time.Since(start).Seconds())
			}
		}
	}()
	return nil
}

func (s *pacedAudioSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		close(s.cancel)
		s.cancel = nil
	}
}

// hubRenderSink forwards composed frames to websocket clients.
type hubRenderSink struct {
	sessionId string
	hub       *notify.Hub
}

func (s hubRenderSink) Apply(frame []engine.SceneVisual) {
	if s.hub != nil {
		s.hub.PublishFrame(s.sessionId, frame)
	}
}
