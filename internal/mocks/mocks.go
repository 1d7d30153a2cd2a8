// Package mocks provides mock implementations of core interfaces for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"clipcast/internal/types"
)

// MockSynthesizer is a mock implementation of tts.Synthesizer.
type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, voice, markup string) ([]byte, error) {
	args := m.Called(ctx, voice, markup)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockUploader is a mock implementation of tts.Uploader.
type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, key string, data []byte) (string, error) {
	args := m.Called(ctx, key, data)
	return args.String(0), args.Error(1)
}

// MockFetcher is a mock implementation of tts.AudioFetcher.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockExportRenderer is a mock implementation of export.Renderer.
type MockExportRenderer struct {
	mock.Mock
}

func (m *MockExportRenderer) Render(ctx context.Context, jobId string, tl *types.Timeline, progress func(float64)) (string, error) {
	args := m.Called(ctx, jobId, tl, progress)
	return args.String(0), args.Error(1)
}
