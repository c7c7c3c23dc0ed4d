package mocks

import (
	"context"

	"github.com/airenas/talkback/internal/pkg/api"
	tapi "github.com/airenas/talkback/internal/pkg/transcriber/api"
	"github.com/stretchr/testify/mock"
)

// Store is object store mock
type Store struct{ mock.Mock }

func (m *Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	args := m.Called(ctx, bucket, key, data, contentType)
	return args.Error(0)
}

func (m *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	args := m.Called(ctx, bucket, key)
	return to[[]byte](args.Get(0)), args.Error(1)
}

func (m *Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	args := m.Called(ctx, bucket, key)
	return args.Bool(0), args.Error(1)
}

// Transcriber is transcription client mock
type Transcriber struct{ mock.Mock }

func (m *Transcriber) Submit(ctx context.Context, jobID string, src api.Locator) error {
	args := m.Called(ctx, jobID, src)
	return args.Error(0)
}

func (m *Transcriber) GetStatus(ctx context.Context, jobID string) (*tapi.StatusData, error) {
	args := m.Called(ctx, jobID)
	return to[*tapi.StatusData](args.Get(0)), args.Error(1)
}

// Generator is LLM client mock
type Generator struct{ mock.Mock }

func (m *Generator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	args := m.Called(ctx, prompt, maxTokens)
	return args.String(0), args.Error(1)
}

// Synthesizer is TTS client mock
type Synthesizer struct{ mock.Mock }

func (m *Synthesizer) Synthesize(ctx context.Context, text, voice, format string) ([]byte, error) {
	args := m.Called(ctx, text, voice, format)
	return to[[]byte](args.Get(0)), args.Error(1)
}

// AudioSlot is local audio store mock
type AudioSlot struct{ mock.Mock }

func (m *AudioSlot) Write(runID string, data []byte) (string, error) {
	args := m.Called(runID, data)
	return args.String(0), args.Error(1)
}

func (m *AudioSlot) Path(name string) (string, error) {
	args := m.Called(name)
	return args.String(0), args.Error(1)
}

func (m *AudioSlot) Delete(name string) (bool, error) {
	args := m.Called(name)
	return args.Bool(0), args.Error(1)
}

func (m *AudioSlot) DefaultName() string {
	args := m.Called()
	return args.String(0)
}

// Runner is pipeline mock
type Runner struct{ mock.Mock }

func (m *Runner) Run(ctx context.Context, sourceURI string) (*api.Result, error) {
	args := m.Called(ctx, sourceURI)
	return to[*api.Result](args.Get(0)), args.Error(1)
}

func (m *Runner) RunText(ctx context.Context, text string) (*api.Result, error) {
	args := m.Called(ctx, text)
	return to[*api.Result](args.Get(0)), args.Error(1)
}

func to[T interface{}](val interface{}) T {
	if val == nil {
		var res T
		return res
	}
	return val.(T)
}
