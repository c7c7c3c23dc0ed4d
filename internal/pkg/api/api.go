package api

import (
	"fmt"
	"strings"
)

const (
	// PrmAudio is the multipart field holding uploaded audio
	PrmAudio = "audio"
	// S3Scheme is the storage locator scheme
	S3Scheme = "s3"
)

// Stage names a step of the pipeline
type Stage string

const (
	// StageUpload - input validation and upload
	StageUpload Stage = "upload"
	// StageTranscription - speech to text
	StageTranscription Stage = "transcription"
	// StageGeneration - text generation by LLM
	StageGeneration Stage = "generation"
	// StageSynthesis - text to speech
	StageSynthesis Stage = "synthesis"
)

// Locator identifies an object in the object store
type Locator struct {
	Bucket string
	Key    string
}

// ParseLocator parses s3://bucket/key string
func ParseLocator(s string) (Locator, error) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(s), "://")
	if !ok || scheme != S3Scheme {
		return Locator{}, fmt.Errorf("%w: wrong scheme in '%s'", ErrInvalidReference, s)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	res := Locator{Bucket: bucket, Key: key}
	if err := res.Validate(); err != nil {
		return Locator{}, fmt.Errorf("%w: '%s'", err, s)
	}
	return res, nil
}

// Validate checks bucket and key are set
func (l Locator) Validate() error {
	if l.Bucket == "" {
		return fmt.Errorf("%w: no bucket", ErrInvalidReference)
	}
	if l.Key == "" || strings.HasSuffix(l.Key, "/") {
		return fmt.Errorf("%w: no key", ErrInvalidReference)
	}
	return nil
}

func (l Locator) String() string {
	return fmt.Sprintf("%s://%s/%s", S3Scheme, l.Bucket, l.Key)
}

// Result is the outcome of one pipeline run
type Result struct {
	RunID             string `json:"runId"`
	Success           bool   `json:"success"`
	InputText         string `json:"inputText,omitempty"`
	RecognizedText    string `json:"transcribedText,omitempty"`
	GeneratedText     string `json:"aiResponse,omitempty"`
	AudioFile         string `json:"audioFile,omitempty"`
	AudioPath         string `json:"-"`
	AudioLocator      string `json:"audioLocator,omitempty"`
	TranscriptLocator string `json:"transcriptLocator,omitempty"`
	FailedStage       Stage  `json:"stage,omitempty"`
	Error             string `json:"error,omitempty"`
}

// PipelineInfo describes configured pipeline capabilities
type PipelineInfo struct {
	Storage       string `json:"storage"`
	Transcription string `json:"transcription"`
	Generation    string `json:"generation"`
	Synthesis     string `json:"synthesis"`
	Model         string `json:"model"`
	Voice         string `json:"voice"`
	Format        string `json:"format"`
	Language      string `json:"language,omitempty"`
	MaxChars      int    `json:"maxChars"`
	MaxTokens     int    `json:"maxTokens"`
	MaxWait       string `json:"maxWait"`
	PerRunAudio   bool   `json:"perRunAudio"`
}
