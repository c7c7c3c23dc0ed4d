package api

import "github.com/airenas/talkback/internal/pkg/api"

// StatusData keeps transcription job state
type StatusData struct {
	ID            string
	Status        string
	FailureReason string
	ResultLocator api.Locator
}

// Transcript is the result document produced by the transcription service
type Transcript struct {
	JobName string `json:"jobName"`
	Status  string `json:"status"`
	Results *struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}
