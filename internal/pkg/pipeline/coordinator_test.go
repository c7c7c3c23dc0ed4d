package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/airenas/talkback/internal/pkg/api"
	"github.com/airenas/talkback/internal/pkg/audio"
	"github.com/airenas/talkback/internal/pkg/test"
	"github.com/airenas/talkback/internal/pkg/test/mocks"
	tapi "github.com/airenas/talkback/internal/pkg/transcriber/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const transcriptDoc = `{"jobName":"j","results":{"transcripts":[{"transcript":"I feel tired"},{"transcript":"today"}]}}`

var (
	storeMock       *mocks.Store
	transcriberMock *mocks.Transcriber
	generatorMock   *mocks.Generator
	synthesizerMock *mocks.Synthesizer
	audioMock       *mocks.AudioSlot
	tData           *ServiceData
)

func initTest(t *testing.T) {
	t.Helper()
	storeMock = &mocks.Store{}
	transcriberMock = &mocks.Transcriber{}
	generatorMock = &mocks.Generator{}
	synthesizerMock = &mocks.Synthesizer{}
	audioMock = &mocks.AudioSlot{}
	tData = &ServiceData{Store: storeMock, Transcriber: transcriberMock, Generator: generatorMock,
		Synthesizer: synthesizerMock, Audio: audioMock, TranscriptBucket: "tr", AudioBucket: "au",
		JobPrefix: "job", Prompt: "Answer: {{text}}", MaxTokens: 100, MaxChars: 2500, Voice: "Joanna", Format: "mp3",
		PollInterval: time.Millisecond, MaxWait: time.Second * 5}
}

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(tData)
	require.Nil(t, err)
	return c
}

func statusData(st string) *tapi.StatusData {
	return &tapi.StatusData{Status: st, ResultLocator: api.Locator{Bucket: "tr", Key: "j.json"}}
}

func prepareSuccess() {
	storeMock.On("Exists", mock.Anything, "in", "a.wav").Return(true, nil)
	transcriberMock.On("Submit", mock.Anything, mock.Anything, api.Locator{Bucket: "in", Key: "a.wav"}).Return(nil)
	transcriberMock.On("GetStatus", mock.Anything, mock.Anything).Return(statusData("COMPLETED"), nil)
	storeMock.On("Get", mock.Anything, "tr", "j.json").Return([]byte(transcriptDoc), nil)
	storeMock.On("Put", mock.Anything, "tr", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	generatorMock.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("Rest a bit.", nil)
	synthesizerMock.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]byte("mp3"), nil)
	audioMock.On("Write", mock.Anything, mock.Anything).Return("response.mp3", nil)
	audioMock.On("Path", "response.mp3").Return("/audio/response.mp3", nil)
	storeMock.On("Put", mock.Anything, "au", mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func TestNewCoordinator(t *testing.T) {
	initTest(t)
	c, err := NewCoordinator(&ServiceData{Store: storeMock, Transcriber: transcriberMock, Generator: generatorMock,
		Synthesizer: synthesizerMock, Audio: audioMock, TranscriptBucket: "tr", AudioBucket: "au", Voice: "v", Format: "mp3"})
	require.Nil(t, err)
	assert.Equal(t, 100*time.Millisecond, c.data.PollInterval)
	assert.Equal(t, 100*time.Millisecond, c.data.MaxPollInterval)
	assert.Equal(t, 10*time.Minute, c.data.MaxWait)
	assert.Equal(t, 2500, c.data.MaxChars)
	assert.Equal(t, ".mp3", c.format.Ext)
}

func Test_validate(t *testing.T) {
	initTest(t)
	tests := []struct {
		name    string
		change  func(*ServiceData)
		wantErr bool
	}{
		{name: "OK", change: func(d *ServiceData) {}, wantErr: false},
		{name: "Store", change: func(d *ServiceData) { d.Store = nil }, wantErr: true},
		{name: "Transcriber", change: func(d *ServiceData) { d.Transcriber = nil }, wantErr: true},
		{name: "Generator", change: func(d *ServiceData) { d.Generator = nil }, wantErr: true},
		{name: "Synthesizer", change: func(d *ServiceData) { d.Synthesizer = nil }, wantErr: true},
		{name: "Audio", change: func(d *ServiceData) { d.Audio = nil }, wantErr: true},
		{name: "Transcript bucket", change: func(d *ServiceData) { d.TranscriptBucket = "" }, wantErr: true},
		{name: "Audio bucket", change: func(d *ServiceData) { d.AudioBucket = "" }, wantErr: true},
		{name: "Voice", change: func(d *ServiceData) { d.Voice = "" }, wantErr: true},
		{name: "Format", change: func(d *ServiceData) { d.Format = "wav" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := *tData
			tt.change(&d)
			if err := validate(&d); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRun(t *testing.T) {
	initTest(t)
	prepareSuccess()
	var order []string
	for _, c := range []*mock.Call{transcriberMock.ExpectedCalls[0], generatorMock.ExpectedCalls[0], synthesizerMock.ExpectedCalls[0]} {
		name := c.Method
		c.Run(func(args mock.Arguments) { order = append(order, name) })
	}
	c := newTestCoordinator(t)

	res, err := c.Run(test.Ctx(t), "s3://in/a.wav")

	require.Nil(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "I feel tired\ntoday", res.RecognizedText)
	assert.Equal(t, "Rest a bit.", res.GeneratedText)
	assert.Equal(t, "response.mp3", res.AudioFile)
	assert.Equal(t, "/audio/response.mp3", res.AudioPath)
	assert.True(t, strings.HasPrefix(res.AudioLocator, "s3://au/response-"))
	assert.True(t, strings.HasSuffix(res.AudioLocator, ".mp3"))
	assert.True(t, strings.HasPrefix(res.TranscriptLocator, "s3://tr/job-"))
	assert.Equal(t, api.Stage(""), res.FailedStage)
	assert.Equal(t, []string{"Submit", "Generate", "Synthesize"}, order)

	jobID := transcriberMock.Calls[0].Arguments[1].(string)
	assert.True(t, strings.HasPrefix(jobID, "job-"))
	transcriberMock.AssertCalled(t, "GetStatus", mock.Anything, jobID)
	storeMock.AssertCalled(t, "Put", mock.Anything, "tr", jobID+".txt", []byte("I feel tired\ntoday"), "text/plain; charset=utf-8")
	generatorMock.AssertCalled(t, "Generate", mock.Anything, "Answer: I feel tired\ntoday", 100)
	synthesizerMock.AssertCalled(t, "Synthesize", mock.Anything, "Rest a bit.", "Joanna", "mp3")
	audioMock.AssertCalled(t, "Write", res.RunID, []byte("mp3"))
	storeMock.AssertCalled(t, "Put", mock.Anything, "au", mock.Anything, []byte("mp3"), "audio/mpeg")
}

func TestRun_Polls(t *testing.T) {
	initTest(t)
	transcriberMock.On("GetStatus", mock.Anything, mock.Anything).Return(statusData("QUEUED"), nil).Once()
	transcriberMock.On("GetStatus", mock.Anything, mock.Anything).Return(statusData("IN_PROGRESS"), nil).Once()
	transcriberMock.On("GetStatus", mock.Anything, mock.Anything).Return(statusData("olia"), nil).Once()
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.Run(test.Ctx(t), "s3://in/a.wav")

	require.Nil(t, err)
	assert.True(t, res.Success)
	transcriberMock.AssertNumberOfCalls(t, "GetStatus", 4)
}

func TestRun_TranscriptionFailed(t *testing.T) {
	initTest(t)
	transcriberMock.On("GetStatus", mock.Anything, mock.Anything).Return(
		&tapi.StatusData{Status: "FAILED", FailureReason: "bad media"}, nil)
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.Run(test.Ctx(t), "s3://in/a.wav")

	require.NotNil(t, err)
	assert.ErrorIs(t, err, api.ErrTranscriptionFailed)
	assert.Equal(t, api.StageTranscription, api.StageOf(err))
	assert.False(t, res.Success)
	assert.Equal(t, api.StageTranscription, res.FailedStage)
	assert.Contains(t, res.Error, "bad media")
	generatorMock.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	synthesizerMock.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	storeMock.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_GenerationFails_KeepsTranscript(t *testing.T) {
	initTest(t)
	generatorMock.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("olia"))
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.Run(test.Ctx(t), "s3://in/a.wav")

	require.NotNil(t, err)
	assert.ErrorIs(t, err, api.ErrGeneration)
	assert.Equal(t, api.StageGeneration, res.FailedStage)
	assert.Equal(t, "I feel tired\ntoday", res.RecognizedText)
	assert.NotEmpty(t, res.TranscriptLocator)
	storeMock.AssertCalled(t, "Put", mock.Anything, "tr", mock.Anything, []byte("I feel tired\ntoday"), mock.Anything)
	synthesizerMock.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_NoCredentials(t *testing.T) {
	initTest(t)
	generatorMock.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("",
		errors.Join(api.ErrNoCredentials, errors.New("no key")))
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.Run(test.Ctx(t), "s3://in/a.wav")

	assert.ErrorIs(t, err, api.ErrGeneration)
	assert.ErrorIs(t, err, api.ErrNoCredentials)
	assert.Equal(t, api.StageGeneration, res.FailedStage)
}

func TestRun_TranscriptionFails(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		prepare func()
		wantErr error
	}{
		{name: "Invalid", uri: "http://in/a.wav", prepare: func() {}, wantErr: api.ErrInvalidReference},
		{name: "No key", uri: "s3://in/", prepare: func() {}, wantErr: api.ErrInvalidReference},
		{name: "Not found", uri: "s3://in/a.wav", prepare: func() {
			storeMock.On("Exists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
		}, wantErr: api.ErrSourceNotFound},
		{name: "Exists fails", uri: "s3://in/a.wav", prepare: func() {
			storeMock.On("Exists", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("olia"))
		}, wantErr: api.ErrSourceNotFound},
		{name: "No result", uri: "s3://in/a.wav", prepare: func() {
			storeMock.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("olia"))
		}, wantErr: api.ErrResultParse},
		{name: "Bad result", uri: "s3://in/a.wav", prepare: func() {
			storeMock.On("Get", mock.Anything, mock.Anything, mock.Anything).Return([]byte(`{}`), nil)
		}, wantErr: api.ErrResultParse},
		{name: "Transcript write", uri: "s3://in/a.wav", prepare: func() {
			storeMock.On("Put", mock.Anything, "tr", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("olia"))
		}, wantErr: api.ErrStorageWrite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initTest(t)
			tt.prepare()
			prepareSuccess()
			c := newTestCoordinator(t)

			res, err := c.Run(test.Ctx(t), tt.uri)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, api.StageTranscription, res.FailedStage)
			generatorMock.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRun_SubmitFails(t *testing.T) {
	initTest(t)
	transcriberMock.On("Submit", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("olia"))
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.Run(test.Ctx(t), "s3://in/a.wav")

	require.NotNil(t, err)
	assert.Equal(t, api.StageTranscription, res.FailedStage)
	transcriberMock.AssertNotCalled(t, "GetStatus", mock.Anything, mock.Anything)
}

func TestRun_Timeout(t *testing.T) {
	initTest(t)
	tData.MaxWait = 50 * time.Millisecond
	transcriberMock.On("GetStatus", mock.Anything, mock.Anything).Return(statusData("IN_PROGRESS"), nil)
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.Run(test.Ctx(t), "s3://in/a.wav")

	assert.ErrorIs(t, err, api.ErrTimeout)
	assert.Equal(t, api.StageTranscription, res.FailedStage)
	generatorMock.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_Cancel(t *testing.T) {
	initTest(t)
	ctx, cf := context.WithCancel(test.Ctx(t))
	transcriberMock.On("GetStatus", mock.Anything, mock.Anything).Return(statusData("IN_PROGRESS"), nil).
		Run(func(args mock.Arguments) { cf() })
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.Run(ctx, "s3://in/a.wav")

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, api.ErrTimeout)
	assert.Equal(t, api.StageTranscription, res.FailedStage)
}

func TestRun_CancelDuringLongPoll(t *testing.T) {
	initTest(t)
	tData.PollInterval = time.Hour
	tData.MaxWait = 2 * time.Hour
	ctx, cf := context.WithCancel(test.Ctx(t))
	transcriberMock.On("GetStatus", mock.Anything, mock.Anything).Return(statusData("IN_PROGRESS"), nil).
		Run(func(args mock.Arguments) { time.AfterFunc(10*time.Millisecond, cf) })
	prepareSuccess()
	c := newTestCoordinator(t)

	start := time.Now()
	_, err := c.Run(ctx, "s3://in/a.wav")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
	transcriberMock.AssertNumberOfCalls(t, "GetStatus", 1)
}

func TestRun_StatusFails(t *testing.T) {
	initTest(t)
	transcriberMock.On("GetStatus", mock.Anything, mock.Anything).Return(nil, errors.New("olia"))
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.Run(test.Ctx(t), "s3://in/a.wav")

	require.NotNil(t, err)
	assert.NotErrorIs(t, err, api.ErrTimeout)
	assert.Equal(t, api.StageTranscription, res.FailedStage)
}

func TestRun_Truncates(t *testing.T) {
	initTest(t)
	tData.MaxChars = 10
	generatorMock.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("aaaaaaaa. bbbbbbb", nil)
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.Run(test.Ctx(t), "s3://in/a.wav")

	require.Nil(t, err)
	assert.Equal(t, "aaaaaaaa. bbbbbbb", res.GeneratedText)
	synthesizerMock.AssertCalled(t, "Synthesize", mock.Anything, "aaaaaaaa.", "Joanna", "mp3")
}

func TestRunText(t *testing.T) {
	initTest(t)
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.RunText(test.Ctx(t), "Hello")

	require.Nil(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Hello", res.InputText)
	assert.Equal(t, "Rest a bit.", res.GeneratedText)
	assert.Equal(t, "response.mp3", res.AudioFile)
	transcriberMock.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
	generatorMock.AssertCalled(t, "Generate", mock.Anything, "Answer: Hello", 100)
}

func TestRunText_NoLocalPath(t *testing.T) {
	initTest(t)
	audioMock.On("Path", "response.mp3").Return("", errors.New("wrong name"))
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.RunText(test.Ctx(t), "Hello")

	require.Nil(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "response.mp3", res.AudioFile)
	assert.Empty(t, res.AudioPath)
	assert.NotEmpty(t, res.AudioLocator)
}

func TestRunText_Empty(t *testing.T) {
	initTest(t)
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.RunText(test.Ctx(t), "")

	assert.ErrorIs(t, err, api.ErrGeneration)
	assert.Equal(t, api.StageGeneration, res.FailedStage)
	generatorMock.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_SynthesisFails(t *testing.T) {
	initTest(t)
	synthesizerMock.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("olia"))
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.Run(test.Ctx(t), "s3://in/a.wav")

	assert.ErrorIs(t, err, api.ErrSynthesis)
	assert.Equal(t, api.StageSynthesis, res.FailedStage)
	assert.Equal(t, "Rest a bit.", res.GeneratedText)
	audioMock.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
}

func TestRun_StorageWriteFails_KeepsLocal(t *testing.T) {
	initTest(t)
	storeMock.On("Put", mock.Anything, "au", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("olia"))
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.Run(test.Ctx(t), "s3://in/a.wav")

	assert.ErrorIs(t, err, api.ErrSynthesis)
	assert.ErrorIs(t, err, api.ErrStorageWrite)
	assert.NotErrorIs(t, err, api.ErrLocalWrite)
	assert.Equal(t, api.StageSynthesis, res.FailedStage)
	assert.Equal(t, "response.mp3", res.AudioFile)
	assert.Empty(t, res.AudioLocator)
}

func TestRun_LocalWriteFails(t *testing.T) {
	initTest(t)
	audioMock.On("Write", mock.Anything, mock.Anything).Return("", errors.New("olia"))
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.Run(test.Ctx(t), "s3://in/a.wav")

	assert.ErrorIs(t, err, api.ErrLocalWrite)
	assert.NotErrorIs(t, err, api.ErrStorageWrite)
	assert.Equal(t, api.StageSynthesis, res.FailedStage)
	assert.Empty(t, res.AudioFile)
	assert.NotEmpty(t, res.AudioLocator)
}

func TestRun_BothWritesFail(t *testing.T) {
	initTest(t)
	audioMock.On("Write", mock.Anything, mock.Anything).Return("", errors.New("local"))
	storeMock.On("Put", mock.Anything, "au", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("remote"))
	prepareSuccess()
	c := newTestCoordinator(t)

	res, err := c.Run(test.Ctx(t), "s3://in/a.wav")

	assert.ErrorIs(t, err, api.ErrLocalWrite)
	assert.ErrorIs(t, err, api.ErrStorageWrite)
	assert.Contains(t, res.Error, "local")
	assert.Contains(t, res.Error, "remote")
}

func TestRunText_SingleSlot_UniqueKeys(t *testing.T) {
	initTest(t)
	dir := t.TempDir()
	slot, err := audio.NewSlot(audio.Options{Dir: dir, Name: "response.mp3"})
	require.Nil(t, err)
	tData.Audio = slot
	generatorMock.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("Answer.", nil)
	synthesizerMock.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]byte("first"), nil).Once()
	synthesizerMock.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]byte("second"), nil).Once()
	storeMock.On("Put", mock.Anything, "au", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c := newTestCoordinator(t)

	r1, err := c.RunText(test.Ctx(t), "one")
	require.Nil(t, err)
	r2, err := c.RunText(test.Ctx(t), "two")
	require.Nil(t, err)

	entries, err := os.ReadDir(dir)
	require.Nil(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "response.mp3", entries[0].Name())
	b, err := os.ReadFile(filepath.Join(dir, "response.mp3"))
	require.Nil(t, err)
	assert.Equal(t, "second", string(b))
	assert.Equal(t, filepath.Join(dir, "response.mp3"), r2.AudioPath)

	assert.NotEqual(t, r1.AudioLocator, r2.AudioLocator)
	k1 := storeMock.Calls[0].Arguments[2].(string)
	k2 := storeMock.Calls[1].Arguments[2].(string)
	assert.NotEqual(t, k1, k2)
}
