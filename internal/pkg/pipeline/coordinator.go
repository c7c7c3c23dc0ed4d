package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/talkback/internal/pkg/api"
	"github.com/airenas/talkback/internal/pkg/generator"
	"github.com/airenas/talkback/internal/pkg/status"
	"github.com/airenas/talkback/internal/pkg/synthesizer"
	"github.com/airenas/talkback/internal/pkg/transcriber"
	tapi "github.com/airenas/talkback/internal/pkg/transcriber/api"
	"github.com/airenas/talkback/internal/pkg/utils"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// Store provides object storage
type Store interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// Transcriber provides asynchronous transcription
type Transcriber interface {
	Submit(ctx context.Context, jobID string, src api.Locator) error
	GetStatus(ctx context.Context, jobID string) (*tapi.StatusData, error)
}

// Generator provides text generation
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Synthesizer provides text to speech
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, format string) ([]byte, error)
}

// AudioSlot keeps local audio files
type AudioSlot interface {
	Write(runID string, data []byte) (string, error)
	Path(name string) (string, error)
}

// ServiceData keeps data required for the coordinator
type ServiceData struct {
	Store       Store
	Transcriber Transcriber
	Generator   Generator
	Synthesizer Synthesizer
	Audio       AudioSlot

	TranscriptBucket string
	AudioBucket      string
	JobPrefix        string

	Prompt    string
	MaxTokens int
	MaxChars  int
	Voice     string
	Format    string

	PollInterval    time.Duration
	MaxPollInterval time.Duration
	MaxWait         time.Duration
}

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultMaxWait      = 10 * time.Minute
	defaultMaxChars     = 2500
	defaultMaxTokens    = 500
)

// Coordinator runs transcription, generation and synthesis in sequence
type Coordinator struct {
	data   ServiceData
	format synthesizer.Format
}

// NewCoordinator validates data and creates the coordinator
func NewCoordinator(data *ServiceData) (*Coordinator, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	res := &Coordinator{data: *data}
	res.data.PollInterval = defaultDur(data.PollInterval, defaultPollInterval)
	res.data.MaxPollInterval = defaultDur(data.MaxPollInterval, res.data.PollInterval)
	res.data.MaxWait = defaultDur(data.MaxWait, defaultMaxWait)
	res.data.MaxChars = defaultInt(data.MaxChars, defaultMaxChars)
	res.data.MaxTokens = defaultInt(data.MaxTokens, defaultMaxTokens)
	res.format, _ = synthesizer.FormatInfo(data.Format)
	goapp.Log.Info().Dur("poll", res.data.PollInterval).Dur("maxPoll", res.data.MaxPollInterval).
		Dur("maxWait", res.data.MaxWait).Int("maxChars", res.data.MaxChars).Int("maxTokens", res.data.MaxTokens).
		Str("voice", data.Voice).Str("format", data.Format).Msg("pipeline")
	return res, nil
}

func validate(data *ServiceData) error {
	if data.Store == nil {
		return errors.New("no store")
	}
	if data.Transcriber == nil {
		return errors.New("no transcriber")
	}
	if data.Generator == nil {
		return errors.New("no generator")
	}
	if data.Synthesizer == nil {
		return errors.New("no synthesizer")
	}
	if data.Audio == nil {
		return errors.New("no audio slot")
	}
	if data.TranscriptBucket == "" {
		return errors.New("no transcript bucket")
	}
	if data.AudioBucket == "" {
		return errors.New("no audio bucket")
	}
	if data.Voice == "" {
		return errors.New("no voice")
	}
	if _, err := synthesizer.FormatInfo(data.Format); err != nil {
		return errors.Wrap(err, "wrong format")
	}
	return nil
}

// Run processes audio at sourceURI (s3://bucket/key).
// On failure the partially filled result is returned together with *api.StageError.
func (c *Coordinator) Run(ctx context.Context, sourceURI string) (*api.Result, error) {
	res := &api.Result{RunID: utils.NewID("")}
	log := goapp.Log.With().Str("run", res.RunID).Logger()
	log.Info().Str("src", sourceURI).Msg("start run")

	if err := c.observe(api.StageTranscription, func() error { return c.transcribe(ctx, &log, sourceURI, res) }); err != nil {
		return c.fail(&log, res, api.StageTranscription, err)
	}
	return c.answer(ctx, &log, res.RecognizedText, res)
}

// RunText processes text input skipping transcription
func (c *Coordinator) RunText(ctx context.Context, text string) (*api.Result, error) {
	res := &api.Result{RunID: utils.NewID(""), InputText: text}
	log := goapp.Log.With().Str("run", res.RunID).Logger()
	log.Info().Int("len", len(text)).Msg("start text run")
	return c.answer(ctx, &log, text, res)
}

func (c *Coordinator) answer(ctx context.Context, log *zerolog.Logger, text string, res *api.Result) (*api.Result, error) {
	if err := c.observe(api.StageGeneration, func() error { return c.generate(ctx, log, text, res) }); err != nil {
		return c.fail(log, res, api.StageGeneration, err)
	}
	if err := c.observe(api.StageSynthesis, func() error { return c.synthesize(ctx, log, res) }); err != nil {
		return c.fail(log, res, api.StageSynthesis, err)
	}
	res.Success = true
	runTotal.WithLabelValues("", "ok").Inc()
	log.Info().Str("audio", res.AudioFile).Str("locator", res.AudioLocator).Msg("run done")
	return res, nil
}

func (c *Coordinator) transcribe(ctx context.Context, log *zerolog.Logger, sourceURI string, res *api.Result) error {
	src, err := api.ParseLocator(sourceURI)
	if err != nil {
		return err
	}
	ok, err := c.data.Store.Exists(ctx, src.Bucket, src.Key)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", api.ErrSourceNotFound, src, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", api.ErrSourceNotFound, src)
	}
	jobID := utils.NewID(c.data.JobPrefix)
	log.Info().Str("job", jobID).Msg("submit")
	if err := c.data.Transcriber.Submit(ctx, jobID, src); err != nil {
		return fmt.Errorf("can't submit job: %w", err)
	}
	st, err := c.waitStatus(ctx, log, jobID)
	if err != nil {
		return err
	}
	if status.From(st.Status) == status.Failed {
		return fmt.Errorf("%w: job '%s': %s", api.ErrTranscriptionFailed, jobID, st.FailureReason)
	}
	doc, err := c.data.Store.Get(ctx, st.ResultLocator.Bucket, st.ResultLocator.Key)
	if err != nil {
		return fmt.Errorf("%w: can't load %s: %v", api.ErrResultParse, st.ResultLocator, err)
	}
	text, err := transcriber.ParseTranscript(doc)
	if err != nil {
		return err
	}
	res.RecognizedText = text
	tLoc := api.Locator{Bucket: c.data.TranscriptBucket, Key: jobID + ".txt"}
	if err := c.data.Store.Put(ctx, tLoc.Bucket, tLoc.Key, []byte(text), "text/plain; charset=utf-8"); err != nil {
		return fmt.Errorf("%w: %v", api.ErrStorageWrite, err)
	}
	res.TranscriptLocator = tLoc.String()
	log.Info().Int("len", len(text)).Str("transcript", res.TranscriptLocator).Msg("transcribed")
	return nil
}

// waitStatus polls the job until it is final.
// Polling is bounded by MaxWait, parent cancellation is returned as is.
func (c *Coordinator) waitStatus(ctx context.Context, log *zerolog.Logger, jobID string) (*tapi.StatusData, error) {
	wCtx, cf := context.WithTimeout(ctx, c.data.MaxWait)
	defer cf()
	bo := c.newBackoff()
	for {
		d, err := c.data.Transcriber.GetStatus(wCtx, jobID)
		if err != nil {
			if wCtx.Err() != nil {
				return nil, c.waitErr(ctx, jobID)
			}
			return nil, fmt.Errorf("can't get status: %w", err)
		}
		st := status.From(d.Status)
		log.Debug().Str("job", jobID).Str("status", d.Status).Msg("status")
		if st.Final() {
			log.Info().Str("job", jobID).Str("status", d.Status).Msg("job finished")
			return d, nil
		}
		if st == 0 {
			log.Warn().Str("job", jobID).Str("status", d.Status).Msg("unknown status")
		}
		timer := time.NewTimer(bo.NextBackOff())
		select {
		case <-wCtx.Done():
			timer.Stop()
			return nil, c.waitErr(ctx, jobID)
		case <-timer.C:
		}
	}
}

func (c *Coordinator) waitErr(parent context.Context, jobID string) error {
	if err := parent.Err(); err != nil {
		return fmt.Errorf("wait for job '%s' stopped: %w", jobID, err)
	}
	return fmt.Errorf("%w: job '%s' not finished in %v", api.ErrTimeout, jobID, c.data.MaxWait)
}

func (c *Coordinator) newBackoff() backoff.BackOff {
	res := backoff.NewExponentialBackOff()
	res.InitialInterval = c.data.PollInterval
	res.MaxInterval = c.data.MaxPollInterval
	res.Multiplier = 1.5
	res.RandomizationFactor = 0
	res.MaxElapsedTime = 0
	res.Reset()
	return res
}

func (c *Coordinator) generate(ctx context.Context, log *zerolog.Logger, text string, res *api.Result) error {
	if text == "" {
		return fmt.Errorf("%w: no input text", api.ErrGeneration)
	}
	prompt := generator.MakePrompt(c.data.Prompt, text)
	out, err := c.data.Generator.Generate(ctx, prompt, c.data.MaxTokens)
	if err != nil {
		return fmt.Errorf("%w: %w", api.ErrGeneration, err)
	}
	res.GeneratedText = out
	log.Info().Int("len", len(out)).Msg("generated")
	return nil
}

// synthesize makes audio and saves it locally and to the store.
// Both write errors are reported, a successful local write is not rolled back.
func (c *Coordinator) synthesize(ctx context.Context, log *zerolog.Logger, res *api.Result) error {
	text := utils.Truncate(res.GeneratedText, c.data.MaxChars)
	if text != res.GeneratedText {
		log.Info().Int("from", len(res.GeneratedText)).Int("to", len(text)).Msg("truncated")
	}
	data, err := c.data.Synthesizer.Synthesize(ctx, text, c.data.Voice, c.data.Format)
	if err != nil {
		return fmt.Errorf("%w: %w", api.ErrSynthesis, err)
	}
	var lErr, sErr error
	name, err := c.data.Audio.Write(res.RunID, data)
	if err != nil {
		lErr = fmt.Errorf("%w: %v", api.ErrLocalWrite, err)
	} else {
		res.AudioFile = name
		if res.AudioPath, err = c.data.Audio.Path(name); err != nil {
			log.Warn().Err(err).Str("name", name).Msg("no local path")
		}
	}
	loc := api.Locator{Bucket: c.data.AudioBucket, Key: utils.NewID("response") + c.format.Ext}
	if err := c.data.Store.Put(ctx, loc.Bucket, loc.Key, data, c.format.ContentType); err != nil {
		sErr = fmt.Errorf("%w: %v", api.ErrStorageWrite, err)
	} else {
		res.AudioLocator = loc.String()
	}
	if err := multierr.Combine(lErr, sErr); err != nil {
		return fmt.Errorf("%w: %w", api.ErrSynthesis, err)
	}
	log.Info().Int("bytes", len(data)).Msg("synthesized")
	return nil
}

func (c *Coordinator) fail(log *zerolog.Logger, res *api.Result, stage api.Stage, err error) (*api.Result, error) {
	res.Success = false
	res.FailedStage = stage
	res.Error = err.Error()
	runTotal.WithLabelValues(string(stage), "fail").Inc()
	log.Error().Err(err).Str("stage", string(stage)).Msg("run failed")
	return res, api.NewStageError(stage, err)
}

func (c *Coordinator) observe(stage api.Stage, f func() error) error {
	start := time.Now()
	err := f()
	stageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	return err
}

func defaultDur(v, d time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return d
}

func defaultInt(v, d int) int {
	if v > 0 {
		return v
	}
	return d
}
