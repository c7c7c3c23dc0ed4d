package main

import (
	"context"
	"fmt"
	"time"

	aclean "github.com/airenas/async-api/pkg/clean"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/talkback/internal/pkg/api"
	"github.com/airenas/talkback/internal/pkg/audio"
	"github.com/airenas/talkback/internal/pkg/cloud"
	"github.com/airenas/talkback/internal/pkg/generator"
	"github.com/airenas/talkback/internal/pkg/pipeline"
	"github.com/airenas/talkback/internal/pkg/service"
	"github.com/airenas/talkback/internal/pkg/storage"
	"github.com/airenas/talkback/internal/pkg/synthesizer"
	"github.com/airenas/talkback/internal/pkg/transcriber"
	"github.com/airenas/talkback/internal/pkg/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/color"
	"github.com/spf13/viper"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env loaded")
	}
	goapp.StartWithDefault()
	cfg := goapp.Config

	printBanner()

	ctx := context.Background()

	awsCfg, err := cloud.LoadConfig(ctx, cloud.OptionsFromConfig(cfg))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init aws config")
	}

	st, err := newStore(cfg, awsCfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init storage")
	}

	pData := &pipeline.ServiceData{Store: st}
	pData.TranscriptBucket = cfg.GetString("storage.transcriptBucket")
	pData.AudioBucket = defaultV(cfg.GetString("storage.audioBucket"), pData.TranscriptBucket)
	pData.JobPrefix = defaultV(cfg.GetString("transcriber.jobPrefix"), "talkback")
	pData.PollInterval = cfg.GetDuration("transcriber.pollInterval")
	pData.MaxPollInterval = cfg.GetDuration("transcriber.maxPollInterval")
	pData.MaxWait = cfg.GetDuration("transcriber.maxWait")
	pData.Prompt = cfg.GetString("llm.prompt")
	pData.MaxTokens = defaultV(cfg.GetInt("llm.maxTokens"), 500)
	pData.MaxChars = defaultV(cfg.GetInt("tts.maxChars"), 2500)
	pData.Voice = defaultV(cfg.GetString("tts.voice"), "Joanna")
	pData.Format = defaultV(cfg.GetString("tts.format"), "mp3")

	pData.Transcriber, err = transcriber.NewClient(awsCfg, transcriber.Options{
		URL:            cfg.GetString("transcriber.url"),
		Language:       cfg.GetString("transcriber.language"),
		OutputBucket:   pData.TranscriptBucket,
		DataAccessRole: cfg.GetString("transcriber.dataAccessRole"),
	})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init transcriber")
	}

	provider := defaultV(cfg.GetString("llm.provider"), "bedrock")
	pData.Generator, err = newGenerator(provider, cfg, awsCfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init generator")
	}

	pData.Synthesizer, err = synthesizer.NewClient(awsCfg, cfg.GetString("tts.url"), cfg.GetString("tts.engine"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init synthesizer")
	}

	fi, err := synthesizer.FormatInfo(pData.Format)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("wrong tts format")
	}
	aOpts := audio.Options{
		Dir:    defaultV(cfg.GetString("audio.dir"), "audio"),
		Name:   defaultV(cfg.GetString("audio.name"), "response"+fi.Ext),
		PerRun: !cfg.IsSet("audio.perRun") || cfg.GetBool("audio.perRun"),
	}
	if aOpts.PerRun {
		aOpts.Expire = defaultV(cfg.GetDuration("audio.expire"), time.Hour)
	}
	slot, err := audio.NewSlot(aOpts)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init audio slot")
	}
	pData.Audio = slot

	coordinator, err := pipeline.NewCoordinator(pData)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init pipeline")
	}

	data := &service.Data{Runner: coordinator, Audio: slot, Saver: st}
	data.Port = defaultV(cfg.GetInt("port"), 3000)
	data.InputBucket = cfg.GetString("storage.inputBucket")
	data.BodyLimit = cfg.GetString("http.bodyLimit")
	data.Timeout = defaultV(cfg.GetDuration("http.timeout"), time.Minute*10)
	data.Info = &api.PipelineInfo{
		Storage:       defaultV(cfg.GetString("storage.kind"), "minio"),
		Transcription: "aws-transcribe",
		Generation:    provider,
		Synthesis:     "aws-polly",
		Model:         cfg.GetString("llm.model"),
		Voice:         pData.Voice,
		Format:        pData.Format,
		Language:      cfg.GetString("transcriber.language"),
		MaxChars:      pData.MaxChars,
		MaxTokens:     pData.MaxTokens,
		MaxWait:       defaultV(pData.MaxWait, 10*time.Minute).String(),
		PerRunAudio:   slot.PerRun(),
	}

	ctxTimer, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	tData := aclean.TimerData{RunEvery: defaultV(cfg.GetDuration("audio.cleanEvery"), time.Minute*10),
		Cleaner: slot, IDsProvider: slot}
	doneCh, err := aclean.StartCleanTimer(ctxTimer, &tData)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start timer")
	}

	go utils.RunDebugEndpoint(cfg.GetInt("debug.port"))

	err = service.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
	cancelFunc()
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}
}

func newStore(cfg *viper.Viper, awsCfg aws.Config) (pipeline.Store, error) {
	switch kind := defaultV(cfg.GetString("storage.kind"), "minio"); kind {
	case "minio":
		o := cloud.OptionsFromConfig(cfg)
		return storage.NewMinioStore(storage.Options{URL: cfg.GetString("storage.url"),
			Secure: cfg.GetBool("storage.https"), Region: o.Region,
			AccessKey: defaultV(cfg.GetString("storage.accessKey"), o.AccessKey),
			SecretKey: defaultV(cfg.GetString("storage.secretKey"), o.SecretKey), SessionToken: o.SessionToken})
	case "s3":
		return storage.NewS3Store(awsCfg, cfg.GetString("storage.url"))
	default:
		return nil, fmt.Errorf("unknown storage kind '%s'", kind)
	}
}

func newGenerator(provider string, cfg *viper.Viper, awsCfg aws.Config) (pipeline.Generator, error) {
	switch provider {
	case "bedrock":
		return generator.NewBedrock(awsCfg, cfg.GetString("llm.url"), cfg.GetString("llm.model"))
	case "openai":
		return generator.NewOpenAI(generator.OpenAIOptions{URL: cfg.GetString("llm.url"), Key: cfg.GetString("llm.key"),
			Model: cfg.GetString("llm.model"), Project: cfg.GetString("llm.project"),
			Timeout: cfg.GetDuration("llm.timeout")})
	default:
		return nil, fmt.Errorf("unknown llm provider '%s'", provider)
	}
}

func defaultV[T comparable](v, d T) T {
	var e T
	if v == e {
		return d
	}
	return v
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
   __        ____   __                __  
  / /_____ _/ / /__/ /_  ____ ______/ /__
 / __/ __ ` + "`" + `/ / //_/ __ \/ __ ` + "`" + `/ ___/ //_/
/ /_/ /_/ / / ,< / /_/ / /_/ / /__/ ,<   
\__/\__,_/_/_/|_/_.___/\__,_/\___/_/|_|  v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/talkback"))
}
