package synthesizer

import (
	"context"
	"fmt"
	"io"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

type pollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput,
		optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Client synthesizes speech with aws polly
type Client struct {
	api    pollyAPI
	engine string
}

// NewClient creates polly client, engine may be empty
func NewClient(cfg aws.Config, url, engine string) (*Client, error) {
	res := &Client{engine: engine}
	res.api = polly.NewFromConfig(cfg, func(o *polly.Options) {
		if url != "" {
			o.BaseEndpoint = aws.String(url)
		}
	})
	goapp.Log.Info().Str("engine", engine).Str("url", url).Msg("polly synthesizer")
	return res, nil
}

// Synthesize returns audio bytes
func (c *Client) Synthesize(ctx context.Context, text, voice, format string) ([]byte, error) {
	defer goapp.Estimate("polly synthesize")()
	if text == "" {
		return nil, fmt.Errorf("no text")
	}
	if _, err := FormatInfo(format); err != nil {
		return nil, err
	}
	in := &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		VoiceId:      types.VoiceId(voice),
		OutputFormat: types.OutputFormat(format),
		TextType:     types.TextTypeText,
	}
	if c.engine != "" {
		in.Engine = types.Engine(c.engine)
	}
	out, err := c.api.SynthesizeSpeech(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("can't synthesize: %w", err)
	}
	if out.AudioStream == nil {
		return nil, fmt.Errorf("no audio stream")
	}
	defer out.AudioStream.Close()
	res, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("can't read audio: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("empty audio")
	}
	return res, nil
}
