package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/talkback/internal/pkg/api"
	"github.com/airenas/talkback/internal/pkg/cloud"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput,
		optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Bedrock generates text with aws bedrock models
type Bedrock struct {
	api        converseAPI
	model      string
	checkCreds func(ctx context.Context) error
}

// NewBedrock creates bedrock client
func NewBedrock(cfg aws.Config, url, model string) (*Bedrock, error) {
	if model == "" {
		return nil, fmt.Errorf("no model")
	}
	res := &Bedrock{model: model}
	res.api = bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		if url != "" {
			o.BaseEndpoint = aws.String(url)
		}
	})
	res.checkCreds = func(ctx context.Context) error { return cloud.HasCredentials(ctx, cfg) }
	goapp.Log.Info().Str("model", model).Str("url", url).Msg("bedrock generator")
	return res, nil
}

// Generate returns model answer to prompt
func (b *Bedrock) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	defer goapp.Estimate("bedrock generate")()
	if err := b.checkCreds(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", api.ErrNoCredentials, err)
	}
	in := &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.model),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
		}},
	}
	if maxTokens > 0 {
		in.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(maxTokens))}
	}
	out, err := b.api.Converse(ctx, in)
	if err != nil {
		return "", fmt.Errorf("can't converse: %w", err)
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("unexpected output type %T", out.Output)
	}
	var sb strings.Builder
	for _, c := range msg.Value.Content {
		if t, ok := c.(*types.ContentBlockMemberText); ok {
			sb.WriteString(t.Value)
		}
	}
	res := strings.TrimSpace(sb.String())
	if res == "" {
		return "", fmt.Errorf("empty answer, stop reason '%s'", out.StopReason)
	}
	return res, nil
}
