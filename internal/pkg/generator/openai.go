package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/talkback/internal/pkg/api"
	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
)

const projectHeader = "OpenAI-Project"

// OpenAIOptions for the OpenAI compatible endpoint
type OpenAIOptions struct {
	URL     string
	Key     string
	Model   string
	Project string
	Timeout time.Duration
}

// OpenAI generates text with an OpenAI compatible hosted endpoint
type OpenAI struct {
	client  *openai.Client
	model   string
	hasKey  bool
	backoff func() backoff.BackOff
}

// NewOpenAI creates the client, missing key is reported on Generate
func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("no model")
	}
	cfg := openai.DefaultConfig(opts.Key)
	if opts.URL != "" {
		cfg.BaseURL = strings.TrimSuffix(opts.URL, "/")
	}
	cfg.HTTPClient = &http.Client{Transport: &projectTransport{project: opts.Project, next: newTransport()},
		Timeout: defaultDur(opts.Timeout, time.Minute*2)}
	goapp.Log.Info().Str("model", opts.Model).Str("url", cfg.BaseURL).Bool("project", opts.Project != "").
		Msg("openai generator")
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: opts.Model, hasKey: opts.Key != "",
		backoff: newSimpleBackoff}, nil
}

// Generate returns model answer to prompt
func (o *OpenAI) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	defer goapp.Estimate("openai generate")()
	if !o.hasKey {
		return "", fmt.Errorf("%w: no api key", api.ErrNoCredentials)
	}
	return goapp.InvokeWithBackoff(ctx, func() (string, bool, error) {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:     o.model,
			MaxTokens: maxTokens,
			Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		})
		if err != nil {
			return "", isRetryable(err), fmt.Errorf("can't complete: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", false, fmt.Errorf("no choices in response")
		}
		res := strings.TrimSpace(resp.Choices[0].Message.Content)
		if res == "" {
			return "", false, fmt.Errorf("empty answer, finish reason '%s'", resp.Choices[0].FinishReason)
		}
		return res, false, nil
	}, o.backoff())
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableCode(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableCode(reqErr.HTTPStatusCode)
	}
	return goapp.IsRetryableErr(err)
}

func retryableCode(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

type projectTransport struct {
	project string
	next    http.RoundTripper
}

func (t *projectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.project != "" {
		req = req.Clone(req.Context())
		req.Header.Set(projectHeader, t.project)
	}
	return t.next.RoundTrip(req)
}

func newTransport() http.RoundTripper {
	res := http.DefaultTransport.(*http.Transport).Clone()
	res.MaxConnsPerHost = 100
	res.MaxIdleConns = 50
	res.MaxIdleConnsPerHost = 50
	res.IdleConnTimeout = 90 * time.Second
	return res
}

func newSimpleBackoff() backoff.BackOff {
	res := backoff.NewExponentialBackOff()
	return backoff.WithMaxRetries(res, 3)
}

func defaultDur(v, d time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return d
}
