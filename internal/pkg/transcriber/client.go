package transcriber

import (
	"context"
	"fmt"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/talkback/internal/pkg/api"
	tapi "github.com/airenas/talkback/internal/pkg/transcriber/api"
	"github.com/airenas/talkback/internal/pkg/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
)

type transcribeAPI interface {
	StartTranscriptionJob(ctx context.Context, params *transcribe.StartTranscriptionJobInput,
		optFns ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, params *transcribe.GetTranscriptionJobInput,
		optFns ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error)
}

// Options for the client
type Options struct {
	URL            string
	Language       string
	OutputBucket   string
	DataAccessRole string
}

// Client comunicates with aws transcribe service
type Client struct {
	api  transcribeAPI
	opts Options
}

// NewClient creates a transcriber client
func NewClient(cfg aws.Config, opts Options) (*Client, error) {
	if opts.OutputBucket == "" {
		return nil, fmt.Errorf("no output bucket")
	}
	res := &Client{opts: opts}
	res.api = transcribe.NewFromConfig(cfg, func(o *transcribe.Options) {
		if opts.URL != "" {
			o.BaseEndpoint = aws.String(opts.URL)
		}
	})
	goapp.Log.Info().Str("language", opts.Language).Str("bucket", opts.OutputBucket).
		Bool("role", opts.DataAccessRole != "").Msg("transcriber")
	return res, nil
}

// Submit starts transcription job for audio at src
func (sp *Client) Submit(ctx context.Context, jobID string, src api.Locator) error {
	defer goapp.Estimate("transcribe submit")()
	in := &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobID),
		Media:                &types.Media{MediaFileUri: aws.String(src.String())},
		OutputBucketName:     aws.String(sp.opts.OutputBucket),
		OutputKey:            aws.String(resultKey(jobID)),
	}
	if mf := utils.MediaFormat(src.Key); mf != "" {
		in.MediaFormat = types.MediaFormat(mf)
	}
	if sp.opts.Language != "" {
		in.LanguageCode = types.LanguageCode(sp.opts.Language)
	} else {
		in.IdentifyLanguage = aws.Bool(true)
	}
	if sp.opts.DataAccessRole != "" {
		in.JobExecutionSettings = &types.JobExecutionSettings{DataAccessRoleArn: aws.String(sp.opts.DataAccessRole)}
	}
	goapp.Log.Info().Str("ID", jobID).Str("src", src.String()).Msg("submit job")
	if _, err := sp.api.StartTranscriptionJob(ctx, in); err != nil {
		return fmt.Errorf("can't start job: %w", err)
	}
	return nil
}

// GetStatus return status by ID
func (sp *Client) GetStatus(ctx context.Context, jobID string) (*tapi.StatusData, error) {
	out, err := sp.api.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobID)})
	if err != nil {
		return nil, fmt.Errorf("can't get job: %w", err)
	}
	if out.TranscriptionJob == nil {
		return nil, fmt.Errorf("no job info for '%s'", jobID)
	}
	return &tapi.StatusData{
		ID:            jobID,
		Status:        string(out.TranscriptionJob.TranscriptionJobStatus),
		FailureReason: aws.ToString(out.TranscriptionJob.FailureReason),
		ResultLocator: api.Locator{Bucket: sp.opts.OutputBucket, Key: resultKey(jobID)},
	}, nil
}

func resultKey(jobID string) string {
	return jobID + ".json"
}
