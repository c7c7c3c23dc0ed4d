package cloud

import (
	"context"
	"fmt"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/spf13/viper"
)

// Options for aws config initialization
type Options struct {
	Region       string
	Profile      string
	AccessKey    string
	SecretKey    string
	SessionToken string
}

// OptionsFromConfig reads aws.* keys
func OptionsFromConfig(cfg *viper.Viper) Options {
	return Options{
		Region:       cfg.GetString("aws.region"),
		Profile:      cfg.GetString("aws.profile"),
		AccessKey:    cfg.GetString("aws.accessKey"),
		SecretKey:    cfg.GetString("aws.secretKey"),
		SessionToken: cfg.GetString("aws.sessionToken"),
	}
}

// LoadConfig prepares aws config shared by all aws clients.
// Static credentials are used if both keys are provided, otherwise the default chain is used.
func LoadConfig(ctx context.Context, opts Options) (aws.Config, error) {
	if opts.Region == "" {
		return aws.Config{}, fmt.Errorf("no aws region")
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, opts.SessionToken)))
	}
	res, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("can't load aws config: %w", err)
	}
	goapp.Log.Info().Str("region", res.Region).Bool("static", opts.AccessKey != "").Msg("aws config")
	return res, nil
}

// HasCredentials checks if credentials can be retrieved
func HasCredentials(ctx context.Context, cfg aws.Config) error {
	if cfg.Credentials == nil {
		return fmt.Errorf("no credentials provider")
	}
	c, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("can't retrieve credentials: %w", err)
	}
	if !c.HasKeys() {
		return fmt.Errorf("empty credentials")
	}
	return nil
}
