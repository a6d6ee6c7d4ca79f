package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-push-dispatch/internal/config"
)

// LoadAWSConfig resolves the shared AWS configuration. Static credentials are
// used when configured (LocalStack), otherwise the default chain applies.
func LoadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// NewClient creates a DynamoDB client. When endpointURL is set (LocalStack),
// it overrides the endpoint so all traffic goes to the local instance.
func NewClient(awsCfg aws.Config, endpointURL string) *dynamodb.Client {
	clientOpts := []func(*dynamodb.Options){}
	if endpointURL != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
		})
	}
	return dynamodb.NewFromConfig(awsCfg, clientOpts...)
}
