package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-push-dispatch/internal/domain"
)

// PublishAPI is the subset of *sns.Client the alerter needs.
type PublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// NewClient creates an SNS client, honouring a LocalStack endpoint.
func NewClient(awsCfg aws.Config, endpointURL string) *sns.Client {
	clientOpts := []func(*sns.Options){}
	if endpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
		})
	}
	return sns.NewFromConfig(awsCfg, clientOpts...)
}

// Alerter publishes degraded dispatch runs to an SNS topic.
type Alerter struct {
	client   PublishAPI
	topicARN string
}

func NewAlerter(client PublishAPI, topicARN string) *Alerter {
	return &Alerter{client: client, topicARN: topicARN}
}

// Record publishes the report only when the run had failures.
func (a *Alerter) Record(ctx context.Context, report *domain.DispatchReport) error {
	if !report.Degraded() {
		return nil
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	subject := fmt.Sprintf("push dispatch %s degraded: %d failed, %d errors", report.Mode, report.Stats.Failed, report.Stats.Errors)
	if len(subject) > 100 {
		subject = subject[:100]
	}
	_, err = a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"mode": {DataType: aws.String("String"), StringValue: aws.String(report.Mode)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
