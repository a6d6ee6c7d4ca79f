package s3infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-push-dispatch/internal/domain"
)

// PutObjectAPI is the subset of *s3.Client the archive needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewClient creates an S3 client. When endpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(awsCfg aws.Config, endpointURL string) *s3.Client {
	clientOpts := []func(*s3.Options){}
	if endpointURL != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...)
}

// ReportArchive stores every dispatch report as a JSON object.
type ReportArchive struct {
	client PutObjectAPI
	bucket string
	prefix string
}

func NewReportArchive(client PutObjectAPI, bucket, prefix string) *ReportArchive {
	return &ReportArchive{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key of a report: <prefix>/<mode>/<yyyy>/<mm>/<dd>/<run id>.json.
func (a *ReportArchive) Key(report *domain.DispatchReport) string {
	return path.Join(a.prefix, report.Mode, report.StartedAt.UTC().Format("2006/01/02"), report.RunID+".json")
}

func (a *ReportArchive) Record(ctx context.Context, report *domain.DispatchReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(report)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}
