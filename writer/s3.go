package writer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	appconfig "optionflow/config"
	"optionflow/logger"
	"optionflow/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Sink struct {
	client  putObjectAPI
	bucket  string
	version string
	encoder Encoder
	log     *logger.Entry
}

func NewS3Sink(ctx context.Context, cfg *appconfig.Config) (*S3Sink, error) {
	log := logger.GetLogger().WithComponent("s3_writer")

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	log.WithFields(logger.Fields{
		"bucket": cfg.Storage.S3.Bucket,
		"region": cfg.Storage.S3.Region,
		"format": cfg.Writer.Format,
	}).Info("s3 sink initialized")

	return newS3Sink(client, cfg), nil
}

func newS3Sink(client putObjectAPI, cfg *appconfig.Config) *S3Sink {
	return &S3Sink{
		client:  client,
		bucket:  cfg.Storage.S3.Bucket,
		version: cfg.Optionflow.Version,
		encoder: NewEncoder(cfg.Writer),
		log:     logger.GetLogger().WithComponent("s3_writer"),
	}
}

func (w *S3Sink) Write(ctx context.Context, runID string, snap models.Snapshot) error {
	objects, err := w.encoder.Encode(snap)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := w.upload(ctx, runID, obj); err != nil {
			return err
		}
	}
	return nil
}

func (w *S3Sink) upload(ctx context.Context, runID string, obj Object) error {
	start := time.Now()
	log := w.log.WithFields(logger.Fields{
		"operation": "upload_to_s3",
		"run_id":    runID,
		"key":       obj.Key,
		"data_size": len(obj.Body),
	})

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(obj.Key),
		Body:        bytes.NewReader(obj.Body),
		ContentType: aws.String(obj.ContentType),
		Metadata: map[string]string{
			"run-id":             runID,
			"table":              obj.Table,
			"optionflow-version": w.version,
		},
	}
	if obj.ContentEncoding != "" {
		input.ContentEncoding = aws.String(obj.ContentEncoding)
	}

	if _, err := w.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s to S3 bucket %s: %w", obj.Key, w.bucket, err)
	}

	logger.IncrementSinkWrite()
	logger.LogDataFlowEntry(log, "snapshot", "s3", obj.Records, obj.Table)
	logger.LogPerformanceEntry(log, "s3_writer", "upload", time.Since(start), nil)
	return nil
}
