// Package archive uploads transcripts of finished conversations to S3.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/procura/procura/store"
)

// Transcript is the archived form of a conversation.
type Transcript struct {
	Conversation *store.Conversation `json:"conversation"`
	Messages     []*store.Message    `json:"messages"`
	Actions      []*store.Action     `json:"actions"`
	ArchivedTs   int64               `json:"archivedTs"`
}

// Archiver persists a transcript and returns where it was stored.
type Archiver interface {
	Archive(ctx context.Context, transcript *Transcript) (string, error)
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config holds the bucket settings.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3 archives transcripts as JSON objects.
type S3 struct {
	bucket   string
	uploader uploader
	now      func() time.Time
}

// NewS3 builds an S3 archiver. Static credentials are used when both keys are
// set, otherwise the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws config")
	}
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3(cfg.Bucket, manager.NewUploader(client)), nil
}

func newS3(bucket string, u uploader) *S3 {
	return &S3{bucket: bucket, uploader: u, now: time.Now}
}

// Key returns the object key for a conversation closed at t.
func Key(conversationUID string, t time.Time) string {
	return fmt.Sprintf("conversations/%04d/%02d/%s.json", t.Year(), int(t.Month()), conversationUID)
}

func (a *S3) Archive(ctx context.Context, transcript *Transcript) (string, error) {
	if transcript == nil || transcript.Conversation == nil {
		return "", errors.New("transcript has no conversation")
	}
	now := a.now()
	transcript.ArchivedTs = now.Unix()
	data, err := json.Marshal(transcript)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode transcript")
	}

	key := Key(transcript.Conversation.UID, now)
	if _, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return "", errors.Wrapf(err, "failed to upload transcript %s", key)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
