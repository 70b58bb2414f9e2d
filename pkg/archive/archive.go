package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// Config selects the destination bucket. An empty bucket disables archiving.
type Config struct {
	Bucket         string        `env:"ARCHIVE_S3_BUCKET"`
	Region         string        `env:"ARCHIVE_S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string        `env:"ARCHIVE_S3_ACCESS_KEY_ID"`
	SecretKey      string        `env:"ARCHIVE_S3_SECRET_KEY"`
	Endpoint       string        `env:"ARCHIVE_S3_ENDPOINT"`
	ForcePathStyle bool          `env:"ARCHIVE_S3_FORCE_PATH_STYLE" envDefault:"false"`
	Prefix         string        `env:"ARCHIVE_S3_PREFIX" envDefault:"webhooks"`
	Timeout        time.Duration `env:"ARCHIVE_S3_TIMEOUT" envDefault:"5s"`
}

func (c Config) Enabled() bool { return c.Bucket != "" }

// Record is one raw payload as received.
type Record struct {
	Provider   string
	EventID    string
	ReceivedAt time.Time
	Body       []byte
}

// Archive persists raw payloads.
type Archive interface {
	Put(ctx context.Context, rec Record) (string, error)
}

// Client is the subset of the S3 API used here.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Nop discards payloads.
type Nop struct{}

func (Nop) Put(context.Context, Record) (string, error) { return "", nil }

// S3Archive writes payloads to a bucket. It is safe for concurrent use.
type S3Archive struct {
	client  Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// Option configures New.
type Option func(*options)

type options struct {
	client     Client
	loadOption []func(*config.LoadOptions) error
}

// WithClient uses a pre-built client instead of loading AWS config.
func WithClient(c Client) Option {
	return func(o *options) { o.client = c }
}

// WithLoadOption adds an AWS config load option.
func WithLoadOption(fn func(*config.LoadOptions) error) Option {
	return func(o *options) { o.loadOption = append(o.loadOption, fn) }
}

// New builds an archive for cfg. A disabled config yields Nop.
func New(ctx context.Context, cfg Config, opts ...Option) (Archive, error) {
	if !cfg.Enabled() {
		return Nop{}, nil
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: region is required", ErrInvalidConfig)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	client := o.client
	if client == nil {
		loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
			))
		}
		loadOpts = append(loadOpts, o.loadOption...)

		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, errors.Join(ErrLoadConfig, err)
		}
		client = s3.NewFromConfig(awsCfg, func(so *s3.Options) {
			if cfg.Endpoint != "" {
				so.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			so.UsePathStyle = cfg.ForcePathStyle
		})
	}

	return &S3Archive{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		timeout: cfg.Timeout,
	}, nil
}

// Put uploads rec and returns the object key.
func (a *S3Archive) Put(ctx context.Context, rec Record) (string, error) {
	if len(rec.Body) == 0 {
		return "", ErrEmptyPayload
	}
	key := Key(a.prefix, rec)

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(rec.Body),
		ContentLength: aws.Int64(int64(len(rec.Body))),
		ContentType:   aws.String("application/json"),
		Metadata: map[string]string{
			"provider": rec.Provider,
			"event-id": rec.EventID,
		},
	})
	if err != nil {
		return "", classify(err)
	}
	return key, nil
}

// Key builds the object key for rec.
func Key(prefix string, rec Record) string {
	at := rec.ReceivedAt.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}
	id := rec.EventID
	if id == "" {
		id = uuid.NewString()
	}
	id = strings.NewReplacer("/", "_", "\\", "_").Replace(id)
	provider := rec.Provider
	if provider == "" {
		provider = "unknown"
	}
	return path.Join(prefix, provider, at.Format("2006/01/02"), id+".json")
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return errors.Join(ErrBucketNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return errors.Join(ErrBucketNotFound, err)
		case "AccessDenied":
			return errors.Join(ErrAccessDenied, err)
		case "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return errors.Join(ErrServiceUnavailable, err)
		}
	}
	return fmt.Errorf("archive: put object: %w", err)
}
