// Package archive uploads closed statistics epochs to S3 as JSON documents.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/nixlim/mailwatch/internal/config"
	"github.com/nixlim/mailwatch/internal/monitor"
)

const (
	queueSize     = 64
	uploadTimeout = 30 * time.Second
)

// PutObjectAPI is the subset of *s3.Client the archiver uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Option configures an Archiver.
type Option func(*Archiver)

func WithLogger(l zerolog.Logger) Option {
	return func(a *Archiver) { a.logger = l }
}

// WithQueueSize overrides the number of summaries that may wait for upload.
func WithQueueSize(n int) Option {
	return func(a *Archiver) {
		if n > 0 {
			a.queue = make(chan monitor.EpochSummary, n)
		}
	}
}

// Archiver uploads epoch summaries from a background worker. Archive is
// non-blocking and is meant to be registered as a monitor reset hook.
type Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger zerolog.Logger

	queue    chan monitor.EpochSummary
	done     chan struct{}
	closed   atomic.Bool
	dropped  atomic.Int64
	uploaded atomic.Int64
	once     sync.Once
}

// New loads AWS credentials from the default chain and returns an archiver
// for cfg.S3Bucket. The worker is started immediately.
func New(ctx context.Context, cfg config.ArchiveConfig, opts ...Option) (*Archiver, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("archive bucket is not configured")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return NewWithClient(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix, opts...), nil
}

// NewWithClient returns an archiver that uploads through client.
func NewWithClient(client PutObjectAPI, bucket, prefix string, opts ...Option) *Archiver {
	a := &Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: zerolog.Nop(),
		queue:  make(chan monitor.EpochSummary, queueSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.worker()
	return a
}

// Archive queues s for upload. When the queue is full the summary is dropped.
func (a *Archiver) Archive(s monitor.EpochSummary) {
	if a.closed.Load() {
		return
	}
	// Close may close the queue between the check above and the send.
	defer func() { _ = recover() }()
	select {
	case a.queue <- s:
	default:
		a.dropped.Add(1)
		a.logger.Warn().
			Str("reason", string(s.Reason)).
			Time("end", s.End).
			Msg("archive queue full, dropped epoch summary")
	}
}

// Dropped returns how many summaries were discarded because the queue was full.
func (a *Archiver) Dropped() int64 { return a.dropped.Load() }

// Uploaded returns how many summaries were stored successfully.
func (a *Archiver) Uploaded() int64 { return a.uploaded.Load() }

// Close stops accepting summaries and waits for queued uploads to finish,
// giving up after timeout.
func (a *Archiver) Close(timeout time.Duration) {
	a.once.Do(func() {
		a.closed.Store(true)
		close(a.queue)
		select {
		case <-a.done:
		case <-time.After(timeout):
			a.logger.Warn().Msg("archive uploads did not finish before shutdown")
		}
	})
}

func (a *Archiver) worker() {
	defer close(a.done)
	for s := range a.queue {
		if err := a.upload(s); err != nil {
			a.logger.Error().Err(err).Str("reason", string(s.Reason)).Msg("archiving epoch summary")
			continue
		}
		a.uploaded.Add(1)
	}
}

func (a *Archiver) upload(s monitor.EpochSummary) error {
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}

	key := ObjectKey(a.prefix, s)
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", a.bucket, key, err)
	}
	a.logger.Debug().Str("key", key).Msg("archived epoch summary")
	return nil
}

// ObjectKey returns the object key for s: prefix/YYYY/MM/DD/<end-unix>-<reason>.json,
// dated by the epoch's end in UTC.
func ObjectKey(prefix string, s monitor.EpochSummary) string {
	end := s.End.UTC()
	name := fmt.Sprintf("%d-%s.json", end.Unix(), s.Reason)
	return path.Join(strings.Trim(prefix, "/"), end.Format("2006/01/02"), name)
}
