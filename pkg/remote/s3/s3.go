// Package s3 implements remote.Store on an S3 (or S3-compatible) bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/observer"
	"github.com/marmos91/dittostore/pkg/remote"
)

// Source is the observer.Action source of S3 actions.
const Source = "s3"

// S3RemoteStoreConfig contains configuration for the S3 remote store.
type S3RemoteStoreConfig struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name. It must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "dittostore/" results in keys like "dittostore/report.pdf"
	KeyPrefix string

	// Notifier receives remote store actions. Nil means the null notifier.
	Notifier observer.Notifier
}

// S3RemoteStore uploads files as objects keyed by <prefix><basename>.
//
// The locator returned by Add is the object key. Adding two files with the
// same base name overwrites the first object.
type S3RemoteStore struct {
	mu        sync.RWMutex
	client    *s3.Client
	bucket    string
	keyPrefix string
	notifier  observer.Notifier
	closed    bool
}

// NewS3RemoteStore verifies bucket access and returns the store.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *S3RemoteStore: Initialized store
//   - error: remote.ErrInvalidArgument on bad configuration, *remote.Error
//     if the bucket cannot be reached
func NewS3RemoteStore(ctx context.Context, cfg S3RemoteStoreConfig) (*S3RemoteStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: S3 client is required", remote.ErrInvalidArgument)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket name is required", remote.ErrInvalidArgument)
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, wrapError("head-bucket", cfg.Bucket, err)
	}

	logger.Info("S3 remote store ready: bucket=%s prefix=%q", cfg.Bucket, cfg.KeyPrefix)

	return &S3RemoteStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		notifier:  observer.OrNop(cfg.Notifier),
	}, nil
}

// Bucket returns the bucket name.
func (s *S3RemoteStore) Bucket() string {
	return s.bucket
}

func (s *S3RemoteStore) objectKey(localPath string) string {
	return s.keyPrefix + filepath.Base(localPath)
}

func (s *S3RemoteStore) Add(ctx context.Context, localPath string) (string, error) {
	if err := s.begin(ctx); err != nil {
		return "", err
	}
	defer s.mu.RUnlock()

	if err := remote.CheckSource(localPath); err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", remote.ErrInvalidArgument, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %w", remote.ErrInvalidArgument, err)
	}

	key := s.objectKey(localPath)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return "", wrapError("add", key, err)
	}

	logger.Debug("Uploaded %s to s3://%s/%s", localPath, s.bucket, key)
	remote.Inform(s.notifier, observer.ActionRemoteAdd, Source, "added file to remote store", key)
	return key, nil
}

func (s *S3RemoteStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty locator", remote.ErrInvalidArgument)
	}
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, wrapError("get", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &remote.Error{Op: "get", Locator: key, Err: err}
	}

	remote.Inform(s.notifier, observer.ActionRemoteGet, Source, "returning file from remote store", key)
	return data, nil
}

// Remove deletes the object. DeleteObject succeeds on missing keys, so the
// object is probed with HeadObject first.
func (s *S3RemoteStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty locator", remote.ErrInvalidArgument)
	}
	if err := s.begin(ctx); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return wrapError("remove", key, err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return wrapError("remove", key, err)
	}

	remote.Inform(s.notifier, observer.ActionRemoteRemove, Source, "deleted file from remote store", key)
	return nil
}

// Close marks the store closed. The S3 client holds no resources that need
// releasing.
func (s *S3RemoteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return remote.ErrClosed
	}
	s.closed = true
	s.mu.Unlock()

	remote.Inform(s.notifier, observer.ActionRemoteShutdown, Source, "S3 store shut down", s.bucket)
	return nil
}

func (s *S3RemoteStore) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return remote.ErrClosed
	}
	return nil
}

// wrapError maps SDK errors onto *remote.Error. Missing keys surface as
// *types.NoSuchKey from GetObject and *types.NotFound from HeadObject.
func wrapError(op, key string, err error) error {
	status := 0
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) || status == http.StatusNotFound {
		return remote.NotFound(op, key, status, err)
	}
	return &remote.Error{Op: op, Locator: key, StatusCode: status, Err: err}
}
