package config

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittostore/internal/logger"
	"github.com/marmos91/dittostore/pkg/filestore"
	"github.com/marmos91/dittostore/pkg/metadata"
	"github.com/marmos91/dittostore/pkg/metadata/badger"
	"github.com/marmos91/dittostore/pkg/metadata/bolt"
	"github.com/marmos91/dittostore/pkg/metadata/memory"
	"github.com/marmos91/dittostore/pkg/metadata/sqlite"
	"github.com/marmos91/dittostore/pkg/metrics"
	"github.com/marmos91/dittostore/pkg/multitenant"
	"github.com/marmos91/dittostore/pkg/observer"
	"github.com/marmos91/dittostore/pkg/remote"
	"github.com/marmos91/dittostore/pkg/remote/local"
	remoteS3 "github.com/marmos91/dittostore/pkg/remote/s3"
	"github.com/marmos91/dittostore/pkg/remote/webdav"
	"github.com/mitchellh/mapstructure"
)

// NewNotifier returns the notifier stores are created with.
//
// An observable notifier logs every action at DEBUG level and, when metrics
// are initialized, counts it. Otherwise the null notifier is returned.
func NewNotifier(cfg *StoreConfig) observer.Notifier {
	if !cfg.Observable {
		return observer.Nop()
	}

	subject := observer.NewSubject()
	_, _ = subject.Register(observer.ObserverFunc(func(a observer.Action) {
		logger.Debug("%s", a)
	}))
	if metrics.IsEnabled() {
		_, _ = subject.Register(metrics.NewActionMetrics())
	}
	return subject
}

// OpenStore opens the single store at cfg.Store.Root.
func OpenStore(cfg *Config, notifier observer.Notifier) (*filestore.Store, error) {
	factory, err := CreateMetadataFactory(&cfg.Metadata, notifier)
	if err != nil {
		return nil, err
	}

	return filestore.Open(cfg.Store.Root,
		filestore.WithMetadata(factory),
		filestore.WithNotifier(notifier),
	)
}

// OpenMultiTenant opens cfg.Store.Root as a multitenant store. Every tenant
// store uses the configured metadata backend.
func OpenMultiTenant(cfg *Config, notifier observer.Notifier) (*multitenant.Store, error) {
	factory, err := CreateMetadataFactory(&cfg.Metadata, notifier)
	if err != nil {
		return nil, err
	}

	return multitenant.New(cfg.Store.Root,
		multitenant.WithNotifier(notifier),
		multitenant.WithStoreOptions(filestore.WithMetadata(factory)),
	)
}

// CreateMetadataFactory creates the metadata factory of a store.
//
// This factory function uses the Type field to determine which backend to
// use, then decodes the type-specific options from the corresponding map.
// Every backend keeps its files in the store root handed to the factory.
//
// Supported types:
//   - "memory": pkg/metadata/memory (meta.yaml)
//   - "badger": pkg/metadata/badger (BadgerDB directory)
//   - "bolt": pkg/metadata/bolt (bbolt file)
//   - "sqlite": pkg/metadata/sqlite (SQLite database)
//
// Parameters:
//   - cfg: Metadata configuration
//   - notifier: Receives META_* actions
//
// Returns:
//   - metadata.Factory: Factory for a store root, instrumented when metrics are enabled
//   - error: Unknown type or option decoding error
func CreateMetadataFactory(cfg *MetadataConfig, notifier observer.Notifier) (metadata.Factory, error) {
	var factory metadata.Factory

	switch cfg.Type {
	case "memory":
		var opts memory.Config
		if err := decodeOptions(cfg.Memory, &opts); err != nil {
			return nil, fmt.Errorf("failed to decode memory metadata options: %w", err)
		}
		factory = memory.Factory(opts, notifier)
	case "badger":
		var opts badger.BadgerMetadataStoreConfig
		if err := decodeOptions(cfg.Badger, &opts); err != nil {
			return nil, fmt.Errorf("failed to decode badger metadata options: %w", err)
		}
		factory = badger.Factory(opts, notifier)
	case "bolt":
		var opts bolt.Config
		if err := decodeOptions(cfg.Bolt, &opts); err != nil {
			return nil, fmt.Errorf("failed to decode bolt metadata options: %w", err)
		}
		factory = bolt.Factory(opts, notifier)
	case "sqlite":
		var opts sqlite.Config
		if err := decodeOptions(cfg.SQLite, &opts); err != nil {
			return nil, fmt.Errorf("failed to decode sqlite metadata options: %w", err)
		}
		factory = sqlite.Factory(opts, notifier)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: memory, badger, bolt, sqlite)", cfg.Type)
	}

	return metrics.InstrumentMetadataFactory(factory, cfg.Type), nil
}

// CreateRemoteStore creates the remote store selected by cfg.Type.
//
// Supported types:
//   - "webdav": pkg/remote/webdav
//   - "s3": pkg/remote/s3 (Amazon S3 or compatible storage)
//   - "local": pkg/remote/local (a file store on this machine)
//
// Returns:
//   - remote.Store: Initialized store, instrumented when metrics are enabled
//   - error: "none" type, configuration or connection error
func CreateRemoteStore(ctx context.Context, cfg *RemoteConfig, notifier observer.Notifier) (remote.Store, error) {
	var (
		store remote.Store
		err   error
	)

	switch cfg.Type {
	case "webdav":
		store, err = createWebDAVRemoteStore(ctx, cfg.WebDAV, notifier)
	case "s3":
		store, err = createS3RemoteStore(ctx, cfg.S3, notifier)
	case "local":
		store, err = createLocalRemoteStore(cfg.Local, notifier)
	case "none", "":
		return nil, fmt.Errorf("%w: no remote store configured (set remote.type)", remote.ErrInvalidArgument)
	default:
		return nil, fmt.Errorf("unknown remote store type: %q (supported: webdav, s3, local)", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	return metrics.InstrumentRemote(store, cfg.Type), nil
}

// createWebDAVRemoteStore creates a WebDAV remote store.
func createWebDAVRemoteStore(ctx context.Context, options map[string]any, notifier observer.Notifier) (remote.Store, error) {
	var storeCfg webdav.Config
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode webdav remote store config: %w", err)
	}
	storeCfg.Notifier = notifier

	store, err := webdav.New(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav remote store: %w", err)
	}

	logger.Info("WebDAV remote store initialized: url=%s, root=%s", storeCfg.URL, store.Root())
	return store, nil
}

// createS3RemoteStore creates an S3-based remote store.
func createS3RemoteStore(ctx context.Context, options map[string]any, notifier observer.Notifier) (remote.Store, error) {
	type S3RemoteStoreOptions struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var storeCfg S3RemoteStoreOptions
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 remote store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 remote store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 remote store: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	// Custom endpoint for MinIO, Localstack, etc.
	if storeCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               storeCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default credential chain
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// Path-style addressing for MinIO/Localstack
		if storeCfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Create S3 Remote Store
	// ========================================================================

	store, err := remoteS3.NewS3RemoteStore(ctx, remoteS3.S3RemoteStoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
		Notifier:  notifier,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 remote store: %w", err)
	}

	logger.Info("S3 remote store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// createLocalRemoteStore opens a file store used as a remote.
func createLocalRemoteStore(options map[string]any, notifier observer.Notifier) (remote.Store, error) {
	type LocalRemoteStoreOptions struct {
		Root string `mapstructure:"root"`
	}

	var storeCfg LocalRemoteStoreOptions
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode local remote store config: %w", err)
	}
	if storeCfg.Root == "" {
		return nil, fmt.Errorf("local remote store: root is required")
	}

	store, err := local.Open(storeCfg.Root, notifier)
	if err != nil {
		return nil, fmt.Errorf("failed to create local remote store: %w", err)
	}
	return store, nil
}

// decodeOptions decodes a backend option map into result. Durations may be
// given as strings ("30s") and numbers may arrive as any numeric type.
func decodeOptions(options map[string]any, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           result,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// portOf returns the numeric port of a host:port address, or 0.
func portOf(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}
	return port
}
