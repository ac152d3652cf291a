package helpers

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
)

// RedisOptions selects the Redis instance backing the rate limiter.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient keeps socket timeouts short: a slow Redis must not stall requests
// that only consult it for rate limiting.
func NewRedisClient(o RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
}

func PingRedis(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rdb.Ping(ctx).Err()
}

// NewGCSClient uses the service account file at credsPath, or ADC when empty.
func NewGCSClient(ctx context.Context, credsPath string) (*storage.Client, error) {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if credsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credsPath))
	}
	return storage.NewClient(ctx, opts...)
}

// S3Options configures an S3 or S3-compatible (MinIO, R2) client.
type S3Options struct {
	Region       string
	Endpoint     string // empty means AWS
	AccessKey    string // empty means the default credential chain
	SecretKey    string
	UsePathStyle bool
}

func NewS3Client(ctx context.Context, o S3Options) (*s3.Client, error) {
	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(o.Region)}
	if o.AccessKey != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
		}
		so.UsePathStyle = o.UsePathStyle
	}), nil
}

// ESOptions points the user search index at a cluster.
type ESOptions struct {
	Addresses []string
	Username  string
	Password  string
}

// NewESClient returns a nil client when no address is configured; callers
// treat that as search disabled.
func NewESClient(o ESOptions) (*elasticsearch.Client, error) {
	if len(o.Addresses) == 0 {
		return nil, nil
	}
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     o.Addresses,
		Username:      o.Username,
		Password:      o.Password,
		MaxRetries:    2,
		RetryOnStatus: []int{502, 503, 504},
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   8,
			ResponseHeaderTimeout: 3 * time.Second,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			DialContext:           (&net.Dialer{Timeout: 3 * time.Second}).DialContext,
		},
	})
}
