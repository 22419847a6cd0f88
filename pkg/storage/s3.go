package storage

import (
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
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultExtension is the container the media server writes per-participant
// audio tracks to.
const DefaultExtension = "ogg"

// S3Config holds S3 client configuration.
type S3Config struct {
	Region              string
	AccessKeyID         string
	SecretAccessKey     string
	RecordingsBucket    string
	PresignExpireSec    int
	PresignMaxExpireSec int
}

// S3 provides object-store operations over recorded artifacts: existence
// checks, deletion and time-limited signed download URLs.
type S3 struct {
	client *s3.Client
	cfg    S3Config
	logger *zap.Logger
}

// NewS3 creates an S3 client using static credentials when configured,
// falling back to the default credential chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3{
		client: s3.NewFromConfig(awsCfg),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// RecordingPath returns the deterministic object key for a participant's
// track: {roomID}/{identity}.{ext}. The same participant recording again in
// the same room supersedes the previous artifact at this key.
func RecordingPath(roomID, identity, ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	return path.Join(roomID, identity) + "." + ext
}

// ParseRecordingPath splits a storage path back into its room id and
// participant identity. The inverse of RecordingPath.
func ParseRecordingPath(p string) (roomID uuid.UUID, identity string, err error) {
	dir, file := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" || file == "" || strings.Contains(dir, "/") {
		return uuid.Nil, "", fmt.Errorf("malformed recording path: %q", p)
	}
	roomID, err = uuid.Parse(dir)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("malformed room id in path %q: %w", p, err)
	}
	ext := path.Ext(file)
	identity = strings.TrimSuffix(file, ext)
	if identity == "" || ext == "" {
		return uuid.Nil, "", fmt.Errorf("malformed recording path: %q", p)
	}
	return roomID, identity, nil
}

// SignDownloadURL returns a pre-signed GET URL for the given key, valid for
// the given duration.
func (s *S3) SignDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.RecordingsBucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// ObjectSize returns the size of an object, or found=false when the key does
// not exist.
func (s *S3) ObjectSize(ctx context.Context, key string) (size int64, found bool, err error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.RecordingsBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("head object: %w", err)
	}
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return size, true, nil
}

// DeleteObject removes a recorded artifact. Operator action only; the normal
// lifecycle never deletes.
func (s *S3) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.RecordingsBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// PresignExpire returns the configured default signed-URL duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireSec <= 0 {
		return time.Hour
	}
	return time.Duration(s.cfg.PresignExpireSec) * time.Second
}

// PresignMaxExpire returns the upper bound a caller may request.
func (s *S3) PresignMaxExpire() time.Duration {
	if s.cfg.PresignMaxExpireSec <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.cfg.PresignMaxExpireSec) * time.Second
}

// Bucket returns the recordings bucket name.
func (s *S3) Bucket() string { return s.cfg.RecordingsBucket }

// Region returns the configured AWS region.
func (s *S3) Region() string { return s.cfg.Region }

// Credentials returns the static credentials handed to the media server so
// egress can write directly to the recordings bucket.
func (s *S3) Credentials() (accessKey, secretKey string) {
	return s.cfg.AccessKeyID, s.cfg.SecretAccessKey
}
