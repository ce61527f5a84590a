// Package storage uploads load artifacts to S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/edvin/warehouse/internal/model"
)

var (
	// ErrAuthentication is returned when S3 rejects the request credentials.
	ErrAuthentication = errors.New("s3 authentication failed")
	// ErrInvalidPath is returned when an artifact path is not a local path
	// below the uploader's root.
	ErrInvalidPath = errors.New("artifact path outside artifact root")
)

// authErrorCodes are S3 error codes caused by bad or mismatched credentials.
var authErrorCodes = map[string]bool{
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"AccessDenied":          true,
	"InvalidToken":          true,
	"ExpiredToken":          true,
}

// S3API is the subset of the S3 client used for uploads.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// NewS3Client returns an S3 client for the given AWS config. A non-empty
// endpoint switches to path-style addressing against that endpoint.
func NewS3Client(cfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// Uploader puts local files into S3.
type Uploader struct {
	client S3API
	logger zerolog.Logger
	// root, when set, confines artifact paths to this directory.
	root string
}

// NewUploader creates an Uploader.
func NewUploader(client S3API, logger zerolog.Logger) *Uploader {
	return &Uploader{
		client: client,
		logger: logger.With().Str("component", "uploader").Logger(),
	}
}

// WithRoot returns a copy of the uploader that resolves artifact paths
// relative to dir. Absolute paths, ".." components and symlinks leaving dir
// are rejected.
func (u *Uploader) WithRoot(dir string) *Uploader {
	c := *u
	c.root = dir
	return &c
}

// Upload writes the artifact's local file to its bucket and key, replacing
// any existing object.
func (u *Uploader) Upload(ctx context.Context, artifact model.LoadArtifact) error {
	f, err := u.open(artifact.LocalPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", artifact.LocalPath, err)
	}

	u.logger.Info().
		Str("file", artifact.LocalPath).
		Str("bucket", artifact.Bucket).
		Str("key", artifact.Key).
		Int64("bytes", info.Size()).
		Msg("uploading artifact")

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(artifact.Bucket),
		Key:           aws.String(artifact.Key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("text/csv"),
	})
	if err != nil {
		if isAuthError(err) {
			return fmt.Errorf("upload %s: %w: %w", artifact.S3URI(), ErrAuthentication, err)
		}
		return fmt.Errorf("upload %s: %w", artifact.S3URI(), err)
	}

	return nil
}

func (u *Uploader) open(path string) (*os.File, error) {
	if u.root == "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return f, nil
	}

	if !filepath.IsLocal(path) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	root, err := os.OpenRoot(u.root)
	if err != nil {
		return nil, fmt.Errorf("open artifact root %s: %w", u.root, err)
	}
	defer root.Close()

	f, err := root.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		// Anything else is os.Root refusing a symlink that leaves the root.
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPath, path, err)
	}
	return f, nil
}

func isAuthError(err error) bool {
	var emptyCreds *credentials.StaticCredentialsEmptyError
	if errors.As(err, &emptyCreds) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && authErrorCodes[apiErr.ErrorCode()] {
		return true
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		code := respErr.HTTPStatusCode()
		return code == http.StatusUnauthorized || code == http.StatusForbidden
	}
	return false
}
