package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used to read objects.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures the S3 client built on first use.
type S3Options struct {
	Region       string
	Profile      string
	Endpoint     string
	Anonymous    bool
	UsePathStyle bool
}

// WithS3Options configures how s3:// inputs are read.
func WithS3Options(opts S3Options) Option {
	return func(f *Fetcher) error {
		f.s3Options = opts
		return nil
	}
}

// WithS3Client injects a ready S3 client, bypassing AWS configuration loading.
func WithS3Client(api S3API) Option {
	return func(f *Fetcher) error {
		f.s3Client = api
		return nil
	}
}

func (f *Fetcher) s3API(ctx context.Context) (S3API, error) {
	if f.s3Client != nil {
		return f.s3Client, nil
	}

	var loadOpts []func(*config.LoadOptions) error
	if f.s3Options.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(f.s3Options.Region))
	}
	if f.s3Options.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(f.s3Options.Profile))
	}
	if f.s3Options.Anonymous {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := f.s3Options.Endpoint
	pathStyle := f.s3Options.UsePathStyle
	f.s3Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = pathStyle
	})
	return f.s3Client, nil
}

func (f *Fetcher) fetchS3(ctx context.Context, u *url.URL) ([]byte, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid S3 URL %q: expected s3://bucket/key", u.String())
	}

	api, err := f.s3API(ctx)
	if err != nil {
		return nil, err
	}

	if f.logger != nil {
		f.logger.Debugf("fetch: s3 GetObject bucket=%s key=%s", bucket, key)
	}
	result, err := api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	total := int64(-1)
	if result.ContentLength != nil {
		total = *result.ContentLength
	}
	return f.readAll(ctx, result.Body, total)
}

func (f *Fetcher) readAll(ctx context.Context, src io.Reader, total int64) ([]byte, error) {
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}
	if _, err := copyWithProgress(ctx, &buf, src, total, f.progress); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return buf.Bytes(), nil
}

func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	const defaultBufferSize = 32 * 1024
	buf := make([]byte, defaultBufferSize)
	var written int64

	if progress != nil {
		progress(0, total)
	}

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			w, writeErr := dst.Write(buf[:n])
			if writeErr != nil {
				return written, writeErr
			}
			if w != n {
				return written, io.ErrShortWrite
			}
			written += int64(w)
			if progress != nil {
				progress(written, total)
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return written, nil
			}
			return written, readErr
		}
	}
}
