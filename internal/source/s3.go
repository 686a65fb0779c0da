// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// GetObjectAPI is the part of the S3 client the reader needs.
type GetObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds configuration for S3 imports.
type S3Config struct {
	// Region is the AWS region; empty uses the SDK's default resolution.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
}

// S3Reader reads documents from s3://bucket/key URLs. The AWS client is
// created on first use.
type S3Reader struct {
	cfg S3Config

	once    sync.Once
	client  GetObjectAPI
	initErr error
}

// NewS3Reader returns a reader that loads the default AWS configuration lazily.
func NewS3Reader(cfg S3Config) *S3Reader {
	return &S3Reader{cfg: cfg}
}

// NewS3ReaderWithClient returns a reader using client.
func NewS3ReaderWithClient(client GetObjectAPI) *S3Reader {
	r := &S3Reader{client: client}
	r.once.Do(func() {})
	return r
}

func (r *S3Reader) init(ctx context.Context) error {
	r.once.Do(func() {
		var opts []func(*config.LoadOptions) error
		if r.cfg.Region != "" {
			opts = append(opts, config.WithRegion(r.cfg.Region))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			r.initErr = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}

		var s3Opts []func(*s3.Options)
		if r.cfg.Endpoint != "" {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.BaseEndpoint = aws.String(r.cfg.Endpoint)
			})
		}
		if r.cfg.UsePathStyle {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.UsePathStyle = true
			})
		}
		r.client = s3.NewFromConfig(awsCfg, s3Opts...)
	})
	return r.initErr
}

// Read fetches the object named by an s3://bucket/key location. Missing
// objects report fs.ErrNotExist.
func (r *S3Reader) Read(ctx context.Context, location string) (string, error) {
	bucket, key, err := splitS3URL(location)
	if err != nil {
		return "", err
	}
	if err := r.init(ctx); err != nil {
		return "", err
	}

	resp, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return "", fmt.Errorf("read %s: %w", location, fs.ErrNotExist)
		}
		return "", fmt.Errorf("read %s: %w", location, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", location, err)
	}
	return string(b), nil
}

func splitS3URL(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %s", location)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed s3 url %s: want s3://bucket/key", location)
	}
	return bucket, key, nil
}
