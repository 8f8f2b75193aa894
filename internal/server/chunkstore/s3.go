package chunkstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/dmitrijs2005/neurostore/internal/common"
)

// S3API is the part of *s3.Client the store uses.
type S3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Options configures an S3 (or S3-compatible, e.g. MinIO) backend.
type S3Options struct {
	Region   string
	User     string
	Password string
	Endpoint string
	Bucket   string
	Prefix   string
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Store keeps each chunk as the object <prefix><hash>.
type S3Store struct {
	api    S3API
	bucket string
	prefix string
}

// NewS3Store builds a client from static credentials. An empty Endpoint
// keeps the AWS default; a set one also switches to path-style addressing.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.User,
			opts.Password,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreWithClient(client, opts.Bucket, opts.Prefix), nil
}

func NewS3StoreWithClient(api S3API, bucket, prefix string) *S3Store {
	return &S3Store{api: api, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(hash string) *string {
	return aws.String(s.prefix + hash)
}

func (s *S3Store) Exists(ctx context.Context, hash string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: s.key(hash)})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, transient("s3 head", hash, err)
}

func (s *S3Store) Put(ctx context.Context, hash string, data []byte) error {
	if err := checkHash(hash); err != nil {
		return err
	}
	ok, err := s.Exists(ctx, hash)
	if err != nil || ok {
		return err
	}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           s.key(hash),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return transient("s3 put", hash, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, hash string) (io.ReadCloser, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: s.key(hash)})
	if err != nil {
		if isS3NotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, transient("s3 get", hash, err)
	}
	return out.Body, nil
}

func (s *S3Store) Missing(ctx context.Context, hashes []string) ([]string, error) {
	return MissingParallel(ctx, s, hashes, DefaultProbeConcurrency)
}

// isS3NotFound recognizes the ways S3 and compatible servers report a
// missing key. HeadObject has no body, so only the status code is reliable.
func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}
