package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/strata-systems/strata/pkg/types"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3 stores snapshot objects under one key prefix per datasource.
type S3 struct {
	client S3API
	bucket string
	prefix string
}

// NewS3 creates an S3 store from AWS default configuration.
func NewS3(ctx context.Context, bucket, prefix, region string) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

// NewS3FromClient creates an S3 store from an existing client (useful for
// testing).
func NewS3FromClient(client S3API, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3) NewPath(dataSourceID, label string, at time.Time) string {
	return path.Join(dataSourceID, fmt.Sprintf("%s_%s.csv", timestampName(at), label))
}

func (s *S3) key(p string) string { return path.Join(s.prefix, p) }

func (s *S3) Put(ctx context.Context, p string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
		Body:   bytes.NewReader(data),
		// A snapshot key is written exactly once.
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "putting object %s", p)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, p string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, types.NewError(types.KindNotFound, "snapshot object %s not found", p)
		}
		return nil, types.WrapError(types.KindStorageError, err, "getting object %s", p)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, types.WrapError(types.KindStorageError, err, "reading object %s", p)
	}
	return data, nil
}

func (s *S3) Copy(ctx context.Context, srcPath, dstPath string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(s.key(dstPath)),
		CopySource: aws.String(path.Join(s.bucket, s.key(srcPath))),
	})
	if err != nil {
		return types.WrapError(types.KindStorageError, err, "copying object %s to %s", srcPath, dstPath)
	}
	return nil
}

func (s *S3) Size(ctx context.Context, p string) (int64, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return 0, types.WrapError(types.KindStorageError, err, "heading object %s", p)
	}
	return aws.ToInt64(out.ContentLength), nil
}
