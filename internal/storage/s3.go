package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aslbekqoziboyev/aiverselabs/internal/observability"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

// S3Options configures the S3 driver. Each gallery bucket maps to BucketPrefix+bucket.
type S3Options struct {
	Region       string
	Endpoint     string
	BucketPrefix string
}

// S3Store stores objects in S3 or an S3-compatible endpoint.
type S3Store struct {
	opts     S3Options
	svc      s3iface.S3API
	uploader s3manageriface.UploaderAPI
}

// NewS3Store opens an AWS session using the default credential chain.
func NewS3Store(opts S3Options) (*S3Store, error) {
	awsCfg := &aws.Config{Region: aws.String(opts.Region)}
	if opts.Endpoint != "" {
		awsCfg.Endpoint = aws.String(opts.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	svc := s3.New(sess)
	return NewS3StoreWithClients(opts, svc, s3manager.NewUploaderWithClient(svc)), nil
}

// NewS3StoreWithClients wires explicit clients, used by tests.
func NewS3StoreWithClients(opts S3Options, svc s3iface.S3API, uploader s3manageriface.UploaderAPI) *S3Store {
	return &S3Store{opts: opts, svc: svc, uploader: uploader}
}

func (s *S3Store) Driver() string { return "s3" }

func (s *S3Store) bucketName(bucket string) string {
	return s.opts.BucketPrefix + bucket
}

func (s *S3Store) Put(ctx context.Context, bucket, objectPath string, body io.Reader, contentType string) (obj Object, err error) {
	defer func() {
		observability.StorageOperations.WithLabelValues("s3", "put", observability.Outcome(err)).Inc()
	}()
	if err := validBucket(bucket); err != nil {
		return Object{}, err
	}
	key, err := cleanObjectPath(objectPath)
	if err != nil {
		return Object{}, err
	}

	counter := &countingReader{r: body}
	input := &s3manager.UploadInput{
		ACL:    aws.String("public-read"),
		Bucket: aws.String(s.bucketName(bucket)),
		Key:    aws.String(key),
		Body:   counter,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.uploader.UploadWithContext(ctx, input); err != nil {
		return Object{}, fmt.Errorf("s3 upload %s/%s: %w", bucket, key, err)
	}

	return Object{Bucket: bucket, Path: key, URL: s.PublicURL(bucket, key), Size: counter.n}, nil
}

// Remove checks existence first because DeleteObject succeeds for missing keys.
func (s *S3Store) Remove(ctx context.Context, bucket, objectPath string) (err error) {
	defer func() {
		observability.StorageOperations.WithLabelValues("s3", "remove", observability.Outcome(err)).Inc()
	}()
	if err := validBucket(bucket); err != nil {
		return err
	}
	key, err := cleanObjectPath(objectPath)
	if err != nil {
		return err
	}

	_, err = s.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName(bucket)),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("s3 head %s/%s: %w", bucket, key, err)
	}

	_, err = s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName(bucket)),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *S3Store) PublicURL(bucket, objectPath string) string {
	key := (&url.URL{Path: strings.TrimPrefix(objectPath, "/")}).EscapedPath()
	if s.opts.Endpoint != "" {
		return strings.TrimRight(s.opts.Endpoint, "/") + "/" + s.bucketName(bucket) + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucketName(bucket), s.opts.Region, key)
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case "NotFound", s3.ErrCodeNoSuchKey:
			return true
		}
	}
	return false
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
