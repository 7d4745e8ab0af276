// Package s3 implements the storage port against any S3-compatible object
// store (AWS, Cloudflare R2, MinIO). Signed URLs use native presigning.
package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"reelpress/internal/ports"
)

type Config struct {
	Endpoint        string // empty for AWS proper
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

type Store struct {
	client    *awss3.Client
	presigner *awss3.PresignClient
	bucket    string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 configuration incomplete")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: cfg.Endpoint}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg)
	return &Store{
		client:    client,
		presigner: awss3.NewPresignClient(client),
		bucket:    cfg.Bucket,
	}, nil
}

func (s *Store) Provider() string { return "s3" }

func (s *Store) ListObjects(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
	var out []ports.ObjectInfo
	var token *string
	for {
		resp, err := s.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list s3 objects: %w", err)
		}
		for _, obj := range resp.Contents {
			out = append(out, ports.ObjectInfo{
				Key:     aws.ToString(obj.Key),
				Size:    aws.ToInt64(obj.Size),
				Updated: aws.ToTime(obj.LastModified),
			})
		}
		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		token = resp.NextContinuationToken
	}
	return out, nil
}

func (s *Store) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, fmt.Errorf("object_key is required")
	}

	input := &awss3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(in.ObjectKey),
		Body:     in.Reader,
		Metadata: in.Metadata,
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return ports.PutObjectOutput{}, fmt.Errorf("failed to upload to s3: %w", err)
	}
	return ports.PutObjectOutput{ObjectKey: in.ObjectKey, Size: in.Size}, nil
}

func (s *Store) GetObject(ctx context.Context, objectKey string) (io.ReadCloser, string, int64, error) {
	resp, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to get s3 object: %w", err)
	}
	return resp.Body, aws.ToString(resp.ContentType), aws.ToInt64(resp.ContentLength), nil
}

func (s *Store) DeleteObject(ctx context.Context, objectKey string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from s3: %w", err)
	}
	return nil
}

func (s *Store) GetObjectMetadata(ctx context.Context, objectKey string) (map[string]string, ports.ObjectInfo, error) {
	resp, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, ports.ObjectInfo{}, fmt.Errorf("failed to head s3 object: %w", err)
	}
	info := ports.ObjectInfo{
		Key:     objectKey,
		Size:    aws.ToInt64(resp.ContentLength),
		Updated: aws.ToTime(resp.LastModified),
	}
	// S3 lower-cases user metadata keys; callers must match accordingly.
	return resp.Metadata, info, nil
}

func (s *Store) GetSignedURL(ctx context.Context, objectKey string, expiresIn time.Duration) (ports.SignedURLOutput, error) {
	req, err := s.presigner.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}, awss3.WithPresignExpires(expiresIn))
	if err != nil {
		return ports.SignedURLOutput{}, fmt.Errorf("failed to presign s3 object: %w", err)
	}
	return ports.SignedURLOutput{URL: req.URL, ExpiresAt: time.Now().UTC().Add(expiresIn)}, nil
}
