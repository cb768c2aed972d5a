/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sigee-min/bbmcp-sub006/pkg/blob"
)

// DefaultTimeout bounds a single object operation, in seconds.
const DefaultTimeout = 180

// Option tunes the store at construction time.
type Option struct {
	// ExpireDay installs a bucket lifecycle rule expiring objects after
	// this many days. Zero disables the rule.
	ExpireDay int32
}

// Store implements blob.Store on an S3-compatible endpoint.
type Store struct {
	*Config
	opt      Option
	s3Client *awss3.Client
}

var _ blob.Store = (*Store)(nil)

// NewStore creates a Store using system-wide S3 settings.
func NewStore(ctx context.Context, opt Option) (*Store, error) {
	config, err := NewConfig()
	if err != nil {
		return nil, err
	}
	return NewStoreFromConfig(ctx, config, opt)
}

// NewStoreFromConfig creates a Store from an explicit configuration.
func NewStoreFromConfig(ctx context.Context, config *Config, opt Option) (*Store, error) {
	s3Client := awss3.NewFromConfig(config.Config, func(o *awss3.Options) {
		o.UsePathStyle = true
	})
	store := &Store{
		Config:   config,
		opt:      opt,
		s3Client: s3Client,
	}
	if err := store.checkBucketExisted(ctx); err != nil {
		return nil, err
	}
	if err := store.setLifecycleRule(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) checkBucketExisted(ctx context.Context) error {
	input := &awss3.HeadBucketInput{
		Bucket: s.Bucket,
	}
	timeoutCtx, cancel := WithOptionalTimeout(ctx, DefaultTimeout)
	defer cancel()

	if _, err := s.s3Client.HeadBucket(timeoutCtx, input); err != nil {
		return err
	}
	return nil
}

func (s *Store) setLifecycleRule(ctx context.Context) error {
	if s.opt.ExpireDay <= 0 {
		return nil
	}
	input := &awss3.PutBucketLifecycleConfigurationInput{
		Bucket: s.Bucket,
		LifecycleConfiguration: &types.BucketLifecycleConfiguration{
			Rules: []types.LifecycleRule{
				{
					ID:     aws.String(fmt.Sprintf("expire-after-%d-day", s.opt.ExpireDay)),
					Status: types.ExpirationStatusEnabled,
					Expiration: &types.LifecycleExpiration{
						Days: aws.Int32(s.opt.ExpireDay),
					},
				},
			},
		},
	}
	timeoutCtx, cancel := WithOptionalTimeout(ctx, DefaultTimeout)
	defer cancel()
	_, err := s.s3Client.PutBucketLifecycleConfiguration(timeoutCtx, input)
	return err
}

// objectKey prefixes the key with the logical bucket.
func objectKey(ptr blob.Pointer) string {
	return ptr.Bucket + "/" + ptr.Key
}

// Put uploads the blob and returns its pointer.
func (s *Store) Put(ctx context.Context, bucket, key string,
	data []byte, contentType string, opts *blob.PutOptions) (blob.Pointer, error) {
	ptr := blob.Pointer{Bucket: bucket, Key: key}
	if key == "" {
		return ptr, fmt.Errorf("the object key is empty")
	}
	input := &awss3.PutObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(objectKey(ptr)),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if opts != nil {
		if opts.CacheControl != "" {
			input.CacheControl = aws.String(opts.CacheControl)
		}
		if len(opts.Metadata) > 0 {
			input.Metadata = opts.Metadata
		}
	}
	timeoutCtx, cancel := WithOptionalTimeout(ctx, DefaultTimeout)
	defer cancel()

	if _, err := s.s3Client.PutObject(timeoutCtx, input); err != nil {
		return ptr, err
	}
	return ptr, nil
}

// Get downloads the blob, or returns nil data when the key does not exist.
func (s *Store) Get(ctx context.Context, ptr blob.Pointer) ([]byte, error) {
	timeoutCtx, cancel := WithOptionalTimeout(ctx, DefaultTimeout)
	defer cancel()

	resp, err := s.s3Client.GetObject(timeoutCtx, &awss3.GetObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(objectKey(ptr)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Delete removes the blob. Missing keys are a no-op.
func (s *Store) Delete(ctx context.Context, ptr blob.Pointer) error {
	timeoutCtx, cancel := WithOptionalTimeout(ctx, DefaultTimeout)
	defer cancel()

	_, err := s.s3Client.DeleteObject(timeoutCtx, &awss3.DeleteObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(objectKey(ptr)),
	})
	return err
}

// ReadUtf8 downloads the blob decoded as text. The second return is false
// when the key does not exist.
func (s *Store) ReadUtf8(ctx context.Context, ptr blob.Pointer) (string, bool, error) {
	data, err := s.Get(ctx, ptr)
	if err != nil || data == nil {
		return "", false, err
	}
	return string(data), true, nil
}

// WithOptionalTimeout add optional timeout to context.
func WithOptionalTimeout(parent context.Context, timeout int64) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, time.Duration(timeout)*time.Second)
}
