/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package s3 stores blobs in an S3-compatible object store. Logical buckets
// map to key prefixes inside one configured physical bucket.
package s3

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/sigee-min/bbmcp-sub006/pkg/config"
)

// Config carries the resolved AWS configuration plus the physical bucket.
type Config struct {
	aws.Config
	Bucket *string
}

// NewConfig builds the S3 configuration from system-wide settings.
func NewConfig() (*Config, error) {
	if !config.IsS3Enable() {
		return nil, fmt.Errorf("s3 is disabled")
	}
	if config.GetS3Bucket() == "" {
		return nil, fmt.Errorf("the s3 bucket is empty")
	}
	return newConfigFromCredentials(config.GetS3AccessKey(), config.GetS3SecretKey(),
		config.GetS3Endpoint(), config.GetS3Bucket())
}

func newConfigFromCredentials(ak, sk, endpoint, bucket string) (*Config, error) {
	if ak == "" {
		return nil, fmt.Errorf("the s3 AccessKey is empty")
	}
	if sk == "" {
		return nil, fmt.Errorf("the s3 SecretKey is empty")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("the s3 endpoint is empty")
	}

	credProvider := aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     ak,
			SecretAccessKey: sk,
			Source:          "StaticCredentials",
		}, nil
	})

	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		},
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(""),
		awsconfig.WithCredentialsProvider(credProvider),
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: endpoint,
				}, nil
			}),
		),
	)
	if err != nil {
		return nil, err
	}
	return &Config{
		Config: cfg,
		Bucket: aws.String(bucket),
	}, nil
}
