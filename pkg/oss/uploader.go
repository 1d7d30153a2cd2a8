// Package oss persists synthesized audio to object storage so cache entries
// survive process restarts. Uploads are best-effort by contract: callers keep
// working from in-memory bytes when storage is unavailable.
package oss

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"
)

// Config carries the bucket coordinates, typically from config.toml.
type Config struct {
	Endpoint        string
	Region          string
	AccessKeyId     string
	AccessKeySecret string
	Bucket          string
}

// Enabled reports whether enough of the config is present to upload.
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyId != "" && c.AccessKeySecret != ""
}

// Uploader stores byte blobs under a key prefix and returns public URLs.
type Uploader struct {
	client *oss.Client
	bucket string
	host   string
	prefix string
}

func NewUploader(cfg Config, prefix string) *Uploader {
	ossCfg := oss.LoadDefaultConfig().
		WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyId, cfg.AccessKeySecret)).
		WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		ossCfg = ossCfg.WithEndpoint(cfg.Endpoint)
	}

	host := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	if host == "" {
		host = fmt.Sprintf("oss-%s.aliyuncs.com", cfg.Region)
	}

	return &Uploader{
		client: oss.NewClient(ossCfg),
		bucket: cfg.Bucket,
		host:   host,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Upload puts the blob and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, key string, data []byte) (string, error) {
	objectKey := key
	if u.prefix != "" {
		objectKey = u.prefix + "/" + key
	}

	_, err := u.client.PutObject(ctx, &oss.PutObjectRequest{
		Bucket: oss.Ptr(u.bucket),
		Key:    oss.Ptr(objectKey),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", objectKey, err)
	}

	return fmt.Sprintf("https://%s.%s/%s", u.bucket, u.host, objectKey), nil
}
