// Package r2 archives migration artifacts in a Cloudflare R2 bucket through
// its S3-compatible API.
package r2

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Client manages R2 interactions.
type Client struct {
	svc       *s3.S3
	bucket    string
	publicURL string
}

// New creates a new R2 client.
func New(accountID, accessKey, secretKey, bucket, publicURL string) (*Client, error) {
	if accountID == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, fmt.Errorf("missing R2 credentials")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)

	s3Config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String("auto"), // R2 uses 'auto'
		S3ForcePathStyle: aws.Bool(true),
	}

	sess, err := session.NewSession(s3Config)
	if err != nil {
		return nil, err
	}

	return &Client{
		svc:       s3.New(sess),
		bucket:    bucket,
		publicURL: publicURL,
	}, nil
}

// Upload stores data under key and returns its public URL if one is
// configured, or the key otherwise.
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := c.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	if url := c.GetURL(key); url != "" {
		return url, nil
	}
	return key, nil
}

// GetURL returns the public URL for a given key.
func (c *Client) GetURL(key string) string {
	if c.publicURL == "" {
		return ""
	}
	base := strings.TrimRight(c.publicURL, "/")
	return fmt.Sprintf("%s/%s", base, key)
}
