// Package attachments signs short-lived download links for the scanned
// originals referenced by an import's attached_files.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ticketops/reconcile-api/internal/config"
	"github.com/ticketops/reconcile-api/internal/reconcile"
)

const defaultExpiry = 15 * time.Minute

var ErrNotConfigured = errors.New("attachment storage is not configured")

type SignedFile struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	ContentType string    `json:"contentType,omitempty"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type Presigner struct {
	client  *s3.PresignClient
	bucket  string
	expires time.Duration
	now     func() time.Time
}

// New builds a presigner for any S3-compatible endpoint. It returns
// ErrNotConfigured when no bucket is set.
func New(ctx context.Context, cfg config.S3Config) (*Presigner, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	expires := cfg.PresignExpires
	if expires <= 0 {
		expires = defaultExpiry
	}
	return &Presigner{
		client:  s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		expires: expires,
		now:     time.Now,
	}, nil
}

// SignedURLs returns one GET link per attached file, in order. Files with an
// empty key are skipped.
func (p *Presigner) SignedURLs(ctx context.Context, files []reconcile.AttachedFile) ([]SignedFile, error) {
	out := make([]SignedFile, 0, len(files))
	for _, f := range files {
		key := strings.TrimPrefix(strings.TrimSpace(f.Path), "/")
		if key == "" {
			continue
		}
		req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(p.expires))
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", key, err)
		}
		name := f.Name
		if name == "" {
			name = path.Base(key)
		}
		out = append(out, SignedFile{
			Name:        name,
			Path:        key,
			ContentType: f.ContentType,
			URL:         req.URL,
			ExpiresAt:   p.now().Add(p.expires).UTC(),
		})
	}
	return out, nil
}
