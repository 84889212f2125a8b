// Package storage holds attachment uploads in an S3-compatible object store.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const uploadFolder = "chat_files"

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type Store struct {
	cfg    Config
	client *minio.Client
}

func New(cfg Config) (*Store, error) {
	cl, err := minio.New(strings.TrimPrefix(cfg.Endpoint, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &Store{cfg: cfg, client: cl}, nil
}

func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// Upload stores the file under a collision-free key and returns the
// attachment record with its retrievable URL.
func (s *Store) Upload(ctx context.Context, name, contentType string, size int64, r io.Reader) (*domain.FileAttachment, error) {
	key := fmt.Sprintf("%s/%s-%s", uploadFolder, uuid.NewString(), name)

	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("storing attachment: %w", err)
	}

	return &domain.FileAttachment{
		Name: name,
		Type: contentType,
		Size: size,
		URL:  s.objectURL(key, contentType),
	}, nil
}

// objectURL builds the public retrieval URL. PDFs get a content-disposition
// flag so browsers download instead of rendering inline.
func (s *Store) objectURL(key, contentType string) string {
	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	u := fmt.Sprintf("%s://%s/%s/%s", scheme, s.cfg.Endpoint, s.cfg.Bucket, escapeKey(key))
	if contentType == "application/pdf" {
		u += "?response-content-disposition=attachment"
	}
	return u
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
