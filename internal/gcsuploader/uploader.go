package gcsuploader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	objectPrefix  = "screenshots"
	uploadTimeout = 2 * time.Minute
	uploadRetries = 3
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Config configures the GCS blob store.
type Config struct {
	Bucket       string
	SignedURLTTL time.Duration

	// PublicURLs makes Resolve return plain public object URLs instead of
	// signed ones. The bucket must allow public reads.
	PublicURLs bool
}

// GCSBlobStore stores screenshots in a GCS bucket.
type GCSBlobStore struct {
	client     *storage.Client
	cfg        Config
	log        zerolog.Logger
	retryDelay time.Duration
}

var _ BlobStore = (*GCSBlobStore)(nil)

// NewGCSBlobStore creates a blob store with its own storage client.
// It assumes Application Default Credentials unless opts say otherwise.
func NewGCSBlobStore(ctx context.Context, cfg Config, log zerolog.Logger, opts ...option.ClientOption) (*GCSBlobStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("NewGCSBlobStore: bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewGCSBlobStore: create storage client: %w", err)
	}
	return &GCSBlobStore{
		client:     client,
		cfg:        cfg,
		log:        log,
		retryDelay: time.Second,
	}, nil
}

// Close closes the storage client.
func (s *GCSBlobStore) Close() error {
	return s.client.Close()
}

// ObjectName returns screenshots/YYYY/MM/DD/<transactionID><ext>.
func ObjectName(transactionID, contentType string, at time.Time) string {
	at = at.UTC()
	return path.Join(
		objectPrefix,
		at.Format("2006"),
		at.Format("01"),
		at.Format("02"),
		transactionID+extensions[contentType],
	)
}

// Attach uploads data, retrying rate limits and server errors.
func (s *GCSBlobStore) Attach(ctx context.Context, transactionID string, data []byte, contentType string) (string, error) {
	objectName := ObjectName(transactionID, contentType, time.Now())

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	err := retry.Do(
		func() error {
			return s.write(ctx, objectName, data, contentType)
		},
		retry.RetryIf(func(err error) bool {
			if isRetryable(err) {
				s.log.Warn().Err(err).Str("object", objectName).Msg("Upload failed, will retry")
				return true
			}
			return false
		}),
		retry.Attempts(uploadRetries),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("Attach: upload %s: %w", objectName, err)
	}

	s.log.Debug().Str("object", objectName).Int("bytes", len(data)).Msg("Stored screenshot")
	return objectName, nil
}

func (s *GCSBlobStore) write(ctx context.Context, objectName string, data []byte, contentType string) error {
	w := s.client.Bucket(s.cfg.Bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// isRetryable reports rate limiting and server side failures.
func isRetryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return false
}

// Resolve returns a V4 signed GET URL for key, or the public URL when configured.
func (s *GCSBlobStore) Resolve(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if s.cfg.PublicURLs {
		return PublicURL(s.cfg.Bucket, key), nil
	}

	opts := &storage.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: time.Now().Add(s.cfg.SignedURLTTL),
		Scheme:  storage.SigningSchemeV4,
	}

	u, err := s.client.Bucket(s.cfg.Bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("Resolve: signed URL for %s: %w", key, err)
	}
	return u, nil
}

// PublicURL returns the public HTTPS URL of an object.
func PublicURL(bucket, key string) string {
	u := url.URL{
		Scheme: "https",
		Host:   "storage.googleapis.com",
		Path:   "/" + bucket + "/" + key,
	}
	return u.String()
}

// Delete removes key. A missing object is not an error.
func (s *GCSBlobStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := s.client.Bucket(s.cfg.Bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("Delete: %s: %w", key, err)
	}
	return nil
}
