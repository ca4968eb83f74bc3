package infra

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"oishi/internal/config"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// BlobStore is the file half of the persistence gateway: upload bytes under a
// key, then hand out a public URL for it.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

const (
	StorageProviderGCS   = "gcs"
	StorageProviderLocal = "local"
)

// LocalRoute is where the router serves files written by LocalStore.
const LocalRoute = "/uploads"

// NewBlobStore builds the store selected by STORAGE_PROVIDER, wrapped in a circuit breaker.
func NewBlobStore(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	var inner BlobStore
	switch strings.ToLower(strings.TrimSpace(cfg.StorageProvider)) {
	case StorageProviderGCS:
		gcs, err := NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON)
		if err != nil {
			return nil, err
		}
		inner = gcs
	case StorageProviderLocal, "":
		local, err := NewLocalStore(cfg.LocalStoragePath, strings.TrimRight(cfg.PublicBaseURL, "/")+LocalRoute)
		if err != nil {
			return nil, err
		}
		inner = local
	default:
		return nil, fmt.Errorf("storage: unknown provider %q", cfg.StorageProvider)
	}
	return NewBreakerStore(inner, NewCircuitBreaker(DefaultCBConfig())), nil
}

// ── Google Cloud Storage ──────────────────────────────────────────────────────

type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore prefers Application Default Credentials; credJSON overrides them
// when set (local development).
func NewGCSStore(ctx context.Context, bucket, credJSON string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage: GCS_BUCKET is required")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(credJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	wc := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=86400"
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("gcs close %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) PublicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, escapeKey(key))
}

func (s *GCSStore) Close() error { return s.client.Close() }

// ── Local disk (development) ─────────────────────────────────────────────────

type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", root, err)
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Upload(_ context.Context, key string, data []byte, _ string) error {
	clean := filepath.Clean("/" + key)
	dst := filepath.Join(s.root, clean)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func (s *LocalStore) PublicURL(key string) string {
	return s.baseURL + "/" + escapeKey(strings.TrimPrefix(path.Clean("/"+key), "/"))
}

// ── Breaker wrapper ──────────────────────────────────────────────────────────

type BreakerStore struct {
	inner BlobStore
	cb    *CircuitBreaker
}

func NewBreakerStore(inner BlobStore, cb *CircuitBreaker) *BreakerStore {
	return &BreakerStore{inner: inner, cb: cb}
}

func (s *BreakerStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	err := s.cb.Execute(func() error {
		return s.inner.Upload(ctx, key, data, contentType)
	})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Str("breaker", s.cb.State().String()).Msg("storage: upload failed")
	}
	return err
}

func (s *BreakerStore) PublicURL(key string) string { return s.inner.PublicURL(key) }

// State exposes the breaker for the health endpoint.
func (s *BreakerStore) State() CBState { return s.cb.State() }

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
