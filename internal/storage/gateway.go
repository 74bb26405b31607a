package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"document-service/internal/apperr"
	"document-service/internal/logger"
	"document-service/internal/metrics"
	"document-service/pkg/utils"
)

const (
	CacheControlPublic  = "public, max-age=31536000"
	CacheControlPrivate = "private, no-cache"

	MetadataIsPublic   = "is-public"
	MetadataContentMD5 = "content-md5"

	defaultContentType = "application/octet-stream"
	defaultPartSize    = 8 * 1024 * 1024
	defaultConcurrency = 4
)

// PutOptions is what a backend needs to write one object.
type PutOptions struct {
	ContentType    string
	CacheControl   string
	Metadata       map[string]string
	SendContentMD5 bool
	PartSize       uint64
	Concurrency    uint
}

// Backend is one credential strategy. Exactly one is chosen at construction.
type Backend interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, opts PutOptions) (string, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
	Sign(ctx context.Context, name string, ttl time.Duration) (string, error)
	ObjectURL(name string) string
	List(ctx context.Context, prefix string) ([]string, error)
}

// SignedURL bundles a signed URL with the moment it stops working.
type SignedURL struct {
	URL       string
	ExpiresAt time.Time
	ExpiresIn int
}

// Gateway wraps a Backend with the header, checksum and fallback policy
// shared by every mode.
type Gateway struct {
	backend     Backend
	mode        Mode
	container   string
	partSize    uint64
	concurrency uint
	log         *logger.Logger
	now         func() time.Time
}

// New selects the backend for cfg.Mode(). The backend's client is created
// once and reused for the life of the process.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*Gateway, error) {
	var (
		backend Backend
		err     error
	)
	mode := cfg.Mode()
	switch mode {
	case ModeCredentials:
		backend, err = newCredentialsBackend(ctx, cfg)
	case ModeDelegated:
		backend, err = newDelegatedBackend(cfg)
	default:
		backend = disabledBackend{}
	}
	if err != nil {
		return nil, fmt.Errorf("init %s storage backend: %w", mode, err)
	}

	g := NewWithBackend(backend, mode, cfg.Container, log)
	if cfg.PartSize > 0 {
		g.partSize = cfg.PartSize
	}
	if cfg.UploadConcurrency > 0 {
		g.concurrency = cfg.UploadConcurrency
	}
	g.log.Info("Object storage initialized", "mode", mode, "container", cfg.Container)
	return g, nil
}

func NewWithBackend(backend Backend, mode Mode, container string, log *logger.Logger) *Gateway {
	if log == nil {
		log = logger.NewNop()
	}
	return &Gateway{
		backend:     backend,
		mode:        mode,
		container:   container,
		partSize:    defaultPartSize,
		concurrency: defaultConcurrency,
		log:         log.With("component", "storage_gateway", "mode", mode),
		now:         time.Now,
	}
}

func (g *Gateway) Mode() Mode        { return g.mode }
func (g *Gateway) Container() string { return g.container }

// UploadBuffer writes data under name and returns the storage-native URL.
// The URL is informational; callers persist name, never the URL.
func (g *Gateway) UploadBuffer(ctx context.Context, name string, data []byte, contentType string, isPublic bool) (string, error) {
	_, b64Sum := utils.MD5(data)
	opts := g.putOptions(contentType, isPublic)
	opts.Metadata[MetadataContentMD5] = b64Sum
	opts.SendContentMD5 = true

	return g.put(ctx, "upload_buffer", name, bytes.NewReader(data), int64(len(data)), opts)
}

// UploadStream is UploadBuffer for payloads that should not be held in
// memory. size may be -1 when unknown. Parts are uploaded concurrently.
// contentMD5 is the digest of the whole payload when the caller knows it
// up front; it is recorded as object metadata.
func (g *Gateway) UploadStream(ctx context.Context, name string, r io.Reader, size int64, contentType string, isPublic bool, contentMD5 []byte) (string, error) {
	opts := g.putOptions(contentType, isPublic)
	if len(contentMD5) == md5.Size {
		opts.Metadata[MetadataContentMD5] = base64.StdEncoding.EncodeToString(contentMD5)
	}
	opts.SendContentMD5 = true
	opts.PartSize = g.partSize
	opts.Concurrency = g.concurrency

	return g.put(ctx, "upload_stream", name, r, size, opts)
}

func (g *Gateway) put(ctx context.Context, op, name string, r io.Reader, size int64, opts PutOptions) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	start := time.Now()
	storageURL, err := g.backend.Put(ctx, name, r, size, opts)
	metrics.StorageOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		g.log.Error("Error uploading blob", "blob_name", name, "error", err)
		return "", apperr.Wrap(apperr.ErrStorage, err, "failed to upload blob %s", name)
	}
	return storageURL, nil
}

func (g *Gateway) putOptions(contentType string, isPublic bool) PutOptions {
	if strings.TrimSpace(contentType) == "" {
		contentType = defaultContentType
	}
	cacheControl := CacheControlPrivate
	if isPublic {
		cacheControl = CacheControlPublic
	}
	return PutOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
		Metadata: map[string]string{
			MetadataIsPublic: strconv.FormatBool(isPublic),
		},
	}
}

func (g *Gateway) Exists(ctx context.Context, name string) (bool, error) {
	start := time.Now()
	ok, err := g.backend.Exists(ctx, name)
	metrics.StorageOperationDuration.WithLabelValues("exists").Observe(time.Since(start).Seconds())
	if err != nil {
		return false, apperr.Wrap(apperr.ErrStorage, err, "failed to check blob %s", name)
	}
	return ok, nil
}

// Delete removes name. Deleting a missing object is not an error.
func (g *Gateway) Delete(ctx context.Context, name string) error {
	start := time.Now()
	err := g.backend.Delete(ctx, name)
	metrics.StorageOperationDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	if err != nil {
		g.log.Error("Error deleting blob", "blob_name", name, "error", err)
		return apperr.Wrap(apperr.ErrStorage, err, "failed to delete blob %s", name)
	}
	return nil
}

// SignedURL returns a read-only URL valid for expiresIn. When the backend
// cannot sign, the public URL is returned instead; the signing error is
// logged and never reaches the caller.
func (g *Gateway) SignedURL(ctx context.Context, name string, expiresIn time.Duration) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	signed, err := g.backend.Sign(ctx, name, expiresIn)
	if err == nil {
		return signed, nil
	}

	reason := "sign_error"
	if errors.Is(err, apperr.ErrSigningNotConfigured) {
		reason = "no_credentials"
		g.log.Debug("Signing unavailable, returning public URL", "blob_name", name)
	} else {
		g.log.Warn("Error generating signed URL, returning public URL", "blob_name", name, "error", err)
	}
	metrics.SignedURLFallbacksTotal.WithLabelValues(string(g.mode), reason).Inc()
	return g.PublicURL(name), nil
}

// PublicURL is the object's base URL without any query or signature.
func (g *Gateway) PublicURL(name string) string {
	return g.backend.ObjectURL(name)
}

func (g *Gateway) SignedURLWithMetadata(ctx context.Context, name string, expiresIn time.Duration) (*SignedURL, error) {
	issuedAt := g.now()
	signed, err := g.SignedURL(ctx, name, expiresIn)
	if err != nil {
		return nil, err
	}
	return &SignedURL{
		URL:       signed,
		ExpiresAt: issuedAt.Add(expiresIn),
		ExpiresIn: int(expiresIn / time.Second),
	}, nil
}

// List returns every blob name under prefix.
func (g *Gateway) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := g.backend.List(ctx, prefix)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStorage, err, "failed to list blobs under %q", prefix)
	}
	return names, nil
}

// ExtractBlobPath turns a URL into this container, or an already relative
// path, into the canonical relative blob path. It never fails: input that
// does not parse as a URL is treated as a path.
func (g *Gateway) ExtractBlobPath(urlOrPath string) string {
	p := strings.TrimSpace(urlOrPath)
	if u, ok := TryParseURL(p); ok {
		p = u.EscapedPath()
	}
	p = strings.TrimPrefix(p, "/")
	if g.container != "" {
		if p == g.container {
			p = ""
		} else {
			p = strings.TrimPrefix(p, g.container+"/")
		}
	}
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	return p
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("blob name is required")
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == ".." {
			return apperr.Validation("invalid blob name %q", name)
		}
	}
	return nil
}

// escapeObjectPath escapes each segment of a blob name for use in a URL path.
func escapeObjectPath(name string) string {
	segments := strings.Split(strings.TrimPrefix(name, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
