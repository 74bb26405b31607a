package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"document-service/internal/apperr"
	dbminio "document-service/internal/database/minio"

	"github.com/minio/minio-go/v7"
)

// objectBackend holds the object operations shared by the credentials and
// delegated strategies. Only signing differs between them.
type objectBackend struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func (b *objectBackend) Put(ctx context.Context, name string, r io.Reader, size int64, opts PutOptions) (string, error) {
	putOpts := minio.PutObjectOptions{
		ContentType:    opts.ContentType,
		CacheControl:   opts.CacheControl,
		UserMetadata:   opts.Metadata,
		SendContentMd5: opts.SendContentMD5,
		PartSize:       opts.PartSize,
		NumThreads:     opts.Concurrency,
	}
	if opts.Concurrency > 1 {
		putOpts.ConcurrentStreamParts = true
	}
	if _, err := b.client.PutObject(ctx, b.bucket, name, r, size, putOpts); err != nil {
		return "", err
	}
	return b.ObjectURL(name), nil
}

func (b *objectBackend) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if dbminio.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (b *objectBackend) Delete(ctx context.Context, name string) error {
	err := b.client.RemoveObject(ctx, b.bucket, name, minio.RemoveObjectOptions{})
	if err != nil && !dbminio.IsNotFound(err) {
		return err
	}
	return nil
}

func (b *objectBackend) ObjectURL(name string) string {
	return b.baseURL + "/" + b.bucket + "/" + escapeObjectPath(name)
}

func (b *objectBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		names = append(names, obj.Key)
	}
	return names, nil
}

// credentialsBackend owns an account key and signs URLs locally.
type credentialsBackend struct {
	objectBackend
}

func newCredentialsBackend(ctx context.Context, cfg Config) (*credentialsBackend, error) {
	cs, err := ParseConnectionString(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}
	region := cs.Region
	if region == "" {
		region = cfg.Region
	}
	client, err := dbminio.NewClient(dbminio.ClientOptions{
		Endpoint:        cs.Endpoint,
		AccessKeyID:     cs.AccessKeyID,
		SecretAccessKey: cs.SecretAccessKey,
		UseSSL:          cs.UseSSL,
		Region:          region,
	})
	if err != nil {
		return nil, err
	}
	if _, err := dbminio.EnsureBucket(ctx, client, cfg.Container, region); err != nil {
		return nil, err
	}
	return &credentialsBackend{objectBackend{
		client:  client,
		bucket:  cfg.Container,
		baseURL: baseURL(cfg.PublicBaseURL, client.EndpointURL().String()),
	}}, nil
}

func (b *credentialsBackend) Sign(ctx context.Context, name string, ttl time.Duration) (string, error) {
	u, err := b.client.PresignedGetObject(ctx, b.bucket, name, ttl, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// delegatedBackend reaches the account through a pre-shared token and
// cannot mint new signatures. Sign hands out the shared token itself.
type delegatedBackend struct {
	objectBackend
	token string
}

func newDelegatedBackend(cfg Config) (*delegatedBackend, error) {
	if _, ok := TryParseURL(cfg.AccountURL); !ok {
		return nil, fmt.Errorf("account url %q is not an absolute URL", cfg.AccountURL)
	}
	token := strings.TrimPrefix(strings.TrimSpace(cfg.SASToken), "?")
	client, err := dbminio.NewDelegatedClient(cfg.AccountURL, token, cfg.Region)
	if err != nil {
		return nil, err
	}
	return &delegatedBackend{
		objectBackend: objectBackend{
			client:  client,
			bucket:  cfg.Container,
			baseURL: baseURL(cfg.PublicBaseURL, cfg.AccountURL),
		},
		token: token,
	}, nil
}

func (b *delegatedBackend) Sign(_ context.Context, name string, _ time.Duration) (string, error) {
	if b.token == "" {
		return "", apperr.ErrSigningNotConfigured
	}
	return b.ObjectURL(name) + "?" + b.token, nil
}

// disabledBackend stands in when no storage is configured. Writes succeed
// without side effects and URLs are placeholders.
type disabledBackend struct{}

const disabledURLPrefix = "blob://disabled/"

func (disabledBackend) Put(_ context.Context, name string, _ io.Reader, _ int64, _ PutOptions) (string, error) {
	return disabledURLPrefix + name, nil
}

func (disabledBackend) Exists(context.Context, string) (bool, error) { return false, nil }
func (disabledBackend) Delete(context.Context, string) error         { return nil }

func (disabledBackend) Sign(_ context.Context, name string, _ time.Duration) (string, error) {
	return disabledURLPrefix + name, nil
}

func (disabledBackend) ObjectURL(name string) string { return disabledURLPrefix + name }

func (disabledBackend) List(context.Context, string) ([]string, error) { return nil, nil }

func baseURL(override, fallback string) string {
	if s := strings.TrimSpace(override); s != "" {
		return strings.TrimRight(s, "/")
	}
	return strings.TrimRight(fallback, "/")
}
