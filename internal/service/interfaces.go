package service

import (
	"context"
	"io"
	"time"

	"document-service/internal/models"
	"document-service/internal/storage"
)

// BlobStore is the subset of the storage gateway the service uses.
type BlobStore interface {
	UploadBuffer(ctx context.Context, name string, data []byte, contentType string, isPublic bool) (string, error)
	UploadStream(ctx context.Context, name string, r io.Reader, size int64, contentType string, isPublic bool, contentMD5 []byte) (string, error)
	Delete(ctx context.Context, name string) error
	SignedURLWithMetadata(ctx context.Context, name string, expiresIn time.Duration) (*storage.SignedURL, error)
	ExtractBlobPath(urlOrPath string) string
	Container() string
	List(ctx context.Context, prefix string) ([]string, error)
}

// AssetStore persists asset records. Lookups return nil, nil when nothing
// matches.
type AssetStore interface {
	Create(ctx context.Context, asset *models.Asset) (*models.Asset, error)
	FindOne(ctx context.Context, id string) (*models.Asset, error)
	FindByBlobName(ctx context.Context, blobName string) (*models.Asset, error)
	DeleteOne(ctx context.Context, id string, hard bool) (bool, error)
	List(ctx context.Context, filter models.AssetFilter, page, limit int) ([]*models.Asset, int64, error)
	UpdateStatus(ctx context.Context, id string, status models.AssetStatus, message *string) (*models.Asset, error)
	AddVariant(ctx context.Context, id string, v models.Variant) (*models.Asset, error)
	ListBlobReferences(ctx context.Context) ([]models.BlobReference, error)
}

// EventPublisher announces completed operations. Failures are logged by the
// caller and never fail the operation.
type EventPublisher interface {
	PublishDocumentUploaded(ctx context.Context, asset *models.Asset) error
	PublishDocumentDeleted(ctx context.Context, documentID, blobName string) error
}

type noopPublisher struct{}

func (noopPublisher) PublishDocumentUploaded(context.Context, *models.Asset) error { return nil }
func (noopPublisher) PublishDocumentDeleted(context.Context, string, string) error { return nil }
