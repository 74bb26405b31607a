package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"document-service/internal/apperr"
	"document-service/internal/logger"
	"document-service/internal/metrics"
	"document-service/internal/models"
	"document-service/internal/storage"
	"document-service/pkg/utils"

	"github.com/google/uuid"
)

// SignedURLTTL is the lifetime of every URL this service hands out.
const SignedURLTTL = 12 * time.Hour

const (
	DispositionInline     = "inline"
	DispositionAttachment = "attachment"

	sniffLen         = 512
	defaultListLimit = 20
	maxListLimit     = 100
)

// DocumentService orchestrates the blob store and the asset store. Storage
// is always written or deleted before metadata.
type DocumentService struct {
	blobs     BlobStore
	assets    AssetStore
	publisher EventPublisher
	detector  *utils.ContentTypeDetector
	log       *logger.Logger
	now       func() time.Time
	newID     func() string

	reconcileMu      sync.Mutex
	reconcileRunning bool
}

func NewDocumentService(blobs BlobStore, assets AssetStore, publisher EventPublisher, log *logger.Logger) *DocumentService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &DocumentService{
		blobs:     blobs,
		assets:    assets,
		publisher: publisher,
		detector:  utils.NewContentTypeDetector(),
		log:       log.With("component", "document_service"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Upload stores the payload and records a ready asset with one original
// variant. The returned view carries a fresh 12h signed URL.
func (s *DocumentService) Upload(ctx context.Context, file *UploadFile, opts UploadOptions) (*AssetView, error) {
	if file == nil || (file.Data == nil && file.Reader == nil) {
		return nil, apperr.Validation("file is required")
	}

	streamed := file.Data == nil
	size := int64(len(file.Data))
	sniff := file.Data
	var digest []byte
	if streamed {
		var err error
		digest, sniff, err = digestStream(file.Reader)
		if err != nil {
			return nil, apperr.Validation("unable to read uploaded file: %v", err)
		}
		size = file.Size
	} else {
		sum := md5.Sum(file.Data)
		digest = sum[:]
	}
	hexSum := hex.EncodeToString(digest)
	if opts.Checksum != "" {
		if err := verifyChecksum(opts.Checksum, hexSum); err != nil {
			return nil, err
		}
	}

	id := s.newID()
	fileName := strings.TrimSpace(opts.FileName)
	if fileName == "" {
		fileName = file.OriginalName
	}
	contentType := strings.TrimSpace(opts.ContentType)
	if contentType == "" {
		contentType = s.detector.DetectContentType(file.MimeType, fileName, sniff)
	}
	mediaKind := opts.MediaKind
	if mediaKind == "" {
		mediaKind = models.DetectMediaKind(contentType)
	}

	now := s.now().UTC()
	blobName := BlobName(mediaKind, strings.TrimSpace(opts.MemberID), strings.TrimSpace(opts.Purpose), id, fileName, now)

	var err error
	if streamed {
		_, err = s.blobs.UploadStream(ctx, blobName, file.Reader, size, contentType, opts.IsPublic, digest)
	} else {
		_, err = s.blobs.UploadBuffer(ctx, blobName, file.Data, contentType, opts.IsPublic)
	}
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(string(mediaKind), "failure").Inc()
		return nil, err
	}

	asset := &models.Asset{
		ID:          id,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
		MediaKind:   mediaKind,
		Purpose:     opts.Purpose,
		BlobName:    blobName,
		Status:      models.AssetStatusReady,
		IsPublic:    opts.IsPublic,
		UploadedBy:  opts.UploadedBy,
		Checksum:    hexSum,
		Variants: []models.Variant{{
			Key:         models.VariantOriginal,
			URL:         blobName,
			ContentType: &contentType,
			Size:        &size,
			Ready:       true,
		}},
		CreatedAt: now,
	}

	created, err := s.assets.Create(ctx, asset)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(string(mediaKind), "failure").Inc()
		s.log.Error("Asset record not saved, blob left orphaned", "asset_id", id, "blob_name", blobName, "error", err)
		return nil, apperr.Wrap(apperr.ErrMetadata, err, "failed to save document %s", id)
	}
	metrics.UploadsTotal.WithLabelValues(string(mediaKind), "success").Inc()
	s.log.Info("Document uploaded", "asset_id", id, "blob_name", blobName, "size", size, "is_public", opts.IsPublic)

	if err := s.publisher.PublishDocumentUploaded(ctx, created); err != nil {
		s.log.Warn("Failed to publish document uploaded event", "asset_id", id, "error", err)
	}

	view := newAssetView(created)
	signed, err := s.blobs.SignedURLWithMetadata(ctx, blobName, SignedURLTTL)
	if err != nil {
		return nil, err
	}
	metrics.SignedURLsTotal.WithLabelValues(visibility(created.IsPublic)).Inc()
	view.PublicURL = signed.URL
	view.URLExpiresAt = &signed.ExpiresAt
	view.URLExpiresIn = signed.ExpiresIn
	return view, nil
}

// digestStream hashes r in one pass, keeps the leading bytes for content
// sniffing and rewinds r for the upload.
func digestStream(r io.ReadSeeker) (digest, head []byte, err error) {
	hr := utils.NewMD5Reader(r)
	head = make([]byte, sniffLen)
	n, err := io.ReadFull(hr, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, nil, err
	}
	head = head[:n]
	if _, err := io.Copy(io.Discard, hr); err != nil {
		return nil, nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, nil, err
	}
	return hr.Sum(), head, nil
}

func verifyChecksum(supplied, actualHex string) error {
	want, err := utils.DecodeMD5(supplied)
	if err != nil {
		return apperr.Validation("invalid checksum: %v", err)
	}
	if fmt.Sprintf("%x", want) != actualHex {
		return apperr.New(apperr.ErrChecksumMismatch, "checksum mismatch: expected %s, computed %s", supplied, actualHex)
	}
	return nil
}

// GetSignedURL issues a 12h URL for one variant of an asset. variant
// defaults to original.
func (s *DocumentService) GetSignedURL(ctx context.Context, id string, variant models.VariantKey, inline bool) (*SignedURLResponse, error) {
	asset, err := s.findAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if variant == "" {
		variant = models.VariantOriginal
	}
	v, ok := asset.Variant(variant)
	if !ok {
		return nil, apperr.NotFound("Variant %s not found for document %s", variant, id)
	}

	signed, err := s.blobs.SignedURLWithMetadata(ctx, v.URL, SignedURLTTL)
	if err != nil {
		return nil, err
	}
	metrics.SignedURLsTotal.WithLabelValues(visibility(asset.IsPublic)).Inc()

	contentType := asset.ContentType
	if v.ContentType != nil && *v.ContentType != "" {
		contentType = *v.ContentType
	}
	size := asset.Size
	if v.Size != nil {
		size = *v.Size
	}
	disposition := DispositionAttachment
	if inline {
		disposition = DispositionInline
	}

	return &SignedURLResponse{
		URL:         signed.URL,
		ExpiresAt:   signed.ExpiresAt,
		ContentType: contentType,
		FileName:    asset.FileName,
		Size:        size,
		Disposition: disposition,
		Variant:     variant,
	}, nil
}

func (s *DocumentService) GetStatus(ctx context.Context, id string) (*StatusView, error) {
	asset, err := s.findAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	variants := asset.Variants
	if variants == nil {
		variants = []models.Variant{}
	}
	return &StatusView{
		ID:        asset.ID,
		Status:    asset.Status,
		Message:   asset.StatusMessage,
		Variants:  variants,
		UpdatedAt: asset.UpdatedAt,
	}, nil
}

// Delete removes the original blob and then the record. A failed record
// delete is not rolled back; the blob stays deleted.
func (s *DocumentService) Delete(ctx context.Context, id string) (bool, error) {
	asset, err := s.findAsset(ctx, id)
	if err != nil {
		return false, err
	}

	if err := s.blobs.Delete(ctx, asset.BlobName); err != nil {
		metrics.DeletesTotal.WithLabelValues("id", "failure").Inc()
		return false, err
	}

	removed, err := s.assets.DeleteOne(ctx, id, true)
	if err != nil {
		metrics.DeletesTotal.WithLabelValues("id", "failure").Inc()
		s.log.Error("Blob deleted but asset record was not", "asset_id", id, "blob_name", asset.BlobName, "error", err)
		return false, apperr.Wrap(apperr.ErrMetadata, err, "failed to delete document %s", id)
	}
	metrics.DeletesTotal.WithLabelValues("id", "success").Inc()
	s.log.Info("Document deleted", "asset_id", id, "blob_name", asset.BlobName)

	if removed {
		s.publishDeleted(ctx, id, asset.BlobName)
	}
	return removed, nil
}

// DeleteByURL removes a blob named by URL, container-prefixed path or bare
// name, then its record if one exists. It never returns an error; the
// outcome is in the result.
func (s *DocumentService) DeleteByURL(ctx context.Context, urlOrBlobName string) (result *DeleteByURLResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Panic while deleting blob by URL", "input", urlOrBlobName, "panic", r)
			metrics.DeletesTotal.WithLabelValues("url", "failure").Inc()
			result = &DeleteByURLResult{
				Success: false,
				Message: "Unexpected error while deleting blob",
				Data:    fmt.Sprint(r),
			}
		}
	}()

	if strings.TrimSpace(urlOrBlobName) == "" {
		return &DeleteByURLResult{Success: false, Message: "URL or blob name is required"}
	}

	blobName := ResolveBlobName(urlOrBlobName, s.blobs.Container())
	if blobName == "" {
		return &DeleteByURLResult{Success: false, Message: "Unable to extract blob name from URL"}
	}

	if err := s.blobs.Delete(ctx, blobName); err != nil {
		metrics.DeletesTotal.WithLabelValues("url", "failure").Inc()
		return &DeleteByURLResult{
			Success: false,
			Message: "Failed to delete blob from Azure Storage",
			Data:    err.Error(),
		}
	}

	asset, err := s.assets.FindByBlobName(ctx, blobName)
	if err != nil {
		metrics.DeletesTotal.WithLabelValues("url", "failure").Inc()
		s.log.Error("Lookup by blob name failed after blob delete", "blob_name", blobName, "error", err)
		return &DeleteByURLResult{
			Success: false,
			Message: "Unexpected error while deleting blob",
			Data:    err.Error(),
		}
	}

	if asset == nil {
		metrics.DeletesTotal.WithLabelValues("url", "success").Inc()
		s.log.Info("Blob deleted without asset record", "blob_name", blobName)
		s.publishDeleted(ctx, "", blobName)
		return &DeleteByURLResult{
			Success: true,
			Message: "Blob deleted successfully (no database record found)",
			Data:    DeleteByURLData{BlobName: blobName, RecordDeleted: false},
		}
	}

	if _, err := s.assets.DeleteOne(ctx, asset.ID, false); err != nil {
		metrics.DeletesTotal.WithLabelValues("url", "failure").Inc()
		s.log.Error("Blob deleted but asset record was not", "asset_id", asset.ID, "blob_name", blobName, "error", err)
		return &DeleteByURLResult{
			Success: false,
			Message: "Blob deleted, but database record deletion failed",
			Data:    err.Error(),
		}
	}

	metrics.DeletesTotal.WithLabelValues("url", "success").Inc()
	s.log.Info("Blob and asset record deleted", "asset_id", asset.ID, "blob_name", blobName)
	s.publishDeleted(ctx, asset.ID, blobName)
	return &DeleteByURLResult{
		Success: true,
		Message: "Blob and database record deleted successfully",
		Data:    DeleteByURLData{BlobName: blobName, RecordDeleted: true},
	}
}

// ResolveBlobName maps a delete-by-url input onto a blob name. Absolute URLs
// lose the container segment (or a single leading slash) and are decoded;
// anything else is taken as a blob name. A remaining "<container>/" prefix
// is stripped once more.
func ResolveBlobName(input, container string) string {
	candidate := strings.TrimSpace(input)

	if u, ok := storage.TryParseURL(candidate); ok {
		p := u.EscapedPath()
		switch {
		case container != "" && strings.HasPrefix(p, "/"+container+"/"):
			p = strings.TrimPrefix(p, "/"+container+"/")
		case strings.HasPrefix(p, "/"):
			p = p[1:]
		}
		if decoded, err := url.PathUnescape(p); err == nil {
			p = decoded
		}
		candidate = p
	}

	if container != "" {
		candidate = strings.TrimPrefix(candidate, container+"/")
	}
	return candidate
}

// List pages through assets without issuing signed URLs.
func (s *DocumentService) List(ctx context.Context, filter models.AssetFilter, page, limit int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit < 1:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}

	assets, total, err := s.assets.List(ctx, filter, page, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrMetadata, err, "failed to list documents")
	}
	items := make([]*AssetView, 0, len(assets))
	for _, a := range assets {
		items = append(items, newAssetView(a))
	}
	return &ListResult{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// UpdateStatus records a pipeline status change.
func (s *DocumentService) UpdateStatus(ctx context.Context, id string, status models.AssetStatus, message *string) (*models.Asset, error) {
	if _, ok := models.ParseAssetStatus(string(status)); !ok {
		return nil, apperr.Validation("unknown status %q", status)
	}
	asset, err := s.assets.UpdateStatus(ctx, id, status, message)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrMetadata, err, "failed to update status of document %s", id)
	}
	if asset == nil {
		return nil, apperr.NotFound("Document with ID %s not found", id)
	}
	return asset, nil
}

// AddVariant appends a pipeline-produced variant. Absolute URLs are reduced
// to blob names before they are stored.
func (s *DocumentService) AddVariant(ctx context.Context, id string, v models.Variant) (*models.Asset, error) {
	if _, ok := models.ParseVariantKey(string(v.Key)); !ok {
		return nil, apperr.Validation("unknown variant key %q", v.Key)
	}
	v.URL = s.blobs.ExtractBlobPath(v.URL)
	if v.URL == "" {
		return nil, apperr.Validation("variant url is required")
	}

	existing, err := s.findAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, dup := existing.Variant(v.Key); dup {
		return nil, apperr.Validation("variant %s already exists for document %s", v.Key, id)
	}

	asset, err := s.assets.AddVariant(ctx, id, v)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrMetadata, err, "failed to add variant to document %s", id)
	}
	if asset == nil {
		return nil, apperr.NotFound("Document with ID %s not found", id)
	}
	return asset, nil
}

func (s *DocumentService) findAsset(ctx context.Context, id string) (*models.Asset, error) {
	asset, err := s.assets.FindOne(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrMetadata, err, "failed to load document %s", id)
	}
	if asset == nil {
		return nil, apperr.NotFound("Document with ID %s not found", id)
	}
	return asset, nil
}

func (s *DocumentService) publishDeleted(ctx context.Context, id, blobName string) {
	if err := s.publisher.PublishDocumentDeleted(ctx, id, blobName); err != nil {
		s.log.Warn("Failed to publish document deleted event", "asset_id", id, "blob_name", blobName, "error", err)
	}
}

func visibility(isPublic bool) string {
	if isPublic {
		return "public"
	}
	return "private"
}

