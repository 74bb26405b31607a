package service

import (
	"io"
	"time"

	"document-service/internal/models"
)

// UploadFile is the received multipart part. Small parts arrive in Data;
// large ones are streamed from Reader, which must hold Size bytes.
type UploadFile struct {
	OriginalName string
	MimeType     string
	Data         []byte
	Reader       io.ReadSeeker
	Size         int64
}

// UploadOptions are the optional form fields of an upload.
type UploadOptions struct {
	FileName    string
	ContentType string
	MediaKind   models.MediaKind
	Purpose     string
	UploadedBy  string
	MemberID    string
	Checksum    string
	IsPublic    bool
}

type AssetView struct {
	ID           string             `json:"id"`
	FileName     string             `json:"fileName"`
	ContentType  string             `json:"contentType"`
	Size         int64              `json:"size"`
	MediaKind    models.MediaKind   `json:"mediaKind"`
	Purpose      string             `json:"purpose,omitempty"`
	Status       models.AssetStatus `json:"status"`
	IsPublic     bool               `json:"isPublic"`
	UploadedBy   string             `json:"uploadedBy,omitempty"`
	Variants     []models.Variant   `json:"variants"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	PublicURL    string             `json:"publicUrl,omitempty"`
	URLExpiresAt *time.Time         `json:"urlExpiresAt,omitempty"`
	URLExpiresIn int                `json:"urlExpiresIn,omitempty"`
}

func newAssetView(a *models.Asset) *AssetView {
	variants := a.Variants
	if variants == nil {
		variants = []models.Variant{}
	}
	return &AssetView{
		ID:          a.ID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		Size:        a.Size,
		MediaKind:   a.MediaKind,
		Purpose:     a.Purpose,
		Status:      a.Status,
		IsPublic:    a.IsPublic,
		UploadedBy:  a.UploadedBy,
		Variants:    variants,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type SignedURLResponse struct {
	URL         string            `json:"url"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	ContentType string            `json:"contentType"`
	FileName    string            `json:"fileName"`
	Size        int64             `json:"size"`
	Disposition string            `json:"disposition"`
	Variant     models.VariantKey `json:"variant"`
}

type StatusView struct {
	ID        string             `json:"id"`
	Status    models.AssetStatus `json:"status"`
	Message   *string            `json:"message"`
	Variants  []models.Variant   `json:"variants"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// DeleteByURLResult is always returned, never an error. Data is a
// DeleteByURLData on success and the error text on failure.
type DeleteByURLResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type DeleteByURLData struct {
	BlobName      string `json:"blobName"`
	RecordDeleted bool   `json:"recordDeleted"`
}

type ListResult struct {
	Items []*AssetView `json:"items"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

type ReconcileReport struct {
	StartedAt       time.Time `json:"startedAt"`
	CompletedAt     time.Time `json:"completedAt"`
	BlobsScanned    int       `json:"blobsScanned"`
	RecordsScanned  int       `json:"recordsScanned"`
	OrphanedBlobs   []string  `json:"orphanedBlobs"`
	OrphanedRecords []string  `json:"orphanedRecords"`
}
