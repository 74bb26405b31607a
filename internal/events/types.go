package events

import (
	"time"

	"document-service/internal/models"

	"github.com/google/uuid"
)

const eventVersion = "1.0"

// BaseEvent carries the fields shared by every message on the exchange.
type BaseEvent struct {
	ID        string           `json:"id"`
	Type      models.EventType `json:"type"`
	Timestamp int64            `json:"timestamp"`
	Version   string           `json:"version"`
}

func newBaseEvent(t models.EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().Unix(),
		Version:   eventVersion,
	}
}

// DocumentEvent is published after an upload or a delete.
type DocumentEvent struct {
	BaseEvent
	DocumentID  string           `json:"documentId,omitempty"`
	BlobName    string           `json:"blobName"`
	MediaKind   models.MediaKind `json:"mediaKind,omitempty"`
	ContentType string           `json:"contentType,omitempty"`
	Size        int64            `json:"size,omitempty"`
	IsPublic    bool             `json:"isPublic"`
	UploadedBy  string           `json:"uploadedBy,omitempty"`
}

func NewDocumentUploadedEvent(asset *models.Asset) *DocumentEvent {
	return &DocumentEvent{
		BaseEvent:   newBaseEvent(models.EventTypeDocumentUploaded),
		DocumentID:  asset.ID,
		BlobName:    asset.BlobName,
		MediaKind:   asset.MediaKind,
		ContentType: asset.ContentType,
		Size:        asset.Size,
		IsPublic:    asset.IsPublic,
		UploadedBy:  asset.UploadedBy,
	}
}

// NewDocumentDeletedEvent takes an empty documentID when only the blob was
// removed.
func NewDocumentDeletedEvent(documentID, blobName string) *DocumentEvent {
	return &DocumentEvent{
		BaseEvent:  newBaseEvent(models.EventTypeDocumentDeleted),
		DocumentID: documentID,
		BlobName:   blobName,
	}
}

// StatusEvent is consumed from the variant pipeline.
type StatusEvent struct {
	BaseEvent
	DocumentID string  `json:"documentId"`
	Status     string  `json:"status"`
	Message    *string `json:"message,omitempty"`
}

// VariantEvent is consumed from the variant pipeline.
type VariantEvent struct {
	BaseEvent
	DocumentID  string  `json:"documentId"`
	Key         string  `json:"key"`
	URL         string  `json:"url"`
	ContentType *string `json:"contentType,omitempty"`
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	BitrateKbps *int    `json:"bitrateKbps,omitempty"`
	Size        *int64  `json:"size,omitempty"`
	Ready       *bool   `json:"ready,omitempty"`
}
