package models

import "strings"

type MediaKind string

const (
	MediaKindImage    MediaKind = "image"
	MediaKindVideo    MediaKind = "video"
	MediaKindDocument MediaKind = "document"
)

// DetectMediaKind derives the kind from a MIME type prefix.
func DetectMediaKind(contentType string) MediaKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaKindImage
	case strings.HasPrefix(ct, "video/"):
		return MediaKindVideo
	default:
		return MediaKindDocument
	}
}

func ParseMediaKind(s string) (MediaKind, bool) {
	switch k := MediaKind(strings.ToLower(strings.TrimSpace(s))); k {
	case MediaKindImage, MediaKindVideo, MediaKindDocument:
		return k, true
	default:
		return "", false
	}
}

type VariantKey string

const (
	VariantOriginal    VariantKey = "original"
	VariantThumbnail   VariantKey = "thumbnail"
	VariantPreview     VariantKey = "preview"
	VariantHLSManifest VariantKey = "hlsManifest"
)

func ParseVariantKey(s string) (VariantKey, bool) {
	switch k := VariantKey(strings.TrimSpace(s)); k {
	case VariantOriginal, VariantThumbnail, VariantPreview, VariantHLSManifest:
		return k, true
	default:
		return "", false
	}
}

type AssetStatus string

const (
	AssetStatusProcessing AssetStatus = "processing"
	AssetStatusReady      AssetStatus = "ready"
	AssetStatusFailed     AssetStatus = "failed"
)

func ParseAssetStatus(s string) (AssetStatus, bool) {
	switch st := AssetStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case AssetStatusProcessing, AssetStatusReady, AssetStatusFailed:
		return st, true
	default:
		return "", false
	}
}

type EventType string

const (
	EventTypeDocumentUploaded EventType = "document.uploaded"
	EventTypeDocumentDeleted  EventType = "document.deleted"
	EventTypeDocumentStatus   EventType = "document.status"
	EventTypeDocumentVariant  EventType = "document.variant"
)
