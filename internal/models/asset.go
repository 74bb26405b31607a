package models

import "time"

// Asset is one uploaded logical file. ID is assigned by the service; the
// database's own _id is never exposed.
type Asset struct {
	ID            string      `bson:"id" json:"id"`
	FileName      string      `bson:"fileName" json:"fileName"`
	ContentType   string      `bson:"contentType" json:"contentType"`
	Size          int64       `bson:"size" json:"size"`
	MediaKind     MediaKind   `bson:"mediaKind" json:"mediaKind"`
	Purpose       string      `bson:"purpose,omitempty" json:"purpose,omitempty"`
	BlobName      string      `bson:"blobName" json:"blobName"`
	Status        AssetStatus `bson:"status" json:"status"`
	StatusMessage *string     `bson:"statusMessage,omitempty" json:"statusMessage,omitempty"`
	IsPublic      bool        `bson:"isPublic" json:"isPublic"`
	UploadedBy    string      `bson:"uploadedBy,omitempty" json:"uploadedBy,omitempty"`
	Checksum      string      `bson:"checksum,omitempty" json:"checksum,omitempty"`
	Variants      []Variant   `bson:"variants" json:"variants"`
	CreatedAt     time.Time   `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time   `bson:"updatedAt" json:"updatedAt"`
	DeletedAt     *time.Time  `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
}

// Variant is an embedded rendition of an Asset. URL is always a relative
// blob name.
type Variant struct {
	Key         VariantKey `bson:"key" json:"key"`
	URL         string     `bson:"url" json:"url"`
	ContentType *string    `bson:"contentType,omitempty" json:"contentType,omitempty"`
	Width       *int       `bson:"width,omitempty" json:"width,omitempty"`
	Height      *int       `bson:"height,omitempty" json:"height,omitempty"`
	BitrateKbps *int       `bson:"bitrateKbps,omitempty" json:"bitrateKbps,omitempty"`
	Size        *int64     `bson:"size,omitempty" json:"size,omitempty"`
	Ready       bool       `bson:"ready" json:"ready"`
}

// Variant returns the entry for key, if present.
func (a *Asset) Variant(key VariantKey) (*Variant, bool) {
	for i := range a.Variants {
		if a.Variants[i].Key == key {
			return &a.Variants[i], true
		}
	}
	return nil, false
}

// BlobReference lists the blobs one live asset owns: its original and every
// variant path.
type BlobReference struct {
	AssetID     string
	BlobName    string
	VariantURLs []string
}

// AssetFilter narrows List queries. Empty fields match everything.
type AssetFilter struct {
	Purpose   string
	MediaKind MediaKind
}
