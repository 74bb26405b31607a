package service

import (
	"path"
	"strconv"
	"time"

	"document-service/internal/models"
)

// BlobName computes the storage key for a new asset.
//
//	no member: <kind>s/<unixMillis>-<id><ext>
//	member:    <kind>s/<member>/<member>-<suffix><ext>
//
// suffix is the purpose for documents and images and the id for videos.
// ext comes from the effective file name. A member upload of a document or
// image without a purpose uses the id so keys stay distinct.
func BlobName(kind models.MediaKind, memberID, purpose, id, fileName string, now time.Time) string {
	ext := path.Ext(fileName)
	dir := string(kind) + "s/"

	if memberID == "" {
		return dir + strconv.FormatInt(now.UnixMilli(), 10) + "-" + id + ext
	}

	suffix := id
	switch kind {
	case models.MediaKindDocument, models.MediaKindImage:
		if purpose != "" {
			suffix = purpose
		}
	}
	return dir + memberID + "/" + memberID + "-" + suffix + ext
}
