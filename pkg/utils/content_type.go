package utils

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const DefaultContentType = "application/octet-stream"

// ContentTypeDetector resolves a MIME type for an upload.
type ContentTypeDetector struct{}

func NewContentTypeDetector() *ContentTypeDetector {
	return &ContentTypeDetector{}
}

// DetectContentTypeFromExtension looks the extension up in the mime table.
func (d *ContentTypeDetector) DetectContentTypeFromExtension(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return DefaultContentType
	}
	contentType := mime.TypeByExtension(strings.ToLower(ext))
	if contentType == "" {
		return DefaultContentType
	}
	return contentType
}

// DetectContentType prefers the declared type, then the file extension,
// then sniffing the first bytes.
func (d *ContentTypeDetector) DetectContentType(declared, filename string, data []byte) string {
	if ct := normalizeContentType(declared); ct != "" && ct != DefaultContentType {
		return ct
	}
	if ct := d.DetectContentTypeFromExtension(filename); ct != DefaultContentType {
		return normalizeContentType(ct)
	}
	if len(data) == 0 {
		return DefaultContentType
	}
	return normalizeContentType(http.DetectContentType(data))
}

// normalizeContentType drops parameters such as "; charset=utf-8".
func normalizeContentType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return ct
}
