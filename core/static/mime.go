package static

import (
	"path"
	"strings"
)

// DefaultMimeType is used for extensions missing from the table.
const DefaultMimeType = "application/octet-stream"

var mimeTypes = map[string]string{
	"jpeg":  "image/jpeg",
	"jpg":   "image/jpeg",
	"jpe":   "image/jpeg",
	"gif":   "image/gif",
	"svg":   "image/svg+xml",
	"tif":   "image/tiff",
	"tiff":  "image/tiff",
	"bmp":   "image/bmp",
	"png":   "image/png",
	"ico":   "image/x-icon",
	"webp":  "image/webp",
	"html":  "text/html",
	"htm":   "text/html",
	"js":    "text/javascript",
	"mjs":   "text/javascript",
	"css":   "text/css",
	"txt":   "text/plain",
	"json":  "application/json",
	"map":   "application/json",
	"xml":   "application/xml",
	"wasm":  "application/wasm",
	"pdf":   "application/pdf",
	"woff":  "font/woff",
	"woff2": "font/woff2",
}

// MimeType returns the MIME type for name based on its extension.
func MimeType(name string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	if mt, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return mt
	}
	return DefaultMimeType
}
