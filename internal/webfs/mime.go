package webfs

import (
	"mime"
	"path/filepath"
	"strings"
)

// builtinMimeTypes supplements Go's mime package for extensions its platform
// tables sometimes miss. Custom config entries take precedence over both.
var builtinMimeTypes = map[string]string{
	".avif":  "image/avif",
	".css":   "text/css; charset=utf-8",
	".csv":   "text/csv; charset=utf-8",
	".gif":   "image/gif",
	".gz":    "application/gzip",
	".htm":   "text/html; charset=utf-8",
	".html":  "text/html; charset=utf-8",
	".ico":   "image/vnd.microsoft.icon",
	".jpeg":  "image/jpeg",
	".jpg":   "image/jpeg",
	".js":    "text/javascript; charset=utf-8",
	".json":  "application/json; charset=utf-8",
	".md":    "text/markdown; charset=utf-8",
	".mjs":   "text/javascript; charset=utf-8",
	".mp3":   "audio/mpeg",
	".mp4":   "video/mp4",
	".otf":   "font/otf",
	".pdf":   "application/pdf",
	".png":   "image/png",
	".svg":   "image/svg+xml",
	".tar":   "application/x-tar",
	".ttf":   "font/ttf",
	".txt":   "text/plain; charset=utf-8",
	".wasm":  "application/wasm",
	".webm":  "video/webm",
	".webp":  "image/webp",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".xml":   "application/xml; charset=utf-8",
	".zip":   "application/zip",
}

// DefaultMimeType is returned when no mapping matches.
const DefaultMimeType = "application/octet-stream"

// MimeTable maps file extensions to MIME type strings. It is built once at
// startup and read-only afterwards, so unsynchronized concurrent reads are
// safe.
type MimeTable struct {
	custom map[string]string
}

// NewMimeTable builds a MimeTable with the given overrides layered on top of
// the defaults. Override keys are lowercased extensions including the dot.
func NewMimeTable(overrides map[string]string) *MimeTable {
	t := &MimeTable{custom: make(map[string]string, len(overrides))}
	for ext, mt := range overrides {
		t.custom[strings.ToLower(ext)] = mt
	}
	return t
}

// Resolve determines the MIME type for a file path. Lookup order: custom
// overrides, Go's mime.TypeByExtension, the builtin table, then
// DefaultMimeType. Total: it never fails.
func (t *MimeTable) Resolve(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return DefaultMimeType
	}
	if mt, ok := t.custom[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	if mt, ok := builtinMimeTypes[ext]; ok {
		return mt
	}
	return DefaultMimeType
}
