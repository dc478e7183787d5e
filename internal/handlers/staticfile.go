package handlers

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"example.com/tinyhttpd/internal/http1"
	"example.com/tinyhttpd/internal/logger"
	"example.com/tinyhttpd/internal/webfs"
)

// StaticFile serves regular files from the document root.
type StaticFile struct {
	log  *logger.Logger
	mime *webfs.MimeTable
}

// NewStaticFile creates the static file handler.
func NewStaticFile(lg *logger.Logger, mime *webfs.MimeTable) *StaticFile {
	return &StaticFile{log: lg, mime: mime}
}

// generateETag creates a strong ETag for a file based on its size and
// modification time. Format: "<size_hex>-<modtime_unixnano_hex>".
func generateETag(fi os.FileInfo) string {
	return fmt.Sprintf("\"%x-%x\"", fi.Size(), fi.ModTime().UnixNano())
}

// checkConditional evaluates If-None-Match and If-Modified-Since and reports
// whether a 304 should be sent. If-None-Match takes precedence: when present,
// If-Modified-Since is not consulted at all.
func checkConditional(reqHeader http.Header, fi os.FileInfo, etag string) bool {
	if inm := reqHeader.Get("If-None-Match"); inm != "" {
		if inm == "*" {
			return true
		}
		serverTag := strings.Trim(etag, "\"")
		for _, clientETag := range strings.Split(inm, ",") {
			clientETag = strings.TrimSpace(clientETag)
			clientETag = strings.TrimPrefix(clientETag, "W/")
			if strings.Trim(clientETag, "\"") == serverTag {
				return true
			}
		}
		return false
	}

	if ims := reqHeader.Get("If-Modified-Since"); ims != "" {
		t, err := http.ParseTime(ims)
		if err != nil {
			return false
		}
		// HTTP dates carry second precision; truncate both sides.
		return !fi.ModTime().Truncate(time.Second).After(t.Truncate(time.Second))
	}

	return false
}

// Respond serves the regular file at fsPath. The body is streamed from the
// file in fixed-size chunks, never loaded whole. For HEAD the file is not
// opened; the response carries the headers, including the Content-Length a
// GET would have produced, with no body.
func (h *StaticFile) Respond(req *http1.Request, fsPath string, fi os.FileInfo) (*http1.Response, error) {
	etag := generateETag(fi)
	lastModified := fi.ModTime().UTC().Format(http.TimeFormat)

	if checkConditional(req.Header, fi, etag) {
		resp := http1.NewResponse(http.StatusNotModified)
		resp.SetHeader("ETag", etag)
		resp.SetHeader("Last-Modified", lastModified)
		return resp, nil
	}

	resp := http1.NewResponse(http.StatusOK)
	resp.SetHeader("Content-Type", h.mime.Resolve(fsPath))
	resp.SetHeader("Content-Length", strconv.FormatInt(fi.Size(), 10))
	resp.SetHeader("Last-Modified", lastModified)
	resp.SetHeader("ETag", etag)
	resp.ContentLength = fi.Size()

	if req.Method == http.MethodHead || fi.Size() == 0 {
		return resp, nil
	}

	f, err := os.Open(fsPath)
	if err != nil {
		// Stat succeeded but Open failed: permissions narrower than the
		// directory suggested, or the entry changed underneath us.
		return nil, fmt.Errorf("opening %s: %w", fsPath, err)
	}
	resp.BodyReader = f
	return resp, nil
}
