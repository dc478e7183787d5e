package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"

	"example.com/tinyhttpd/internal/config"
	"example.com/tinyhttpd/internal/handlers"
	"example.com/tinyhttpd/internal/http1"
	"example.com/tinyhttpd/internal/logger"
	"example.com/tinyhttpd/internal/webfs"
)

// Dispatcher orchestrates one request: resolve the path, classify the
// filesystem target, select the handler for the (method, classification)
// pair, and convert every failure into the proper error response. Handler
// panics are caught here so a single bad request cannot take down the
// serving loop.
type Dispatcher struct {
	log        *logger.Logger
	files      *config.FilesConfig
	scriptRoot string
	cgiMethods map[string]bool

	static  *handlers.StaticFile
	listing *handlers.DirListing
	cgi     *handlers.CGIRunner
}

// NewDispatcher wires the handlers from a validated configuration.
func NewDispatcher(cfg *config.Config, lg *logger.Logger) *Dispatcher {
	mime := webfs.NewMimeTable(cfg.Files.MimeTypes)

	cgiMethods := make(map[string]bool, len(cfg.CGI.Methods))
	for _, m := range cfg.CGI.Methods {
		cgiMethods[m] = true
	}

	return &Dispatcher{
		log:        lg,
		files:      cfg.Files,
		scriptRoot: cfg.Files.ScriptRoot(),
		cgiMethods: cgiMethods,
		static:     handlers.NewStaticFile(lg, mime),
		listing:    handlers.NewDirListing(lg, *cfg.Files.ShowHidden),
		cgi:        handlers.NewCGIRunner(lg, cfg.CGI.ParsedTimeout),
	}
}

// Dispatch handles one parsed request and always returns a response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *http1.Request) (resp *http1.Response) {
	accept := req.Header.Get("Accept")

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Handler panicked", logger.LogFields{
				"path":  req.RawPath,
				"panic": fmt.Sprintf("%v", r),
				"stack": string(debug.Stack()),
			})
			resp = handlers.ErrorResponse(http.StatusInternalServerError, "", accept)
		}
	}()

	rp, err := webfs.Resolve(req.RawPath, d.files.DocumentRoot)
	if err != nil {
		d.log.Info("Rejecting undecodable request path", logger.LogFields{
			"path":  req.RawPath,
			"error": err.Error(),
		})
		return handlers.ErrorResponse(http.StatusBadRequest, "", accept)
	}

	// Out-of-root paths never reach classification: the target is not
	// opened, not even stat-ed.
	if !rp.WithinRoot() {
		d.log.Warn("Request path resolves outside the document root", logger.LogFields{
			"path":   req.RawPath,
			"method": req.Method,
		})
		return handlers.ErrorResponse(http.StatusForbidden, "", accept)
	}

	class, fi := webfs.Classify(rp, d.scriptRoot)
	if class == webfs.ClassOtherError {
		fields := logger.LogFields{"path": rp.CleanPath(), "fs_path": rp.FSPath()}
		if rp.Err() != nil {
			fields["error"] = rp.Err().Error()
		}
		d.log.Error("Filesystem fault during classification", fields)
		return handlers.ErrorResponse(http.StatusInternalServerError, "", accept)
	}

	switch req.Method {
	case http.MethodGet, http.MethodHead:
		switch class {
		case webfs.ClassDirectory:
			return d.serveDirectory(req, rp, accept)
		case webfs.ClassRegularFile:
			return d.serveFile(req, rp.FSPath(), fi, accept)
		case webfs.ClassExecutableScript:
			return d.methodNotAllowed(accept)
		default: // ClassMissing
			return d.notFound(rp, accept)
		}

	default:
		if d.cgiMethods[req.Method] {
			switch class {
			case webfs.ClassExecutableScript:
				return d.cgi.Respond(ctx, req, rp.FSPath())
			case webfs.ClassMissing:
				return d.notFound(rp, accept)
			default:
				// The target exists but is not an executable script.
				return d.methodNotAllowed(accept)
			}
		}
		if class == webfs.ClassMissing {
			return d.notFound(rp, accept)
		}
		return d.methodNotAllowed(accept)
	}
}

// serveDirectory serves an index file when one exists, otherwise a listing
// (when enabled), otherwise 403.
func (d *Dispatcher) serveDirectory(req *http1.Request, rp webfs.ResolvedPath, accept string) *http1.Response {
	for _, indexName := range d.files.IndexFiles {
		indexPath := filepath.Join(rp.FSPath(), indexName)
		fi, err := os.Stat(indexPath)
		if err == nil && fi.Mode().IsRegular() {
			return d.serveFile(req, indexPath, fi, accept)
		}
	}

	if !*d.files.ServeDirectoryListing {
		return handlers.ErrorResponse(http.StatusForbidden, "Directory listing is disabled.", accept)
	}

	resp, err := d.listing.Respond(rp.FSPath(), rp.CleanPath())
	if err != nil {
		d.log.Error("Failed to generate directory listing", logger.LogFields{
			"dir":   rp.FSPath(),
			"error": err.Error(),
		})
		return handlers.ErrorResponse(http.StatusInternalServerError, "", accept)
	}
	return resp
}

func (d *Dispatcher) serveFile(req *http1.Request, fsPath string, fi os.FileInfo, accept string) *http1.Response {
	resp, err := d.static.Respond(req, fsPath, fi)
	if err != nil {
		d.log.Error("Failed to serve file", logger.LogFields{
			"file":  fsPath,
			"error": err.Error(),
		})
		return handlers.ErrorResponse(http.StatusInternalServerError, "", accept)
	}
	return resp
}

func (d *Dispatcher) notFound(rp webfs.ResolvedPath, accept string) *http1.Response {
	return handlers.ErrorResponse(http.StatusNotFound, "No such resource: "+rp.CleanPath(), accept)
}

func (d *Dispatcher) methodNotAllowed(accept string) *http1.Response {
	resp := handlers.ErrorResponse(http.StatusMethodNotAllowed, "", accept)
	resp.SetHeader("Allow", "GET, HEAD, POST")
	return resp
}
