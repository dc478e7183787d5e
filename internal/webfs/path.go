// Package webfs maps request paths onto the filesystem area the server is
// allowed to expose. All filesystem access flows through Resolve: handlers
// never build a filesystem path from user input themselves, they receive a
// ResolvedPath whose containment in the document root has already been
// checked against the fully canonicalized (symlink-resolved) form.
package webfs

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// ResolvedPath is the outcome of resolving a raw request path against the
// document root. The filesystem path is unexported so that callers cannot
// fabricate one that skipped the containment check.
type ResolvedPath struct {
	fsPath     string // canonical absolute filesystem path
	cleanPath  string // decoded, normalized URL path ("/" separated, rooted)
	withinRoot bool
	err        error // canonicalization failure, surfaces as OtherError
}

// WithinRoot reports whether the path resolved inside the document root.
// When false, no filesystem operation may be performed on the target.
func (p ResolvedPath) WithinRoot() bool { return p.withinRoot }

// FSPath returns the canonical filesystem path. It panics if the path is
// outside the document root; such paths must never reach the filesystem.
func (p ResolvedPath) FSPath() string {
	if !p.withinRoot {
		panic("webfs: FSPath called on a path outside the document root")
	}
	return p.fsPath
}

// CleanPath returns the decoded, normalized URL path for the request. It is
// safe to render and to build listing links from, but is a URL path, not a
// filesystem path.
func (p ResolvedPath) CleanPath() string { return p.cleanPath }

// Err returns the canonicalization error, if any.
func (p ResolvedPath) Err() error { return p.err }

// Resolve turns a raw request path into a ResolvedPath rooted at documentRoot.
// documentRoot must already be absolute and canonical (config validation
// guarantees this). The returned error covers only malformed percent-encoding
// in the raw path; filesystem trouble during canonicalization is carried in
// the ResolvedPath and classified as OtherError later.
func Resolve(rawPath string, documentRoot string) (ResolvedPath, error) {
	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		return ResolvedPath{}, fmt.Errorf("malformed percent-encoding in request path %q: %w", rawPath, err)
	}

	// Treat backslashes as path separators so that encoded traversal using
	// mixed slashes normalizes the same way as the plain form.
	decoded = strings.ReplaceAll(decoded, "\\", "/")

	cleaned := path.Clean("/" + decoded)
	joined := filepath.Join(documentRoot, filepath.FromSlash(cleaned))

	rp := ResolvedPath{cleanPath: cleaned}

	canon, cerr := canonicalize(joined)
	if cerr != nil {
		// Permission or I/O failure while resolving symlinks. Keep the
		// textually-normalized path for logging; mark it contained only if
		// that textual form is, so the dispatcher routes it to ServerError
		// rather than Forbidden.
		rp.fsPath = joined
		rp.withinRoot = contained(joined, documentRoot)
		rp.err = cerr
		return rp, nil
	}

	rp.fsPath = canon
	rp.withinRoot = contained(canon, documentRoot)
	return rp, nil
}

// contained reports whether p equals root or lies strictly under it.
func contained(p, root string) bool {
	if p == root {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(p, root)
}

// canonicalize resolves symlinks in p. When the tail of the path does not
// exist yet, the deepest existing ancestor is canonicalized and the missing
// remainder re-joined, so that a request for a missing file still yields the
// canonical location it would occupy.
func canonicalize(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	dir := filepath.Dir(p)
	if dir == p {
		return p, nil
	}
	canonDir, err := canonicalize(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(canonDir, filepath.Base(p)), nil
}
