package webfs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRoot returns a canonical temp document root, matching what config
// validation hands the server.
func newRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return root
}

func TestResolve_PlainFile(t *testing.T) {
	root := newRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hi"), 0644))

	rp, err := Resolve("/hello.txt", root)
	require.NoError(t, err)
	assert.True(t, rp.WithinRoot())
	assert.Equal(t, filepath.Join(root, "hello.txt"), rp.FSPath())
	assert.Equal(t, "/hello.txt", rp.CleanPath())
}

func TestResolve_RootItself(t *testing.T) {
	root := newRoot(t)

	rp, err := Resolve("/", root)
	require.NoError(t, err)
	assert.True(t, rp.WithinRoot())
	assert.Equal(t, root, rp.FSPath())
}

func TestResolve_TraversalStaysContained(t *testing.T) {
	root := newRoot(t)

	// Rooted normalization means no amount of dot-dot, encoded or not,
	// can step above the document root textually.
	hostile := []string{
		"/../etc/passwd",
		"/../../../../etc/passwd",
		"/a/../../b",
		"/%2e%2e/%2e%2e/etc/passwd",
		"/%2e%2e%2fetc%2fpasswd",
		"/..%2f..%2fetc/passwd",
		"/sub/..%5c..%5cetc/passwd",
		"/.%2e/secret",
	}
	for _, raw := range hostile {
		rp, err := Resolve(raw, root)
		require.NoError(t, err, "path %q", raw)
		require.True(t, rp.WithinRoot(), "path %q must stay contained", raw)
		assert.True(t, rp.FSPath() == root || strings.HasPrefix(rp.FSPath(), root+string(filepath.Separator)),
			"path %q resolved to %q outside %q", raw, rp.FSPath(), root)
	}
}

func TestResolve_DoubleEncodedDecodesOnce(t *testing.T) {
	root := newRoot(t)

	// %252e decodes to the literal "%2e", a filename character, not a dot
	// segment. It must not be decoded a second time.
	rp, err := Resolve("/%252e%252e/x", root)
	require.NoError(t, err)
	assert.True(t, rp.WithinRoot())
	assert.Equal(t, filepath.Join(root, "%2e%2e", "x"), rp.FSPath())
}

func TestResolve_MalformedEncoding(t *testing.T) {
	root := newRoot(t)

	_, err := Resolve("/bad%zz", root)
	assert.Error(t, err)
}

func TestResolve_SymlinkEscapeDetected(t *testing.T) {
	root := newRoot(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0644))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "leak")))

	rp, err := Resolve("/leak/secret.txt", root)
	require.NoError(t, err)
	assert.False(t, rp.WithinRoot())
	assert.Panics(t, func() { rp.FSPath() })
}

func TestResolve_SymlinkInsideRootAllowed(t *testing.T) {
	root := newRoot(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "real"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "real", "f.txt"), []byte("x"), 0644))
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "alias")))

	rp, err := Resolve("/alias/f.txt", root)
	require.NoError(t, err)
	assert.True(t, rp.WithinRoot())
	assert.Equal(t, filepath.Join(root, "real", "f.txt"), rp.FSPath())
}

func TestResolve_MissingFileStillResolves(t *testing.T) {
	root := newRoot(t)

	rp, err := Resolve("/no/such/file.txt", root)
	require.NoError(t, err)
	assert.True(t, rp.WithinRoot())
	assert.Equal(t, filepath.Join(root, "no", "such", "file.txt"), rp.FSPath())
}

func TestResolve_PercentEncodedName(t *testing.T) {
	root := newRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a b.txt"), []byte("x"), 0644))

	rp, err := Resolve("/a%20b.txt", root)
	require.NoError(t, err)
	assert.True(t, rp.WithinRoot())
	assert.Equal(t, filepath.Join(root, "a b.txt"), rp.FSPath())
}
