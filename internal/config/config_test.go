package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func docRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return root
}

func TestLoadConfig_TOML(t *testing.T) {
	root := docRoot(t)
	path := writeConfig(t, "server.toml", `
[server]
address = "127.0.0.1:9090"
max_connections = 64

[files]
document_root = "`+root+`"
script_dir = "scripts"
serve_directory_listing = false

[files.mime_types]
".xyz" = "application/x-xyz"

[cgi]
timeout = "5s"

[logging]
log_level = "DEBUG"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", *cfg.Server.Address)
	assert.Equal(t, 64, *cfg.Server.MaxConnections)
	assert.Equal(t, root, cfg.Files.DocumentRoot)
	assert.Equal(t, filepath.Join(root, "scripts"), cfg.Files.ScriptRoot())
	assert.False(t, *cfg.Files.ServeDirectoryListing)
	assert.Equal(t, "application/x-xyz", cfg.Files.MimeTypes[".xyz"])
	assert.Equal(t, 5*time.Second, cfg.CGI.ParsedTimeout)
	assert.Equal(t, LogLevelDebug, cfg.Logging.LogLevel)
}

func TestLoadConfig_YAML(t *testing.T) {
	root := docRoot(t)
	path := writeConfig(t, "server.yaml", `
server:
  address: "0.0.0.0:8080"
files:
  document_root: "`+root+`"
  index_files: ["default.html", "index.html"]
  show_hidden: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", *cfg.Server.Address)
	assert.Equal(t, []string{"default.html", "index.html"}, cfg.Files.IndexFiles)
	assert.True(t, *cfg.Files.ShowHidden)
}

func TestLoadConfig_JSON(t *testing.T) {
	root := docRoot(t)
	path := writeConfig(t, "server.json", `{
  "files": {"document_root": "`+root+`"},
  "cgi": {"methods": ["POST", "PUT"]}
}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"POST", "PUT"}, cfg.CGI.Methods)
}

func TestLoadConfig_Defaults(t *testing.T) {
	root := docRoot(t)
	path := writeConfig(t, "minimal.toml", `
[files]
document_root = "`+root+`"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultAddress, *cfg.Server.Address)
	assert.Nil(t, cfg.Server.MaxConnections)
	assert.Equal(t, DefaultShutdownTimeout, cfg.Server.ParsedShutdownTimeout)
	assert.Equal(t, int64(DefaultMaxBodyBytes), *cfg.Server.MaxBodyBytes)
	assert.Equal(t, filepath.Join(root, DefaultScriptDir), cfg.Files.ScriptRoot())
	assert.Equal(t, []string{"index.html"}, cfg.Files.IndexFiles)
	assert.True(t, *cfg.Files.ServeDirectoryListing)
	assert.False(t, *cfg.Files.ShowHidden)
	assert.Equal(t, DefaultCGITimeout, cfg.CGI.ParsedTimeout)
	assert.Equal(t, []string{"POST"}, cfg.CGI.Methods)
	assert.Equal(t, LogLevelInfo, cfg.Logging.LogLevel)
	assert.True(t, *cfg.Logging.AccessLog.Enabled)
}

func TestLoadConfig_UnsupportedExtension(t *testing.T) {
	path := writeConfig(t, "server.ini", "address=127.0.0.1")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported configuration file extension")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	root := docRoot(t)

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing document root",
			mutate:  func(c *Config) { c.Files.DocumentRoot = "" },
			wantErr: "files.document_root",
		},
		{
			name:    "nonexistent document root",
			mutate:  func(c *Config) { c.Files.DocumentRoot = filepath.Join(root, "gone") },
			wantErr: "document root",
		},
		{
			name:    "absolute script dir",
			mutate:  func(c *Config) { c.Files.ScriptDir = strPtr("/usr/lib/cgi-bin") },
			wantErr: "script_dir",
		},
		{
			name:    "bad shutdown timeout",
			mutate:  func(c *Config) { c.Server.GracefulShutdownTimeout = strPtr("soonish") },
			wantErr: "graceful_shutdown_timeout",
		},
		{
			name:    "zero cgi timeout",
			mutate:  func(c *Config) { c.CGI.Timeout = strPtr("0s") },
			wantErr: "cgi.timeout",
		},
		{
			name:    "mime extension without dot",
			mutate:  func(c *Config) { c.Files.MimeTypes = map[string]string{"xyz": "application/x-xyz"} },
			wantErr: "mime_types",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.LogLevel = "LOUD" },
			wantErr: "log_level",
		},
		{
			name:    "non-positive max connections",
			mutate:  func(c *Config) { c.Server.MaxConnections = intPtr(0) },
			wantErr: "max_connections",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Files: &FilesConfig{DocumentRoot: root}}
			cfg.ApplyDefaults()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidate_DocumentRootNotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	cfg := &Config{Files: &FilesConfig{DocumentRoot: file}}
	cfg.ApplyDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestValidate_CanonicalizesDocumentRoot(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "real")
	require.NoError(t, os.MkdirAll(real, 0755))
	link := filepath.Join(base, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	cfg := &Config{Files: &FilesConfig{DocumentRoot: link}}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	canon, err := filepath.EvalSymlinks(real)
	require.NoError(t, err)
	assert.Equal(t, canon, cfg.Files.DocumentRoot)
}

func intPtr(n int) *int { return &n }
