package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LogLevel defines the minimum severity for error logs.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// Config is the top-level configuration structure for the server.
// It is constructed once at startup and treated as read-only afterwards;
// no component mutates it while requests are being served.
type Config struct {
	Server  *ServerConfig  `json:"server,omitempty" toml:"server,omitempty" yaml:"server,omitempty"`
	Files   *FilesConfig   `json:"files,omitempty" toml:"files,omitempty" yaml:"files,omitempty"`
	CGI     *CGIConfig     `json:"cgi,omitempty" toml:"cgi,omitempty" yaml:"cgi,omitempty"`
	Logging *LoggingConfig `json:"logging,omitempty" toml:"logging,omitempty" yaml:"logging,omitempty"`
}

// ServerConfig holds general server settings.
type ServerConfig struct {
	Address                 *string `json:"address,omitempty" toml:"address,omitempty" yaml:"address,omitempty"`
	MaxConnections          *int    `json:"max_connections,omitempty" toml:"max_connections,omitempty" yaml:"max_connections,omitempty"`
	GracefulShutdownTimeout *string `json:"graceful_shutdown_timeout,omitempty" toml:"graceful_shutdown_timeout,omitempty" yaml:"graceful_shutdown_timeout,omitempty"` // e.g., "30s"
	MaxBodyBytes            *int64  `json:"max_body_bytes,omitempty" toml:"max_body_bytes,omitempty" yaml:"max_body_bytes,omitempty"`

	// Parsed form of GracefulShutdownTimeout, populated by Validate.
	ParsedShutdownTimeout time.Duration `json:"-" toml:"-" yaml:"-"`
}

// FilesConfig configures the filesystem surface the server exposes.
type FilesConfig struct {
	DocumentRoot          string            `json:"document_root" toml:"document_root" yaml:"document_root"`
	ScriptDir             *string           `json:"script_dir,omitempty" toml:"script_dir,omitempty" yaml:"script_dir,omitempty"` // relative to DocumentRoot
	IndexFiles            []string          `json:"index_files,omitempty" toml:"index_files,omitempty" yaml:"index_files,omitempty"`
	ServeDirectoryListing *bool             `json:"serve_directory_listing,omitempty" toml:"serve_directory_listing,omitempty" yaml:"serve_directory_listing,omitempty"`
	ShowHidden            *bool             `json:"show_hidden,omitempty" toml:"show_hidden,omitempty" yaml:"show_hidden,omitempty"`
	MimeTypes             map[string]string `json:"mime_types,omitempty" toml:"mime_types,omitempty" yaml:"mime_types,omitempty"`
}

// CGIConfig configures script execution.
type CGIConfig struct {
	Timeout *string  `json:"timeout,omitempty" toml:"timeout,omitempty" yaml:"timeout,omitempty"` // e.g., "10s"
	Methods []string `json:"methods,omitempty" toml:"methods,omitempty" yaml:"methods,omitempty"`

	// Parsed form of Timeout, populated by Validate.
	ParsedTimeout time.Duration `json:"-" toml:"-" yaml:"-"`
}

// LoggingConfig holds logging configurations.
type LoggingConfig struct {
	LogLevel  LogLevel         `json:"log_level,omitempty" toml:"log_level,omitempty" yaml:"log_level,omitempty"`
	AccessLog *AccessLogConfig `json:"access_log,omitempty" toml:"access_log,omitempty" yaml:"access_log,omitempty"`
	ErrorLog  *ErrorLogConfig  `json:"error_log,omitempty" toml:"error_log,omitempty" yaml:"error_log,omitempty"`
}

// AccessLogConfig configures access logging.
type AccessLogConfig struct {
	Enabled *bool  `json:"enabled,omitempty" toml:"enabled,omitempty" yaml:"enabled,omitempty"`
	Target  string `json:"target,omitempty" toml:"target,omitempty" yaml:"target,omitempty"`
}

// ErrorLogConfig configures error logging.
type ErrorLogConfig struct {
	Target string `json:"target,omitempty" toml:"target,omitempty" yaml:"target,omitempty"`
}

// Defaults applied by ApplyDefaults when the corresponding field is absent.
const (
	DefaultAddress         = "127.0.0.1:8000"
	DefaultScriptDir       = "cgi-bin"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultCGITimeout      = 10 * time.Second
	DefaultMaxBodyBytes    = 10 << 20
)

// IsFilePath reports whether a log target names a file rather than one of
// the process streams.
func IsFilePath(target string) bool {
	return target != "" && target != "stdout" && target != "stderr"
}

// LoadConfig reads and parses the configuration file at path. The format is
// detected from the file extension: .toml, .yaml/.yml, or .json. Defaults are
// applied and the result validated before it is returned.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("configuration file path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML configuration %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML configuration %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON configuration %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration file extension %q (want .toml, .yaml, .yml or .json)", filepath.Ext(path))
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills in every optional field that was not set explicitly.
func (c *Config) ApplyDefaults() {
	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if c.Server.Address == nil {
		c.Server.Address = strPtr(DefaultAddress)
	}
	if c.Server.GracefulShutdownTimeout == nil {
		c.Server.GracefulShutdownTimeout = strPtr(DefaultShutdownTimeout.String())
	}
	if c.Server.MaxBodyBytes == nil {
		c.Server.MaxBodyBytes = int64Ptr(DefaultMaxBodyBytes)
	}

	if c.Files == nil {
		c.Files = &FilesConfig{}
	}
	if c.Files.ScriptDir == nil {
		c.Files.ScriptDir = strPtr(DefaultScriptDir)
	}
	if len(c.Files.IndexFiles) == 0 {
		c.Files.IndexFiles = []string{"index.html"}
	}
	if c.Files.ServeDirectoryListing == nil {
		c.Files.ServeDirectoryListing = boolPtr(true)
	}
	if c.Files.ShowHidden == nil {
		c.Files.ShowHidden = boolPtr(false)
	}

	if c.CGI == nil {
		c.CGI = &CGIConfig{}
	}
	if c.CGI.Timeout == nil {
		c.CGI.Timeout = strPtr(DefaultCGITimeout.String())
	}
	if len(c.CGI.Methods) == 0 {
		c.CGI.Methods = []string{"POST"}
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.LogLevel == "" {
		c.Logging.LogLevel = LogLevelInfo
	}
	if c.Logging.ErrorLog == nil {
		c.Logging.ErrorLog = &ErrorLogConfig{Target: "stderr"}
	}
	if c.Logging.AccessLog == nil {
		c.Logging.AccessLog = &AccessLogConfig{Enabled: boolPtr(true), Target: "stdout"}
	}
	if c.Logging.AccessLog.Enabled == nil {
		c.Logging.AccessLog.Enabled = boolPtr(true)
	}
	if c.Logging.AccessLog.Target == "" {
		c.Logging.AccessLog.Target = "stdout"
	}
	if c.Logging.ErrorLog.Target == "" {
		c.Logging.ErrorLog.Target = "stderr"
	}
}

// Validate checks the configuration for consistency and resolves the document
// root to its canonical absolute form. It must be called (directly or via
// LoadConfig) before the configuration is handed to the server.
func (c *Config) Validate() error {
	if c.Server == nil || c.Server.Address == nil || *c.Server.Address == "" {
		return fmt.Errorf("server.address must be set")
	}
	if c.Server.MaxConnections != nil && *c.Server.MaxConnections < 1 {
		return fmt.Errorf("server.max_connections must be positive, got %d", *c.Server.MaxConnections)
	}
	if c.Server.MaxBodyBytes != nil && *c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must not be negative, got %d", *c.Server.MaxBodyBytes)
	}

	d, err := time.ParseDuration(*c.Server.GracefulShutdownTimeout)
	if err != nil {
		return fmt.Errorf("invalid server.graceful_shutdown_timeout %q: %w", *c.Server.GracefulShutdownTimeout, err)
	}
	c.Server.ParsedShutdownTimeout = d

	if c.Files == nil || c.Files.DocumentRoot == "" {
		return fmt.Errorf("files.document_root must be set")
	}
	absRoot, err := filepath.Abs(c.Files.DocumentRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve document root %s: %w", c.Files.DocumentRoot, err)
	}
	canonRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return fmt.Errorf("failed to canonicalize document root %s: %w", absRoot, err)
	}
	fi, err := os.Stat(canonRoot)
	if err != nil {
		return fmt.Errorf("cannot stat document root %s: %w", canonRoot, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("document root %s is not a directory", canonRoot)
	}
	c.Files.DocumentRoot = canonRoot

	if filepath.IsAbs(*c.Files.ScriptDir) {
		return fmt.Errorf("files.script_dir must be relative to the document root, got %q", *c.Files.ScriptDir)
	}
	for ext, mt := range c.Files.MimeTypes {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("invalid extension %q in files.mime_types: must start with a '.'", ext)
		}
		if mt == "" {
			return fmt.Errorf("empty MIME type for extension %q in files.mime_types", ext)
		}
	}

	ct, err := time.ParseDuration(*c.CGI.Timeout)
	if err != nil {
		return fmt.Errorf("invalid cgi.timeout %q: %w", *c.CGI.Timeout, err)
	}
	if ct <= 0 {
		return fmt.Errorf("cgi.timeout must be positive, got %q", *c.CGI.Timeout)
	}
	c.CGI.ParsedTimeout = ct

	switch c.Logging.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
	default:
		return fmt.Errorf("invalid logging.log_level %q", c.Logging.LogLevel)
	}

	return nil
}

// ScriptRoot returns the absolute path of the script area under the document
// root. The directory is not required to exist.
func (f *FilesConfig) ScriptRoot() string {
	return filepath.Join(f.DocumentRoot, *f.ScriptDir)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func int64Ptr(n int64) *int64 { return &n }
