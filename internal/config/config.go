package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"
	ModeCLI    = "cli"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultCacheSize   = 32
	DefaultWorkers     = 4
	DefaultTemplateDir = "templates"
	DefaultOutputDir   = "output"

	// EnvPrefix prefixes every environment variable, e.g. CASEDOCS_TEMPLATES
	EnvPrefix = "CASEDOCS"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Keys of the configuration values, shared by flags, env and viper
const (
	KeyMode        = "mode"
	KeyHost        = "host"
	KeyPort        = "port"
	KeyTemplates   = "templates"
	KeyTemplateURL = "template_url"
	KeyMappings    = "mappings"
	KeyOutput      = "output"
	KeyLogLevel    = "loglevel"
	KeyLogFormat   = "logformat"
	KeyMaxFileSize = "maxfilesize"
	KeyCacheSize   = "cachesize"
	KeyWorkers     = "workers"
)

// Config holds all configuration for the document service and CLI
type Config struct {
	// Server configuration
	Mode string // "server", "stdio" or "cli"
	Host string
	Port int

	// Template and mapping sources
	TemplateDir string // directory of blank PDF forms
	TemplateURL string // base URL tried after TemplateDir
	MappingDir  string // extra mapping tables layered over the bundled ones
	OutputDir   string // where filled documents are written when asked to

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	LogFormat   string
	MaxFileSize int64 // Maximum template size in bytes
	CacheSize   int   // Number of templates kept in memory
	Workers     int   // Documents filled concurrently per batch
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:        ModeStdio, // Default to stdio mode for MCP compatibility
		Host:        DefaultHost,
		Port:        DefaultPort,
		TemplateDir: DefaultTemplateDir,
		OutputDir:   DefaultOutputDir,
		Version:     "1.0.0",
		ServerName:  "casedocs",
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		MaxFileSize: DefaultMaxFileSize,
		CacheSize:   DefaultCacheSize,
		Workers:     DefaultWorkers,
	}
}

type flagDef struct {
	key   string
	name  string
	usage string
	value func(cfg *Config) interface{}
}

var flagDefs = []flagDef{
	{KeyMode, "mode", "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server",
		func(c *Config) interface{} { return c.Mode }},
	{KeyHost, "host", "Server host address (server mode only)",
		func(c *Config) interface{} { return c.Host }},
	{KeyPort, "port", "Server port (server mode only)",
		func(c *Config) interface{} { return c.Port }},
	{KeyTemplates, "templates", "Directory containing blank PDF form templates",
		func(c *Config) interface{} { return c.TemplateDir }},
	{KeyTemplateURL, "template-url", "Base URL templates are fetched from when not found locally",
		func(c *Config) interface{} { return c.TemplateURL }},
	{KeyMappings, "mappings", "Directory of mapping tables overriding the bundled ones",
		func(c *Config) interface{} { return c.MappingDir }},
	{KeyOutput, "output", "Directory filled documents are written to",
		func(c *Config) interface{} { return c.OutputDir }},
	{KeyLogLevel, "loglevel", "Log level (trace, debug, info, warn, error)",
		func(c *Config) interface{} { return c.LogLevel }},
	{KeyLogFormat, "logformat", "Log format (text, json)",
		func(c *Config) interface{} { return c.LogFormat }},
	{KeyMaxFileSize, "maxfilesize", "Maximum template file size in bytes",
		func(c *Config) interface{} { return c.MaxFileSize }},
	{KeyCacheSize, "cachesize", "Number of templates cached in memory",
		func(c *Config) interface{} { return c.CacheSize }},
	{KeyWorkers, "workers", "Documents filled concurrently per batch",
		func(c *Config) interface{} { return c.Workers }},
}

// BindFlags defines the named configuration flags on fs and binds them, the
// environment and the defaults of cfg into v. With no keys every flag is defined.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper, cfg *Config, keys ...string) {
	setupViperEnvironment(v)

	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	for _, def := range flagDefs {
		value := def.value(cfg)
		v.SetDefault(def.key, value)

		if len(wanted) > 0 && !wanted[def.key] {
			continue
		}
		if fs.Lookup(def.name) == nil {
			switch val := value.(type) {
			case string:
				fs.String(def.name, val, def.usage)
			case int:
				fs.Int(def.name, val, def.usage)
			case int64:
				fs.Int64(def.name, val, def.usage)
			}
		}
		_ = v.BindPFlag(def.key, fs.Lookup(def.name))
	}
}

// setupViperEnvironment configures v with environment variables
func setupViperEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// FromViper builds a validated configuration from v, starting at base
func FromViper(v *viper.Viper, base *Config) (*Config, error) {
	cfg := *base
	populateConfigFromViper(v, &cfg)

	for _, dir := range []*string{&cfg.TemplateDir, &cfg.MappingDir, &cfg.OutputDir} {
		if *dir != "" {
			if expanded, err := filepath.Abs(*dir); err == nil {
				*dir = expanded
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// LoadFromFlags parses the process command line and returns a configuration
func LoadFromFlags() (*Config, error) {
	return LoadFromArgs(os.Args[0], os.Args[1:])
}

// LoadFromArgs parses args as the server's command line
func LoadFromArgs(program string, args []string) (*Config, error) {
	cfg := DefaultConfig()

	fs := pflag.NewFlagSet(program, pflag.ContinueOnError)
	v := viper.New()
	BindFlags(fs, v, cfg)
	setupUsageMessage(fs, program)

	// Check for version flag before parsing
	if err := checkVersionFlag(args); err != nil {
		return nil, err
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return FromViper(v, cfg)
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage(fs *pflag.FlagSet, program string) {
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", program)
		fmt.Fprintf(os.Stderr, "\ncasedocs - fills legal and BOE PDF forms from case data\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --templates=./templates                       # stdio MCP server\n", program)
		fmt.Fprintf(os.Stderr, "  %s --mode=server --templates=./templates         # HTTP API\n", program)
		fmt.Fprintf(os.Stderr, "  %s --mode=server --template-url=https://cdn/forms # remote templates\n", program)
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		for _, def := range flagDefs {
			fmt.Fprintf(os.Stderr, "  %s_%-13s %s\n", EnvPrefix, strings.ToUpper(def.key), def.usage)
		}
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag(args []string) error {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

// ErrVersionRequested is returned when the command line asks for the version
var ErrVersionRequested = errors.New("version requested")

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Mode = v.GetString(KeyMode)
	cfg.Host = v.GetString(KeyHost)
	cfg.Port = v.GetInt(KeyPort)
	cfg.TemplateDir = v.GetString(KeyTemplates)
	cfg.TemplateURL = v.GetString(KeyTemplateURL)
	cfg.MappingDir = v.GetString(KeyMappings)
	cfg.OutputDir = v.GetString(KeyOutput)
	cfg.LogLevel = v.GetString(KeyLogLevel)
	cfg.LogFormat = v.GetString(KeyLogFormat)
	cfg.MaxFileSize = v.GetInt64(KeyMaxFileSize)
	cfg.CacheSize = v.GetInt(KeyCacheSize)
	cfg.Workers = v.GetInt(KeyWorkers)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer && c.Mode != ModeCLI {
		return fmt.Errorf("invalid mode: %s (must be 'stdio', 'server' or 'cli')", c.Mode)
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// At least one template location
	if c.TemplateDir == "" && c.TemplateURL == "" {
		return errors.New("either a template directory or a template url is required")
	}
	if c.TemplateDir != "" {
		if info, err := os.Stat(c.TemplateDir); err == nil && !info.IsDir() {
			return fmt.Errorf("template path %s is not a directory", c.TemplateDir)
		}
	}

	if c.MappingDir != "" {
		info, err := os.Stat(c.MappingDir)
		if err != nil {
			return fmt.Errorf("cannot access mapping directory %s: %w", c.MappingDir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("mapping path %s is not a directory", c.MappingDir)
		}
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}
	if c.CacheSize < 0 {
		return errors.New("cache size cannot be negative")
	}
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}

	// Validate log level and format
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s (must be one of: trace, debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", c.LogFormat)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug" || c.LogLevel == "trace"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, Templates: %s, TemplateURL: %s, Mappings: %s, "+
		"Output: %s, LogLevel: %s, LogFormat: %s, MaxFileSize: %d, CacheSize: %d, Workers: %d}",
		c.Mode, c.Host, c.Port, c.TemplateDir, c.TemplateURL, c.MappingDir,
		c.OutputDir, c.LogLevel, c.LogFormat, c.MaxFileSize, c.CacheSize, c.Workers)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
