package config

import (
	"fmt"
	"net"
	"os"
	"regexp"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the contact harvester
type Config struct {
	Store    StoreConfig    `koanf:"store"`
	Scan     ScanConfig     `koanf:"scan"`
	Resolver ResolverConfig `koanf:"resolver"`
	Export   ExportConfig   `koanf:"export"`
	Logging  LoggingConfig  `koanf:"logging"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// StoreConfig selects and configures the mail-store backend
type StoreConfig struct {
	Backend string        `koanf:"backend"` // imap, maildir, or sqlite
	IMAP    IMAPConfig    `koanf:"imap"`
	Maildir MaildirConfig `koanf:"maildir"`
	SQLite  SQLiteConfig  `koanf:"sqlite"`
}

// IMAPConfig holds IMAP backend settings
type IMAPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	TLS      bool   `koanf:"tls"`
}

// MaildirConfig holds maildir backend settings
type MaildirConfig struct {
	Root string `koanf:"root"` // Directory holding one maildir per folder
}

// SQLiteConfig holds mail-archive backend settings
type SQLiteConfig struct {
	Path string `koanf:"path"` // Archive database path
}

// ScanConfig controls folder traversal
type ScanConfig struct {
	Folders         []string `koanf:"folders"`          // Traversal order, by well-known folder id
	IncludeContacts bool     `koanf:"include_contacts"` // Also scan the address book
}

// ResolverConfig controls address resolution
type ResolverConfig struct {
	FallbackDomain  string   `koanf:"fallback_domain"`  // Domain for synthesized last-resort addresses
	ExcludePatterns []string `koanf:"exclude_patterns"` // Drop resolved addresses matching these regexps
}

// ExportConfig controls the export file
type ExportConfig struct {
	Format      string `koanf:"format"`       // xlsx or csv
	OutputDir   string `koanf:"output_dir"`   // Primary output directory
	FallbackDir string `koanf:"fallback_dir"` // Retry location; empty means the OS temp dir
	FilePrefix  string `koanf:"file_prefix"`  // Export filename prefix
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
	Output string `koanf:"output"` // stdout, stderr, or file path
}

// MetricsConfig controls the optional metrics listener
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Listen  string `koanf:"listen"` // host:port for /metrics
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "maildir",
			IMAP: IMAPConfig{
				Port: 993,
				TLS:  true,
			},
		},
		Scan: ScanConfig{
			Folders: []string{
				"sent", "inbox", "deleted", "drafts", "outbox", "junk", "archive",
			},
			IncludeContacts: true,
		},
		Export: ExportConfig{
			Format:     "xlsx",
			OutputDir:  ".",
			FilePrefix: "contacts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9090",
		},
	}
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults first
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // Return defaults if no config file
	}

	// Load YAML config file
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Unmarshal into config struct
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

var validFolders = map[string]bool{
	"sent": true, "inbox": true, "deleted": true, "drafts": true,
	"outbox": true, "junk": true, "archive": true,
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Backend validation
	switch c.Store.Backend {
	case "imap":
		if c.Store.IMAP.Host == "" {
			return fmt.Errorf("store.imap.host is required for the imap backend")
		}
		if c.Store.IMAP.Port < 1 || c.Store.IMAP.Port > 65535 {
			return fmt.Errorf("store.imap.port must be between 1 and 65535 (got: %d)", c.Store.IMAP.Port)
		}
		if c.Store.IMAP.Username == "" {
			return fmt.Errorf("store.imap.username is required for the imap backend")
		}
	case "maildir":
		if c.Store.Maildir.Root == "" {
			return fmt.Errorf("store.maildir.root is required for the maildir backend")
		}
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("store.backend must be one of: imap, maildir, sqlite (got: %s)", c.Store.Backend)
	}

	// Scan validation
	if len(c.Scan.Folders) == 0 {
		return fmt.Errorf("scan.folders must name at least one folder")
	}
	for i, f := range c.Scan.Folders {
		if !validFolders[f] {
			return fmt.Errorf("scan.folders[%d]: unknown folder %q", i, f)
		}
	}

	// Resolver validation
	for i, p := range c.Resolver.ExcludePatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("resolver.exclude_patterns[%d] is invalid: %w", i, err)
		}
	}

	// Export validation
	if c.Export.Format != "xlsx" && c.Export.Format != "csv" {
		return fmt.Errorf("export.format must be one of: xlsx, csv (got: %s)", c.Export.Format)
	}
	if c.Export.OutputDir == "" {
		return fmt.Errorf("export.output_dir is required")
	}
	if c.Export.FilePrefix == "" {
		return fmt.Errorf("export.file_prefix is required")
	}

	// Logging validation
	if c.Logging.Level != "" {
		validLevels := map[string]bool{
			"debug": true, "info": true, "warn": true, "error": true,
		}
		if !validLevels[c.Logging.Level] {
			return fmt.Errorf("logging.level must be one of: debug, info, warn, error (got: %s)", c.Logging.Level)
		}
	}

	if c.Logging.Format != "" {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[c.Logging.Format] {
			return fmt.Errorf("logging.format must be one of: json, text (got: %s)", c.Logging.Format)
		}
	}

	// Metrics validation
	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			return fmt.Errorf("metrics.listen is invalid: %w", err)
		}
	}

	return nil
}

// EnsureDirectories creates the export directories
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Export.OutputDir}
	if c.Export.FallbackDir != "" {
		dirs = append(dirs, c.Export.FallbackDir)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
