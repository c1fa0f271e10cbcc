// Package config provides XML-based application configuration and the YAML
// layout profile that describes the expected archive structure.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ConfigFileName is the default config file name, resolved next to the executable.
const ConfigFileName = "sam-extractor.config"

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"SamExtractor"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Processing configuration
	Processing ProcessingConfig `xml:"Processing"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains scratch and run storage settings
type StorageConfig struct {
	DataDirectory string `xml:"DataDirectory"`
	TempDirectory string `xml:"TempDirectory"`
	// RowStorePath is the DuckDB file holding run rows. Empty keeps it in memory.
	RowStorePath string `xml:"RowStorePath"`
}

// ProcessingConfig contains pipeline settings
type ProcessingConfig struct {
	DecodeMode             string `xml:"DecodeMode"`         // "lossy" or "strict"
	SourceCharset          string `xml:"SourceCharset"`      // WHATWG label, e.g. "utf-8", "windows-1252"
	DuplicateKeyPolicy     string `xml:"DuplicateKeyPolicy"` // "last-write-wins" or "reject"
	ProfilePath            string `xml:"ProfilePath"`
	MaxRuns                int    `xml:"MaxRuns"`
	SessionTimeoutMinutes  int    `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
	PreviewRows            int    `xml:"PreviewRows"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	DevelopmentLogging   bool   `xml:"DevelopmentLogging"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	DuckDBThreads        int    `xml:"DuckDBThreads"`
	DuckDBMemoryLimit    string `xml:"DuckDBMemoryLimit"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8090,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  60,
			WriteTimeout: 60,
			IdleTimeout:  120,
			BodyLimit:    "512M",
		},
		Storage: StorageConfig{
			DataDirectory: "./data",
			TempDirectory: "./data/temp",
			RowStorePath:  "",
		},
		Processing: ProcessingConfig{
			DecodeMode:             "lossy",
			SourceCharset:          "utf-8",
			DuplicateKeyPolicy:     "last-write-wins",
			ProfilePath:            "",
			MaxRuns:                20,
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			PreviewRows:            50,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			DevelopmentLogging:   false,
			EnableRequestLogging: true,
			DuckDBThreads:        2,
			DuckDBMemoryLimit:    "256MB",
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- SAM Extractor Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if tempDir := os.Getenv("SAM_TEMP_DIR"); tempDir != "" {
		c.Storage.TempDirectory = tempDir
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.TempDirectory) {
		c.Storage.TempDirectory = filepath.Join(configDir, c.Storage.TempDirectory)
	}
	if c.Storage.RowStorePath != "" && !filepath.IsAbs(c.Storage.RowStorePath) {
		c.Storage.RowStorePath = filepath.Join(configDir, c.Storage.RowStorePath)
	}
	if c.Processing.ProfilePath != "" && !filepath.IsAbs(c.Processing.ProfilePath) {
		c.Processing.ProfilePath = filepath.Join(configDir, c.Processing.ProfilePath)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetTempDir returns the absolute scratch directory path
func (c *AppConfig) GetTempDir() string {
	return c.Storage.TempDirectory
}

// CleanupInterval returns how often expired runs are swept. Values that are
// not positive fall back to the default.
func (c *AppConfig) CleanupInterval() time.Duration {
	return positiveMinutes(c.Processing.CleanupIntervalMinutes, DefaultConfig().Processing.CleanupIntervalMinutes)
}

// SessionTimeout returns how long an untouched run is kept. Values that are
// not positive fall back to the default.
func (c *AppConfig) SessionTimeout() time.Duration {
	return positiveMinutes(c.Processing.SessionTimeoutMinutes, DefaultConfig().Processing.SessionTimeoutMinutes)
}

func positiveMinutes(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Minute
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.TempDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
