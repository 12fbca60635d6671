package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/yegors/whse-session/internal/whse"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server        ServerConfig      `toml:"server"`         // HTTP server settings
	Logging       LoggingConfig     `toml:"logging"`        // Application logging settings
	Storage       StorageConfig     `toml:"storage"`        // Data persistence settings
	Backend       BackendConfig     `toml:"backend"`        // Execution backend connection settings
	Pages         PagesConfig       `toml:"pages"`          // Backend page paths hosting the redirect endpoints
	Warehouses    WarehousesConfig  `toml:"warehouses"`     // Warehouse bin configuration source
	StatusPhrases map[string]string `toml:"status_phrases"` // Overrides for status classifier phrases, keyed by condition name
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // Origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type       string `toml:"type"`        // Storage backend type (currently only "sqlite" is supported)
	SQLitePath string `toml:"sqlite_path"` // Path to the SQLite database shared with the execution backend
}

// BackendConfig contains settings for reaching the execution backend
type BackendConfig struct {
	BaseURL               string `toml:"base_url"`                // Scheme and host the page paths are resolved against (e.g., http://localhost)
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP timeout for action requests (0 = no timeout)
}

// PagesConfig contains the page paths whose redir/ endpoints accept session actions
type PagesConfig struct {
	Warehouse         string `toml:"warehouse"`           // Page hosting warehouse session actions (initiate-whse)
	SalesOrderPicking string `toml:"sales_order_picking"` // Page hosting picking actions (start-pick, start-pick-pack, logout)
}

// WarehousesConfig contains the warehouse bin configuration source
type WarehousesConfig struct {
	BinsFile string `toml:"bins_file"` // Optional YAML file imported into storage at startup
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate checks the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	seenPorts := map[int]bool{c.Server.Port: true}
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if seenPorts[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		seenPorts[p] = true
	}

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("sqlite_path is required when storage type is sqlite")
	}

	if err := c.ValidateBackend(); err != nil {
		return err
	}

	if _, err := c.Vocabulary(); err != nil {
		return err
	}

	return nil
}

// ValidateBackend validates the execution backend settings
func (c *Config) ValidateBackend() error {
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://localhost"
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid backend base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid backend base_url scheme: %q (must be http or https)", u.Scheme)
	}

	if c.Backend.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("invalid request_timeout_seconds: %d (must be >= 0)", c.Backend.RequestTimeoutSeconds)
	}

	// Default page paths match the stock backend layout
	if c.Pages.Warehouse == "" {
		c.Pages.Warehouse = "/warehouse/"
	}
	if c.Pages.SalesOrderPicking == "" {
		c.Pages.SalesOrderPicking = "/warehouse/picking/sales-order/"
	}
	for _, p := range []*string{&c.Pages.Warehouse, &c.Pages.SalesOrderPicking} {
		if !strings.HasPrefix(*p, "/") {
			*p = "/" + *p
		}
		if !strings.HasSuffix(*p, "/") {
			*p += "/"
		}
	}

	return nil
}

// Vocabulary returns the status classifier vocabulary with configured overrides applied
func (c *Config) Vocabulary() (map[whse.Condition]string, error) {
	vocabulary := whse.DefaultVocabulary()
	for name, phrase := range c.StatusPhrases {
		condition, ok := whse.ParseCondition(name)
		if !ok {
			return nil, fmt.Errorf("unknown status condition in status_phrases: %s", name)
		}
		if strings.TrimSpace(phrase) == "" {
			return nil, fmt.Errorf("empty phrase for status condition %s", name)
		}
		vocabulary[condition] = phrase
	}
	return vocabulary, nil
}

// PagesFor returns the page paths in the form the session service consumes
func (c *Config) PagesFor() whse.Pages {
	return whse.Pages{
		Warehouse:         c.Pages.Warehouse,
		SalesOrderPicking: c.Pages.SalesOrderPicking,
	}
}

// RequestTimeout returns the backend request timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.RequestTimeoutSeconds) * time.Second
}
