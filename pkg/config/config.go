// Package config provides configuration handling for siteserver.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PortEnv is the environment variable that selects the listening port
const PortEnv = "PORT"

// DefaultPort is used when neither the config file nor the environment sets one
const DefaultPort = 3000

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Site contains the locations of templates and public assets
	Site SiteConfig `json:"site" yaml:"site"`

	// AccessLog configures the persistent request log
	AccessLog AccessLogConfig `json:"access_log" yaml:"access_log"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Host to bind to, empty means all interfaces
	Host string `json:"host" yaml:"host"`

	// Port to listen on
	Port int `json:"port" yaml:"port"`

	// ReadTimeout in seconds
	ReadTimeout int `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout in seconds
	WriteTimeout int `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout in seconds
	IdleTimeout int `json:"idle_timeout" yaml:"idle_timeout"`
}

// Addr returns the host:port the server binds to
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Timeouts returns the read, write and idle timeouts as durations
func (s ServerConfig) Timeouts() (read, write, idle time.Duration) {
	return time.Duration(s.ReadTimeout) * time.Second,
		time.Duration(s.WriteTimeout) * time.Second,
		time.Duration(s.IdleTimeout) * time.Second
}

// SiteConfig contains the directories the site is served from
type SiteConfig struct {
	// PublicDir is the static asset root
	PublicDir string `json:"public_dir" yaml:"public_dir"`

	// ViewsDir holds the page templates
	ViewsDir string `json:"views_dir" yaml:"views_dir"`

	// PartialsDir holds templates shared by every page
	PartialsDir string `json:"partials_dir" yaml:"partials_dir"`
}

// AccessLogConfig contains request log settings
type AccessLogConfig struct {
	// FilePath is the append-only log file
	FilePath string `json:"file_path" yaml:"file_path"`

	// QueueSize bounds the number of lines waiting to be written
	QueueSize int `json:"queue_size" yaml:"queue_size"`
}

// LoggingConfig contains diagnostic logging settings
type LoggingConfig struct {
	// Level is the logging level
	Level string `json:"level" yaml:"level"` // "debug", "info", "warn", "error"

	// Format is the log format
	Format string `json:"format" yaml:"format"` // "json", "text"

	// Output is the log output
	Output string `json:"output" yaml:"output"` // "stdout", "stderr", "file"

	// FilePath is the path to the log file
	FilePath string `json:"file_path" yaml:"file_path"`

	// IncludeCaller adds the source file and line to each entry
	IncludeCaller bool `json:"include_caller" yaml:"include_caller"`
}

// LoadConfig loads the configuration from a JSON or YAML file.
// Values missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         DefaultPort,
			ReadTimeout:  15,
			WriteTimeout: 15,
			IdleTimeout:  60,
		},
		Site: SiteConfig{
			PublicDir:   "public",
			ViewsDir:    "views",
			PartialsDir: filepath.Join("views", "partials"),
		},
		AccessLog: AccessLogConfig{
			FilePath:  "server.log",
			QueueSize: 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// SaveConfig saves the configuration to a file, as YAML when the extension asks for it
func SaveConfig(config *Config, path string) error {
	// Create the directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	default:
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write the file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides configuration values from the environment.
// lookup is usually os.LookupEnv.
func ApplyEnv(config *Config, lookup func(string) (string, bool)) error {
	if port, ok := lookup(PortEnv); ok && port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", PortEnv, port, err)
		}
		config.Server.Port = p
	}
	return nil
}

// Validate checks the configuration for values the server cannot start with
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.AccessLog.FilePath == "" {
		return fmt.Errorf("access log file path is required")
	}
	if c.AccessLog.QueueSize <= 0 {
		return fmt.Errorf("access log queue size must be positive, got %d", c.AccessLog.QueueSize)
	}
	if c.Site.PublicDir == "" {
		return fmt.Errorf("public directory is required")
	}
	if c.Site.ViewsDir == "" {
		return fmt.Errorf("views directory is required")
	}
	return nil
}
