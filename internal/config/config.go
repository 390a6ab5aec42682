// Package config loads Shared Album server configuration from command-line flags,
// environment variables and an optional .env file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage and store backends.
const (
	StorageLocal = "local"
	StorageGCS   = "gcs"

	StoreBadger = "badger"
	StoreSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Data    DataConfig
	Storage StorageConfig
	Vision  VisionConfig
	Watcher WatcherConfig
	Server  ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig locates the database and search index.
type DataConfig struct {
	BasePath string
	Backend  string // badger or sqlite
}

// StorageConfig describes the photo and thumbnail buckets.
type StorageConfig struct {
	Backend         string // local or gcs
	PhotoBucket     string
	ThumbnailBucket string
	// LocalPath is the root directory holding one subdirectory per bucket when Backend is local.
	LocalPath string
	PublicURL string
}

// VisionConfig configures label detection.
type VisionConfig struct {
	Enabled  bool
	Endpoint string
	APIKey   string
	// BearerToken is sent as an OAuth access token. With neither it nor APIKey
	// set, Application Default Credentials are used.
	BearerToken string
	MaxLabels   int
	// RequestsPerSecond bounds calls to the annotate endpoint.
	RequestsPerSecond float64
}

// WatcherConfig enables the local bucket watcher.
type WatcherConfig struct {
	Enabled bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	CORSAllowedOrigins []string
}

// Load parses args (normally os.Args[1:]) and resolves every value with precedence
// flag > environment > .env file > default.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("album-server", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for the database and search index")
	storeBackend := fs.String("store-backend", "", "Repository backend (badger, sqlite)")

	storageBackend := fs.String("storage-backend", "", "Object storage backend (local, gcs)")
	photoBucket := fs.String("photo-bucket", "", "Bucket receiving uploaded photos")
	thumbnailBucket := fs.String("thumbnail-bucket", "", "Bucket storing generated thumbnails")
	localStoragePath := fs.String("local-storage-path", "", "Root directory for local buckets")
	publicURL := fs.String("public-url", "", "Externally reachable base URL of this server")

	visionEnabled := fs.String("vision-enabled", "", "Enable label detection (default: false)")
	visionEndpoint := fs.String("vision-endpoint", "", "Label detection endpoint")
	visionAPIKey := fs.String("vision-api-key", "", "Label detection API key")
	visionBearerToken := fs.String("vision-bearer-token", "", "Label detection OAuth access token")
	visionMaxLabels := fs.String("vision-max-labels", "", "Maximum labels requested per photo (default: 5)")

	watcherEnabled := fs.String("watcher-enabled", "", "Watch the local photo bucket (default: false)")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 30s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-allowed-origins", "", "Comma separated CORS origins (default: *)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Missing .env is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
			Backend:  strings.ToLower(getConfigValue(*storeBackend, "STORE_BACKEND", StoreBadger)),
		},
		Storage: StorageConfig{
			Backend:         strings.ToLower(getConfigValue(*storageBackend, "STORAGE_BACKEND", StorageLocal)),
			PhotoBucket:     getConfigValue(*photoBucket, "PHOTO_BUCKET", "shared-album-photos"),
			ThumbnailBucket: getConfigValue(*thumbnailBucket, "THUMBNAIL_BUCKET", "shared-album-thumbnails"),
			LocalPath:       getConfigValue(*localStoragePath, "LOCAL_STORAGE_PATH", ""),
			PublicURL:       strings.TrimRight(getConfigValue(*publicURL, "PUBLIC_URL", ""), "/"),
		},
		Vision: VisionConfig{
			Enabled:           getBoolConfigValue(*visionEnabled, "VISION_ENABLED", false),
			Endpoint:          getConfigValue(*visionEndpoint, "VISION_ENDPOINT", "https://vision.googleapis.com/v1/images:annotate"),
			APIKey:            getConfigValue(*visionAPIKey, "VISION_API_KEY", ""),
			BearerToken:       getConfigValue(*visionBearerToken, "VISION_BEARER_TOKEN", ""),
			MaxLabels:         getIntConfigValue(*visionMaxLabels, "VISION_MAX_LABELS", 5),
			RequestsPerSecond: 10,
		},
		Watcher: WatcherConfig{
			Enabled: getBoolConfigValue(*watcherEnabled, "WATCHER_ENABLED", false),
		},
		Server: ServerConfig{
			Port:               getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSAllowedOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ALLOWED_ORIGINS", "*")),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = getDurationConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getDurationConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getDurationConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if cfg.Storage.PublicURL == "" {
		cfg.Storage.PublicURL = "http://localhost:" + cfg.Server.Port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data path cannot be empty after expansion")
	}
	if c.Data.Backend != StoreBadger && c.Data.Backend != StoreSQLite {
		return fmt.Errorf("invalid store backend: %s (must be badger or sqlite)", c.Data.Backend)
	}

	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.LocalPath == "" {
			return errors.New("local storage path is required for the local storage backend")
		}
	case StorageGCS:
		if c.Watcher.Enabled {
			return errors.New("the bucket watcher requires the local storage backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be local or gcs)", c.Storage.Backend)
	}

	if c.Storage.PhotoBucket == "" || c.Storage.ThumbnailBucket == "" {
		return errors.New("photo and thumbnail buckets are required")
	}
	if c.Storage.PhotoBucket == c.Storage.ThumbnailBucket {
		return errors.New("photo and thumbnail buckets must differ")
	}

	if c.Vision.Enabled {
		if c.Vision.Endpoint == "" {
			return errors.New("vision endpoint is required when vision is enabled")
		}
		if c.Vision.MaxLabels < 1 {
			return fmt.Errorf("vision max labels must be positive, got %d", c.Vision.MaxLabels)
		}
		if c.Vision.APIKey != "" && c.Vision.BearerToken != "" {
			return errors.New("vision api key and bearer token are mutually exclusive")
		}
	}

	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}

	return nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	c.Data.BasePath, err = expandPath(c.Data.BasePath, filepath.Join(homeDir, "SharedAlbum", "data"))
	if err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}

	c.Storage.LocalPath, err = expandPath(c.Storage.LocalPath, filepath.Join(c.Data.BasePath, "buckets"))
	if err != nil {
		return fmt.Errorf("invalid local storage path: %w", err)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute, falling back to defaultPath when empty.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return absPath, nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1" and "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	switch strings.ToLower(strValue) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads KEY=value lines into the environment without overriding
// variables that are already set. Lines starting with # are comments.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
