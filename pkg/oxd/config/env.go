package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Environment variable mapping:
//
// Server:
//
//	PORT - Server port (default: "8080")
//	ENVIRONMENT - Runtime environment (default: "development")
//
// Database:
//
//	DATABASE_URL - "memory" or "postgres://..." / "postgresql://..."
//	DB_SCHEMA - Postgres search_path schema
//	AUTO_MIGRATE - Apply the document schema on startup
//
// Storage:
//
//	STORAGE_URL - one of:
//	              - "memory://" - In-memory storage (default)
//	              - "file:///path/to/data" - Filesystem storage
//	              - "s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true"
//
// Pipeline:
//
//	ARCHIVE_CODEC - xz (default), zstd, gzip or lz4
//	KEY_LAYOUT - flat (default), git-like or hashed
//	MAX_DOCUMENT_BYTES - Upper bound for the document entry
//	ORPHAN_CLEANUP - Delete stored assets when an import fails (default: true)
//	EVENT_LOGGING - Log pipeline events (default: true)
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}

		if err := applyStorageEnv(prefix, c); err != nil {
			return err
		}

		return applyPipelineEnv(prefix, c)
	}
}

// applyDatabaseEnv applies database configuration from environment
func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	if v, ok := lookupEnv(prefix, "DB_SCHEMA"); ok && v != "" {
		c.DBSchema = v
	}
	if v, ok, err := parseBoolEnv(prefix, "AUTO_MIGRATE"); err != nil {
		return err
	} else if ok {
		c.AutoMigrate = v
	}

	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")
	if !hasURL {
		return nil
	}

	switch {
	case dbURL == "" || dbURL == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgresql://"), strings.HasPrefix(dbURL, "postgres://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
	}

	return nil
}

// applyStorageEnv applies storage configuration from environment
func applyStorageEnv(prefix string, c *ServerConfig) error {
	storageURL, hasURL := lookupEnv(prefix, "STORAGE_URL")
	if !hasURL {
		return nil
	}

	if storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		c.Storage = StorageConfig{Type: "memory"}
		return nil
	}

	u, err := url.Parse(storageURL)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}

	switch u.Scheme {
	case "file":
		return applyFilesystemStorage(u, c)
	case "s3":
		return applyS3Storage(u, c)
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}

// applyFilesystemStorage configures filesystem storage from URL
// Format: file:///path/to/data
func applyFilesystemStorage(u *url.URL, c *ServerConfig) error {
	path := u.Host + u.Path
	if path == "" {
		return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
	}

	c.Storage = StorageConfig{Type: "fs", BaseDir: path}
	return nil
}

// applyS3Storage configures S3 storage from URL
// Format: s3://bucket?region=us-east-1&endpoint=http://localhost:9000
func applyS3Storage(u *url.URL, c *ServerConfig) error {
	if u.Host == "" {
		return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	s3 := c.Storage.S3
	s3.Bucket = u.Host
	if s3.Region == "" {
		s3.Region = "us-east-1"
	}

	if accessKey, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && accessKey != "" {
		s3.AccessKeyID = accessKey
	}
	if secretKey, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && secretKey != "" {
		s3.SecretAccessKey = secretKey
	}
	if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" {
		s3.Region = region
	}

	q := u.Query()
	if region := q.Get("region"); region != "" {
		s3.Region = region
	}
	if endpoint := q.Get("endpoint"); endpoint != "" {
		s3.Endpoint = endpoint
		s3.UsePathStyle = true
		s3.CreateBucketIfNotExist = true
	}
	if raw := q.Get("path_style"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid path_style in STORAGE_URL: %w", err)
		}
		s3.UsePathStyle = v
	}

	c.Storage = StorageConfig{Type: "s3", S3: s3}
	return nil
}

// applyPipelineEnv applies the import/export options from environment
func applyPipelineEnv(prefix string, c *ServerConfig) error {
	if v, ok := lookupEnv(prefix, "ARCHIVE_CODEC"); ok && v != "" {
		c.ArchiveCodec = strings.ToLower(v)
	}
	if v, ok := lookupEnv(prefix, "KEY_LAYOUT"); ok && v != "" {
		c.KeyLayout = strings.ToLower(v)
	}

	if v, ok, err := parseIntEnv(prefix, "MAX_DOCUMENT_BYTES"); err != nil {
		return err
	} else if ok {
		c.MaxDocumentBytes = int64(v)
	}

	if v, ok, err := parseBoolEnv(prefix, "ORPHAN_CLEANUP"); err != nil {
		return err
	} else if ok {
		c.OrphanCleanup = v
	}

	if v, ok, err := parseBoolEnv(prefix, "EVENT_LOGGING"); err != nil {
		return err
	} else if ok {
		c.EnableEventLogging = v
	}

	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseBoolEnv(prefix, key string) (bool, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("invalid boolean for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func parseIntEnv(prefix, key string) (int, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid integer for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}
