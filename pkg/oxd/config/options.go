package config

import (
	"fmt"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate applies the document schema when the repository is built
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithMemoryStorage keeps assets in process memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageConfig{Type: "memory"}
		return nil
	}
}

// WithFilesystemStorage stores assets below baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageConfig{Type: "fs", BaseDir: baseDir}
		return nil
	}
}

// WithS3Storage stores assets in an S3 bucket
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		s3 := c.Storage.S3
		s3.Bucket = bucket
		s3.Region = region
		c.Storage = StorageConfig{Type: "s3", S3: s3}
		return nil
	}
}

// WithS3Credentials sets static credentials for the S3 backend
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		if accessKeyID == "" || secretAccessKey == "" {
			return fmt.Errorf("S3 access key and secret key must both be set")
		}
		c.Storage.S3.AccessKeyID = accessKeyID
		c.Storage.S3.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithS3Endpoint points the S3 backend at an S3-compatible service such as MinIO
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		if endpoint == "" {
			return fmt.Errorf("S3 endpoint cannot be empty")
		}
		c.Storage.S3.Endpoint = endpoint
		c.Storage.S3.UsePathStyle = usePathStyle
		c.Storage.S3.CreateBucketIfNotExist = true
		return nil
	}
}

// WithS3Encryption enables server-side encryption for uploaded assets
func WithS3Encryption(algorithm, kmsKeyID string) Option {
	return func(c *ServerConfig) error {
		if algorithm != "AES256" && algorithm != "aws:kms" {
			return fmt.Errorf("SSE algorithm must be 'AES256' or 'aws:kms', got: %s", algorithm)
		}
		c.Storage.S3.EnableSSE = true
		c.Storage.S3.SSEAlgorithm = algorithm
		c.Storage.S3.SSEKMSKeyID = kmsKeyID
		return nil
	}
}

// WithArchiveCodec selects the compression used for exported archives
func WithArchiveCodec(name string) Option {
	return func(c *ServerConfig) error {
		c.ArchiveCodec = name
		return nil
	}
}

// WithKeyLayout selects the storage key layout (flat, git-like, hashed)
func WithKeyLayout(layout string) Option {
	return func(c *ServerConfig) error {
		c.KeyLayout = layout
		return nil
	}
}

// WithMaxDocumentBytes bounds the size of the document entry read during import
func WithMaxDocumentBytes(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max document bytes must be positive, got: %d", n)
		}
		c.MaxDocumentBytes = n
		return nil
	}
}

// WithOrphanCleanup toggles deleting stored assets after a failed import
func WithOrphanCleanup(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.OrphanCleanup = enabled
		return nil
	}
}

// WithEventLogging toggles the logging event sink
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}
