package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/whizsid/openxd-sub000/pkg/oxd"
	"github.com/whizsid/openxd-sub000/pkg/oxd/archive"
	"github.com/whizsid/openxd-sub000/pkg/oxd/objectkey"
	"github.com/whizsid/openxd-sub000/pkg/oxd/repo/memory"
	repopg "github.com/whizsid/openxd-sub000/pkg/oxd/repo/postgres"
	fsstorage "github.com/whizsid/openxd-sub000/pkg/oxd/storage/fs"
	memorystorage "github.com/whizsid/openxd-sub000/pkg/oxd/storage/memory"
	s3storage "github.com/whizsid/openxd-sub000/pkg/oxd/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		DatabaseType:       "memory",
		Storage:            StorageConfig{Type: "memory"},
		ArchiveCodec:       archive.DefaultCodec.Name(),
		KeyLayout:          "flat",
		MaxDocumentBytes:   oxd.DefaultMaxDocumentBytes,
		OrphanCleanup:      true,
		EnableEventLogging: true,
	}
}

// ServerConfig represents the configuration of an archive service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use, empty keeps the server default
	AutoMigrate  bool   // Apply the document schema on startup

	// Storage configuration
	Storage StorageConfig

	// Pipeline options
	ArchiveCodec       string // xz, zstd, gzip, lz4
	KeyLayout          string // flat, git-like, hashed
	MaxDocumentBytes   int64
	OrphanCleanup      bool
	EnableEventLogging bool
}

// StorageConfig selects and configures the asset storage backend
type StorageConfig struct {
	Type    string // "memory", "fs", "s3"
	BaseDir string // fs only
	S3      s3storage.Config
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Storage.Type {
	case "memory":
	case "fs":
		if c.Storage.BaseDir == "" {
			return errors.New("storage base directory is required for fs storage")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if _, err := archive.CodecByName(c.ArchiveCodec); err != nil {
		return err
	}
	if _, err := objectkey.ByName(c.KeyLayout); err != nil {
		return err
	}
	if c.MaxDocumentBytes <= 0 {
		return fmt.Errorf("max document bytes must be positive, got %d", c.MaxDocumentBytes)
	}

	return nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (oxd.Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	repo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, err := c.BuildContentStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Type, err)
	}

	codec, err := archive.CodecByName(c.ArchiveCodec)
	if err != nil {
		return nil, err
	}

	options := []oxd.Option{
		oxd.WithRepository(repo),
		oxd.WithContentStore(store),
		oxd.WithCodec(codec),
		oxd.WithLogger(logger),
		oxd.WithMaxDocumentBytes(c.MaxDocumentBytes),
		oxd.WithOrphanCleanup(c.OrphanCleanup),
	}
	if c.EnableEventLogging {
		options = append(options, oxd.WithEventSink(oxd.NewLoggingEventSink(logger)))
	}

	return oxd.New(options...)
}

// BuildContentStore creates the configured storage backend wrapped as a ContentStore
func (c *ServerConfig) BuildContentStore(ctx context.Context) (oxd.ContentStore, error) {
	keys, err := objectkey.ByName(c.KeyLayout)
	if err != nil {
		return nil, err
	}

	var blob oxd.BlobStore
	switch c.Storage.Type {
	case "memory":
		blob = memorystorage.New()
	case "fs":
		blob, err = fsstorage.New(fsstorage.Config{BaseDir: c.Storage.BaseDir})
	case "s3":
		blob, err = s3storage.New(ctx, c.Storage.S3)
	default:
		err = fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}
	if err != nil {
		return nil, err
	}

	return oxd.NewContentStore(c.Storage.Type, blob, oxd.WithKeyGenerator(keys)), nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (oxd.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil
	case "postgres":
		pool, err := c.connectPostgres(ctx)
		if err != nil {
			return nil, err
		}
		if c.AutoMigrate {
			if err := repopg.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func (c *ServerConfig) connectPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	if c.DatabaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema := c.DBSchema; schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres
func (c *ServerConfig) PingPostgres(ctx context.Context) error {
	pool, err := c.connectPostgres(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
